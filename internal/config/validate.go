package config

import (
	"fmt"
)

// Validate rejects settings the ledger and settlement cannot run with.
func (c *Config) Validate() error {
	switch c.LedgerBackend {
	case LedgerBackendSQL, LedgerBackendMemory:
	case LedgerBackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("config: MONGO_URI is required when LEDGER_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("config: unsupported LEDGER_BACKEND %q", c.LedgerBackend)
	}

	if c.Ledger.StartingGrant < 0 {
		return fmt.Errorf("config: STARTING_GRANT must not be negative")
	}
	for action, cost := range c.Ledger.ActionCosts {
		if cost <= 0 {
			return fmt.Errorf("config: cost for %s must be positive, got %d", action, cost)
		}
	}

	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		return fmt.Errorf("config: FAKE_PAYMENT_SUCCESS_RATE must be within [0,1]")
	}
	if c.Payment.DelayMin < 0 || c.Payment.DelayMax < c.Payment.DelayMin {
		return fmt.Errorf("config: invalid payment delay window %s..%s", c.Payment.DelayMin, c.Payment.DelayMax)
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("config: JWT_TTL must be positive")
	}
	return nil
}
