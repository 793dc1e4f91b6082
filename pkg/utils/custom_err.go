package utils

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPageSize = errors.New("invalid page size parameter")
	ErrDatabaseError   = errors.New("database error")
	// ErrStorage is the ledger-facing name for a failed datastore call.
	ErrStorage = ErrDatabaseError

	ErrInvalidInput = errors.New("invalid input")

	ErrAccountNotFound    = errors.New("account not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrOAuthNotConfigured = errors.New("oauth provider not configured")
	ErrSubjectNotFound    = errors.New("subject not found")

	ErrInsufficientTokens  = errors.New("insufficient tokens")
	ErrUnknownAction       = errors.New("unknown action type")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrInvalidInstrument   = errors.New("invalid payment instrument")
	ErrNotFound            = errors.New("not found")
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrInvalidState        = errors.New("invalid state")

	ErrUnexpectedBehaviorOfAI = errors.New("unexpected response from language model")
)

// InsufficientTokensError carries the counts a caller needs to prompt a purchase.
type InsufficientTokensError struct {
	Action    string
	Required  int64
	Available int64
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("insufficient tokens for %s: required %d, available %d", e.Action, e.Required, e.Available)
}

func (e *InsufficientTokensError) Is(target error) bool { return target == ErrInsufficientTokens }

type InstrumentError struct {
	Reason string
}

func (e *InstrumentError) Error() string { return e.Reason }

func (e *InstrumentError) Is(target error) bool { return target == ErrInvalidInstrument }

type PaymentDeclinedError struct {
	TransactionID string
	Reason        string
}

func (e *PaymentDeclinedError) Error() string { return e.Reason }

func (e *PaymentDeclinedError) Is(target error) bool { return target == ErrPaymentDeclined }

// StorageErr wraps a datastore failure so callers can match ErrStorage.
func StorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
