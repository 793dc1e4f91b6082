package services

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"exampattern/internal/config"
	"exampattern/internal/models/response_models"
	"exampattern/pkg/utils"
)

// ActionType names a billable analysis action.
type ActionType string

const (
	ActionSubjectAnalysis   ActionType = "subjectAnalysis"
	ActionTopicAnalysis     ActionType = "topicAnalysis"
	ActionVisualData        ActionType = "visualData"
	ActionExamValidation    ActionType = "examValidation"
	ActionSubjectGeneration ActionType = "subjectGeneration"
)

var billableActions = []ActionType{
	ActionSubjectAnalysis,
	ActionTopicAnalysis,
	ActionVisualData,
	ActionExamValidation,
	ActionSubjectGeneration,
}

// CostTable maps every billable action to its token cost.
type CostTable map[ActionType]int64

func DefaultCostTable() CostTable {
	return CostTable{
		ActionSubjectAnalysis:   15,
		ActionTopicAnalysis:     20,
		ActionVisualData:        25,
		ActionExamValidation:    10,
		ActionSubjectGeneration: 12,
	}
}

// NewCostTable starts from the defaults and applies configured overrides.
// Keys that are not billable actions are rejected.
func NewCostTable(cfg config.LedgerConfig) (CostTable, error) {
	table := DefaultCostTable()
	for name, cost := range cfg.ActionCosts {
		action := ActionType(name)
		if _, ok := table[action]; !ok {
			return nil, fmt.Errorf("unknown action %q in cost configuration", name)
		}
		if cost <= 0 {
			return nil, fmt.Errorf("cost for %s must be positive", name)
		}
		table[action] = cost
	}
	return table, nil
}

func (c CostTable) Cost(action ActionType) (int64, error) {
	cost, ok := c[action]
	if !ok {
		return 0, fmt.Errorf("%w: %s", utils.ErrUnknownAction, action)
	}
	return cost, nil
}

// BillableActions lists the catalogue in a stable order.
func BillableActions() []ActionType {
	out := make([]ActionType, len(billableActions))
	copy(out, billableActions)
	return out
}

func (c CostTable) AsMap() map[string]int64 {
	out := make(map[string]int64, len(c))
	for k, v := range c {
		out[string(k)] = v
	}
	return out
}

// PriceTier is a purchasable token bundle.
type PriceTier struct {
	Tokens int64
	Price  decimal.Decimal
}

const Currency = "USD"

var pricingTiers = []PriceTier{
	{Tokens: 100, Price: decimal.RequireFromString("9.99")},
	{Tokens: 250, Price: decimal.RequireFromString("19.99")},
	{Tokens: 500, Price: decimal.RequireFromString("34.99")},
	{Tokens: 1000, Price: decimal.RequireFromString("59.99")},
	{Tokens: 2500, Price: decimal.RequireFromString("129.99")},
}

func PricingTiers() []PriceTier {
	out := make([]PriceTier, len(pricingTiers))
	copy(out, pricingTiers)
	sort.Slice(out, func(i, j int) bool { return out[i].Tokens < out[j].Tokens })
	return out
}

// PriceFor returns the bundle price for tokens, or ErrInvalidAmount when no
// tier sells exactly that many.
func PriceFor(tokens int64) (decimal.Decimal, error) {
	for _, tier := range pricingTiers {
		if tier.Tokens == tokens {
			return tier.Price, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: no pricing tier for %d tokens", utils.ErrInvalidAmount, tokens)
}

func buildPricingResponse(costs CostTable) *response_models.PricingResponse {
	tiers := PricingTiers()
	resp := &response_models.PricingResponse{
		ActionCosts: costs.AsMap(),
		Tiers:       make([]response_models.PricingTier, 0, len(tiers)),
	}
	for _, t := range tiers {
		resp.Tiers = append(resp.Tiers, response_models.PricingTier{
			Tokens:   t.Tokens,
			Price:    t.Price.StringFixed(2),
			Currency: Currency,
		})
	}
	return resp
}
