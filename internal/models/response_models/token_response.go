package response_models

import "gorm.io/datatypes"

type TokenBalanceResponse struct {
	Available int64  `json:"available_tokens"`
	Used      int64  `json:"used_tokens"`
	Purchased int64  `json:"total_purchased"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type TokenCheckResponse struct {
	ActionType    string `json:"action_type"`
	Required      int64  `json:"required"`
	Available     int64  `json:"available"`
	HasSufficient bool   `json:"has_sufficient"`
}

type DebitResponse struct {
	ActionType string `json:"action_type"`
	Deducted   int64  `json:"deducted"`
	Remaining  int64  `json:"remaining"`
	EntryID    string `json:"entry_id"`
	Replayed   bool   `json:"replayed,omitempty"`
}

type CreditResponse struct {
	Added     int64  `json:"added"`
	Available int64  `json:"available"`
	EntryID   string `json:"entry_id"`
	Replayed  bool   `json:"replayed,omitempty"`
}

type AdjustResponse struct {
	Requested int64 `json:"requested"`
	Applied   int64 `json:"applied"`
	Available int64 `json:"available"`
}

type UsageLogResponse struct {
	ID          string         `json:"id"`
	ActionType  string         `json:"action_type"`
	Amount      int64          `json:"tokens_used"`
	Description string         `json:"description,omitempty"`
	ExamType    string         `json:"exam_type,omitempty"`
	Subject     string         `json:"subject,omitempty"`
	Topic       string         `json:"topic,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

type TokenStatisticsResponse struct {
	Balance        TokenBalanceResponse `json:"balance"`
	UsageByAction  map[string]int64     `json:"usage_by_action"`
	TotalUsed      int64                `json:"total_used"`
	TotalPurchased int64                `json:"total_purchased"`
	EntryCount     int                  `json:"entry_count"`
}

type PricingTier struct {
	Tokens   int64  `json:"tokens"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

type PricingResponse struct {
	ActionCosts map[string]int64 `json:"action_costs"`
	Tiers       []PricingTier    `json:"tiers"`
}
