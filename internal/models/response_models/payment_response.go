package response_models

type TransactionResponse struct {
	ID              string `json:"id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	TokensPurchased int64  `json:"tokens_purchased"`
	PaymentMethod   string `json:"payment_method"`
	Status          string `json:"status"`
	CardLast4       string `json:"card_last4,omitempty"`
	CardBrand       string `json:"card_brand,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
	TokensReversed  int64  `json:"tokens_reversed,omitempty"`
	CreatedAt       string `json:"created_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
	RefundedAt      string `json:"refunded_at,omitempty"`
}

type PaymentStatisticsResponse struct {
	TotalTransactions    int               `json:"total_transactions"`
	CountByStatus        map[string]int    `json:"count_by_status"`
	AmountByStatus       map[string]string `json:"amount_by_status"`
	TotalTokensPurchased int64             `json:"total_tokens_purchased"`
	TotalSpent           string            `json:"total_spent"`
	Currency             string            `json:"currency"`
}

type TestCardResponse struct {
	Number      string `json:"number"`
	Brand       string `json:"brand"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVC         string `json:"cvc"`
	Description string `json:"description"`
}
