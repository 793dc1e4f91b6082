package request_models

type CheckTokensRequest struct {
	ActionType string `json:"action_type" binding:"required"`
}

type DeductTokensRequest struct {
	ActionType     string         `json:"action_type" binding:"required"`
	Description    string         `json:"description"`
	ExamType       string         `json:"exam_type"`
	Subject        string         `json:"subject"`
	Topic          string         `json:"topic"`
	Metadata       map[string]any `json:"metadata"`
	IdempotencyKey string         `json:"idempotency_key" binding:"max=128"`
}

type CardDetails struct {
	Number      string `json:"number" binding:"required"`
	ExpiryMonth int    `json:"expiry_month" binding:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" binding:"required"`
	CVC         string `json:"cvc" binding:"required"`
	Holder      string `json:"holder_name"`
}

type PurchaseRequest struct {
	Tokens int64       `json:"tokens"`
	Card   CardDetails `json:"card" binding:"required"`
}

type AdminAddTokensRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key" binding:"max=128"`
}

type AdminRefundRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
}
