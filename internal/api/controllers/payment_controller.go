package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"exampattern/internal/models/db_models"
	"exampattern/internal/models/request_models"
	"exampattern/internal/services"
	"exampattern/pkg/middleware"
	"exampattern/pkg/utils"
)

type PaymentController struct {
	ledger         services.LedgerServiceInterface
	settlement     services.SettlementServiceInterface
	accountService services.AccountServiceInterface
	mail           services.IMailService
}

func NewPaymentController(
	ledger services.LedgerServiceInterface,
	settlement services.SettlementServiceInterface,
	accountService services.AccountServiceInterface,
	mail services.IMailService,
) *PaymentController {
	return &PaymentController{
		ledger:         ledger,
		settlement:     settlement,
		accountService: accountService,
		mail:           mail,
	}
}

// Pricing godoc
// @Summary Action costs and purchasable token packs
// @Tags Payments
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /payment/pricing [get]
func (p *PaymentController) Pricing(c *gin.Context) {
	utils.RespondSuccess(c, p.ledger.Pricing(), "Pricing fetched successfully")
}

// TestCards godoc
// @Summary Cards accepted by the simulated processor
// @Tags Payments
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /payment/test-cards [get]
func (p *PaymentController) TestCards(c *gin.Context) {
	utils.RespondSuccess(c, p.settlement.TestCards(), "Test cards fetched successfully")
}

// Balance godoc
// @Summary Current token balance
// @Tags Payments
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/tokens [get]
func (p *PaymentController) Balance(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	balance, err := p.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, balance, "Balance fetched successfully")
}

// UsageHistory godoc
// @Summary Token usage log, newest first
// @Tags Payments
// @Produce json
// @Param limit query int false "Maximum entries (default 50, max 500)"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/tokens/history [get]
func (p *PaymentController) UsageHistory(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	history, err := p.ledger.UsageHistory(c.Request.Context(), userID, limit)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, history, "Usage history fetched successfully")
}

// TokenStatistics godoc
// @Summary Usage totals per action
// @Tags Payments
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/tokens/statistics [get]
func (p *PaymentController) TokenStatistics(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := p.ledger.Statistics(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, stats, "Token statistics fetched successfully")
}

// CheckTokens godoc
// @Summary Whether the caller can afford an action
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body request_models.CheckTokensRequest true "Action"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/check-tokens [post]
func (p *PaymentController) CheckTokens(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request_models.CheckTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	check, err := p.ledger.HasSufficient(c.Request.Context(), userID, services.ActionType(req.ActionType))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, check, "Token check completed")
}

// DeductTokens godoc
// @Summary Debit the cost of an action
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body request_models.DeductTokensRequest true "Debit"
// @Success 200 {object} utils.APIResponse
// @Failure 402 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/deduct-tokens [post]
func (p *PaymentController) DeductTokens(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request_models.DeductTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader("Idempotency-Key")
	}
	key = services.ClientIdempotencyKey(key)

	res, err := p.ledger.Debit(c.Request.Context(), userID, services.ActionType(req.ActionType), req.Description,
		services.UsageContext{
			ExamType: req.ExamType,
			Subject:  req.Subject,
			Topic:    req.Topic,
			Metadata: req.Metadata,
		}, key)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, res, "Tokens deducted successfully")
}

// Purchase godoc
// @Summary Buy a token pack with a test card
// @Description Runs the simulated card authorization and credits the ledger on approval
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body request_models.PurchaseRequest true "Purchase"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/purchase [post]
func (p *PaymentController) Purchase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request_models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	txn, err := p.settlement.Purchase(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	p.sendReceipt(c, userID, txn.TokensPurchased, txn.Amount+" "+txn.Currency, txn.ID)
	utils.RespondSuccess(c, txn, "Payment completed successfully")
}

// Transactions godoc
// @Summary Payment records, newest first
// @Tags Payments
// @Produce json
// @Param limit query int false "Maximum records"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/transactions [get]
func (p *PaymentController) Transactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	txns, err := p.settlement.TransactionHistory(c.Request.Context(), userID, limit)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, txns, "Transactions fetched successfully")
}

// PaymentStatistics godoc
// @Summary Payment totals per status
// @Tags Payments
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/statistics [get]
func (p *PaymentController) PaymentStatistics(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := p.settlement.Statistics(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, stats, "Payment statistics fetched successfully")
}

// AdminAddTokens godoc
// @Summary Grant tokens to a user
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request_models.AdminAddTokensRequest true "Grant"
// @Success 200 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/admin/add-tokens [post]
func (p *PaymentController) AdminAddTokens(c *gin.Context) {
	var req request_models.AdminAddTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	res, err := p.ledger.Credit(c.Request.Context(), req.UserID, req.Amount, db_models.ActionAdminGrant, req.IdempotencyKey)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	log.WithFields(log.Fields{
		"admin_id": c.GetString(middleware.ContextUserID),
		"user_id":  req.UserID,
		"amount":   req.Amount,
		"reason":   req.Reason,
	}).Info("admin token grant")
	utils.RespondSuccess(c, res, "Tokens added successfully")
}

// AdminRefund godoc
// @Summary Refund a completed purchase
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request_models.AdminRefundRequest true "Refund"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /payment/admin/refund [post]
func (p *PaymentController) AdminRefund(c *gin.Context) {
	var req request_models.AdminRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	txn, err := p.settlement.Refund(c.Request.Context(), req.TransactionID, req.UserID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, txn, "Transaction refunded successfully")
}

// sendReceipt never fails the request; the purchase is already settled.
func (p *PaymentController) sendReceipt(c *gin.Context, userID string, tokens int64, amount, txnID string) {
	if p.accountService == nil || p.mail == nil {
		return
	}
	profile, err := p.accountService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		log.WithField("user_id", userID).Warnf("receipt skipped, profile lookup failed: %v", err)
		return
	}
	if err := p.mail.SendPurchaseReceipt(profile.Email, tokens, amount, txnID); err != nil {
		log.WithField("transaction_id", txnID).Warnf("failed to send receipt: %v", err)
	}
}
