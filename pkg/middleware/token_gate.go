package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"exampattern/internal/models/response_models"
	"exampattern/pkg/utils"
)

const ContextTokenCheck = "token_check"

// BalanceChecker is the slice of the ledger the gate needs.
type BalanceChecker interface {
	CheckAction(c *gin.Context, userID, action string) (*response_models.TokenCheckResponse, error)
}

// BalanceCheckFunc adapts a plain function to BalanceChecker.
type BalanceCheckFunc func(c *gin.Context, userID, action string) (*response_models.TokenCheckResponse, error)

func (f BalanceCheckFunc) CheckAction(c *gin.Context, userID, action string) (*response_models.TokenCheckResponse, error) {
	return f(c, userID, action)
}

// RequireTokens stops the request with 402 when the caller cannot afford
// action. Nothing is debited here; the handler debits once its work succeeds.
func RequireTokens(checker BalanceChecker, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			utils.RespondError(c, http.StatusUnauthorized, "Authentication required")
			c.Abort()
			return
		}

		check, err := checker.CheckAction(c, userID, action)
		if err != nil {
			utils.HandleServiceError(c, err)
			c.Abort()
			return
		}
		if !check.HasSufficient {
			utils.RespondErrorWithData(c, http.StatusPaymentRequired, "Insufficient tokens", gin.H{
				"action_type":  check.ActionType,
				"required":     check.Required,
				"available":    check.Available,
				"purchase_url": "/payment/pricing",
			})
			c.Abort()
			return
		}

		c.Set(ContextTokenCheck, check)
		c.Next()
	}
}
