package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func traceIDOf(c *gin.Context) string {
	return c.GetString("trace_id")
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: traceIDOf(c),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	RespondErrorWithData(c, code, message, nil)
}

func RespondErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceIDOf(c),
		Data:    data,
	})
}

func HandleServiceError(c *gin.Context, err error) {
	var insufficient *InsufficientTokensError
	var instrument *InstrumentError
	var declined *PaymentDeclinedError

	switch {
	case errors.As(err, &insufficient):
		RespondErrorWithData(c, http.StatusPaymentRequired, insufficient.Error(), gin.H{
			"action_type":  insufficient.Action,
			"required":     insufficient.Required,
			"available":    insufficient.Available,
			"purchase_url": "/payment/pricing",
		})
	case errors.Is(err, ErrInsufficientTokens):
		RespondError(c, http.StatusPaymentRequired, "Insufficient tokens")
	case errors.As(err, &instrument):
		RespondError(c, http.StatusBadRequest, instrument.Reason)
	case errors.As(err, &declined):
		RespondErrorWithData(c, http.StatusBadRequest, declined.Reason, gin.H{
			"transaction_id": declined.TransactionID,
		})
	case errors.Is(err, ErrUnknownAction),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidPageSize):
		RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		RespondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrEmailAlreadyExists):
		RespondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrSubjectNotFound),
		errors.Is(err, ErrNotFound):
		RespondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidState):
		RespondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrOAuthNotConfigured):
		RespondError(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrUnexpectedBehaviorOfAI):
		log.WithField("trace_id", traceIDOf(c)).Warnf("Language model error: %v", err)
		RespondError(c, http.StatusBadGateway, "Language model request failed")
	case errors.Is(err, ErrDatabaseError):
		log.WithField("trace_id", traceIDOf(c)).Errorf("Database error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	default:
		log.WithField("trace_id", traceIDOf(c)).Errorf("Unknown error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
