package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"exampattern/pkg/middleware"
	"exampattern/pkg/utils"
)

// currentUser returns the authenticated user id or writes a 401.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		utils.RespondError(c, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return userID, true
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, utils.ErrInvalidPageSize
	}
	return limit, nil
}
