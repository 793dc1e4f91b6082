package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"exampattern/pkg/utils"
)

// HealthCheck reports whether a backing store answers.
type HealthCheck func(ctx context.Context) error

// HealthProbe names a HealthCheck so infrastructure providers can register
// their own probes.
type HealthProbe struct {
	Name  string
	Check HealthCheck
}

type HealthController struct {
	checks map[string]HealthCheck
}

func NewHealthController(probes []HealthProbe) *HealthController {
	checks := make(map[string]HealthCheck, len(probes))
	for _, p := range probes {
		checks[p.Name] = p.Check
	}
	return &HealthController{checks: checks}
}

// Health godoc
// @Summary Liveness and dependency status
// @Tags Health
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 503 {object} utils.APIResponse
// @Router /health [get]
func (h *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		utils.RespondErrorWithData(c, http.StatusServiceUnavailable, "Degraded", status)
		return
	}
	utils.RespondSuccess(c, status, "OK")
}
