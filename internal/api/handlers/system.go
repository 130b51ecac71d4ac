package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

type SystemHandler struct {
	checks   map[string]Check
	features map[string]bool
}

// NewSystemHandler builds health endpoints. checks gate readiness; features are
// reported only (a missing model or catalog leaves the service up but degraded).
func NewSystemHandler(checks map[string]Check, features map[string]bool) *SystemHandler {
	return &SystemHandler{checks: checks, features: features}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := map[string]string{}
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = "unavailable"
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	features := map[string]string{}
	for name, ok := range h.features {
		features[name] = map[bool]string{true: "enabled", false: "disabled"}[ok]
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks":   checks,
		"features": features,
	})
}
