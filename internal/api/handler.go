// Package api wires the gateway's local HTTP surface: auth, vault, and
// ledger endpoints, plus the health probe view.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"aigateway/internal/db"
	"aigateway/internal/quota"
	"aigateway/internal/response"
	"aigateway/internal/token"
	"aigateway/internal/vault"

	"github.com/gin-gonic/gin"
)

// BackendHealth is what the handler needs from the health prober.
type BackendHealth interface {
	Healthy() bool
}

// Handler serves the gateway's local endpoints.
type Handler struct {
	db       db.Service
	tokens   *token.Manager
	vault    *vault.Vault
	ledger   *quota.Ledger
	health   BackendHealth
	tokenTTL time.Duration
	logger   *slog.Logger
}

// NewHandler builds the handler with injected dependencies.
func NewHandler(database db.Service, tokens *token.Manager, v *vault.Vault, ledger *quota.Ledger, health BackendHealth, tokenTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		db:       database,
		tokens:   tokens,
		vault:    v,
		ledger:   ledger,
		health:   health,
		tokenTTL: tokenTTL,
		logger:   logger.With("component", "api"),
	}
}

// HealthHandler reports gateway health, downgraded to "degraded" while the
// backend probe fails. The gateway itself stays up either way, so this is
// always a 200.
func (h *Handler) HealthHandler(c *gin.Context) {
	status := "ok"
	backendUp := h.health == nil || h.health.Healthy()
	if !backendUp {
		status = "degraded"
	}
	response.OK(c, http.StatusOK, gin.H{
		"status":  status,
		"backend": backendUp,
	})
}
