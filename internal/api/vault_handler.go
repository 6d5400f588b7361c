package api

import (
	"errors"
	"net/http"

	"aigateway/internal/middleware"
	"aigateway/internal/provider"
	"aigateway/internal/response"
	"aigateway/internal/vault"

	"github.com/gin-gonic/gin"
)

type upsertKeyRequest struct {
	Provider      string   `json:"provider" binding:"required"`
	APIKey        string   `json:"api_key" binding:"required"`
	ModelsEnabled []string `json:"models_enabled"`
}

// ListKeysHandler returns the caller's credentials without any key material.
func (h *Handler) ListKeysHandler(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}
	keys, err := h.vault.GetAllByUser(user.ID)
	if err != nil {
		h.logger.Error("Failed to list provider keys", "user_id", user.ID, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "failed to list keys")
		return
	}
	response.OK(c, http.StatusOK, keys)
}

// UpsertKeyHandler stores or replaces one provider credential for the caller.
func (h *Handler) UpsertKeyHandler(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}
	var req upsertKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, "provider and api_key are required")
		return
	}
	prov, err := provider.Parse(req.Provider)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	models := req.ModelsEnabled
	if len(models) == 0 {
		if info, ok := provider.Lookup(prov); ok {
			models = info.DefaultModels
		}
	}
	if err := h.vault.CreateOrUpdate(user.ID, prov, req.APIKey, models); err != nil {
		if errors.Is(err, vault.ErrEmptyKey) {
			response.Fail(c, http.StatusBadRequest, response.CodeValidation, err.Error())
			return
		}
		h.logger.Error("Failed to store provider key", "user_id", user.ID, "provider", prov.String(), "error", err)
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "failed to store key")
		return
	}
	response.OK(c, http.StatusOK, gin.H{"provider": prov.String(), "models_enabled": models})
}

// GetKeyHandler returns the decrypted credential. This is the narrow
// plaintext path for server-to-server use; the read stamps lastUsedAt.
func (h *Handler) GetKeyHandler(c *gin.Context) {
	user, prov, ok := h.keyRouteTarget(c)
	if !ok {
		return
	}
	plaintext, err := h.vault.GetByUserAndProvider(user, prov)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrNotFound), errors.Is(err, vault.ErrKeyRevoked):
			response.Fail(c, http.StatusNotFound, response.CodeNotFound, "provider key not found")
		default:
			h.logger.Error("Failed to read provider key", "user_id", user, "provider", prov.String(), "error", err)
			response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "failed to read key")
		}
		return
	}
	response.OK(c, http.StatusOK, gin.H{"provider": prov.String(), "api_key": plaintext})
}

// DeleteKeyHandler soft-deletes the credential; it can be restored later.
func (h *Handler) DeleteKeyHandler(c *gin.Context) {
	user, prov, ok := h.keyRouteTarget(c)
	if !ok {
		return
	}
	if err := h.vault.Delete(user, prov); err != nil {
		h.keyMutationError(c, user, prov.String(), err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"provider": prov.String(), "active": false})
}

// RestoreKeyHandler reactivates a soft-deleted credential.
func (h *Handler) RestoreKeyHandler(c *gin.Context) {
	user, prov, ok := h.keyRouteTarget(c)
	if !ok {
		return
	}
	if err := h.vault.Restore(user, prov); err != nil {
		h.keyMutationError(c, user, prov.String(), err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"provider": prov.String(), "active": true})
}

// HardDeleteKeyHandler permanently removes the credential. Admin only.
func (h *Handler) HardDeleteKeyHandler(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}
	if !caller.IsAdmin() {
		response.Fail(c, http.StatusForbidden, response.CodeForbidden, "admin role required")
		return
	}
	user, prov, ok := h.keyRouteTarget(c)
	if !ok {
		return
	}
	if err := h.vault.HardDelete(user, prov); err != nil {
		h.keyMutationError(c, user, prov.String(), err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"provider": prov.String(), "deleted": true})
}

// keyRouteTarget resolves the authenticated caller and the :provider param.
func (h *Handler) keyRouteTarget(c *gin.Context) (uint, provider.Provider, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return 0, "", false
	}
	prov, err := provider.Parse(c.Param("provider"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return 0, "", false
	}
	return user.ID, prov, true
}

func (h *Handler) keyMutationError(c *gin.Context, userID uint, prov string, err error) {
	if errors.Is(err, vault.ErrNotFound) {
		response.Fail(c, http.StatusNotFound, response.CodeNotFound, "provider key not found")
		return
	}
	h.logger.Error("Provider key mutation failed", "user_id", userID, "provider", prov, "error", err)
	response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "failed to update key")
}
