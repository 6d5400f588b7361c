package api

import (
	"errors"
	"net/http"
	"time"

	"aigateway/internal/crypto"
	"aigateway/internal/middleware"
	"aigateway/internal/model"
	"aigateway/internal/response"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// RegisterHandler creates an account and issues a session. Failures are
// reported generically so callers cannot enumerate which field collided.
func (h *Handler) RegisterHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, "username, email, and password are required")
		return
	}

	if err := crypto.ValidatePassword(req.Password); err != nil {
		var policyErr *crypto.PolicyError
		if errors.As(err, &policyErr) {
			response.Fail(c, http.StatusBadRequest, response.CodeValidation, policyErr.Reason)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, "invalid password")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Password hashing failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "registration failed")
		return
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         "user",
		Tier:         "free",
		Active:       true,
	}
	if err := h.db.CreateUser(user); err != nil {
		// Most likely a unique collision; the detail stays server-side.
		h.logger.Warn("Registration rejected", "username", req.Username, "error", err)
		response.Fail(c, http.StatusConflict, response.CodeValidation, "registration failed")
		return
	}

	h.issueSession(c, user, http.StatusCreated)
}

// LoginHandler verifies credentials and issues a session token in the body
// and as an httpOnly cookie. The same generic error covers an unknown email
// and a wrong password.
func (h *Handler) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.CodeValidation, "email and password are required")
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if err != nil {
		h.logger.Warn("Login failed: unknown email", "email", req.Email)
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid credentials")
		return
	}
	if err := crypto.CheckPassword(req.Password, user.PasswordHash); err != nil {
		h.logger.Warn("Login failed: bad password", "user_id", user.ID)
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid credentials")
		return
	}
	if !user.Active {
		h.logger.Warn("Login rejected: inactive account", "user_id", user.ID)
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid credentials")
		return
	}

	if err := h.db.UpdateUserLastLogin(user.ID, time.Now()); err != nil {
		h.logger.Warn("Failed to stamp last login", "user_id", user.ID, "error", err)
	}
	h.issueSession(c, user, http.StatusOK)
}

// LogoutHandler clears the session cookie. The token itself stays valid until
// natural expiry; no revocation list exists.
func (h *Handler) LogoutHandler(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", false, true)
	response.OK(c, http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) issueSession(c *gin.Context, user *model.User, status int) {
	signed, err := h.tokens.Generate(user.ID, user.Email, []string{user.Role}, h.tokenTTL)
	if err != nil {
		h.logger.Error("Token issuance failed", "user_id", user.ID, "error", err)
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "failed to issue session")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, signed, int(h.tokenTTL.Seconds()), "/", "", false, true)
	response.OK(c, status, authResponse{Token: signed, User: user})
}

// RefreshHandler re-signs the caller's claims with fresh timestamps to
// support sliding sessions.
func (h *Handler) RefreshHandler(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
		return
	}
	signed, err := h.tokens.Refresh(claims, h.tokenTTL)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.CodeInternal, "failed to refresh session")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, signed, int(h.tokenTTL.Seconds()), "/", "", false, true)
	response.OK(c, http.StatusOK, gin.H{"token": signed})
}
