package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"aigateway/internal/db"
	"aigateway/internal/model"
	"aigateway/internal/response"
	"aigateway/internal/token"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware.
const (
	ContextUserKey   = "current_user"
	ContextUserIDKey = "current_user_id"
	ContextClaimsKey = "current_claims"
)

// AuthCookieName is the session cookie issued at login.
const AuthCookieName = "auth_token"

// extractToken pulls the bearer token from the Authorization header, falling
// back to the session cookie.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if cookie, err := c.Cookie(AuthCookieName); err == nil {
		return cookie
	}
	return ""
}

// Auth verifies the caller's token and attaches the resolved identity to the
// request context. Routes behind it never run for unauthenticated, expired,
// or deactivated callers.
func Auth(tokens *token.Manager, database db.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
			return
		}

		claims, err := tokens.Validate(raw)
		if err != nil {
			log.Debug("Token rejected", "path", c.Request.URL.Path, "error", err)
			response.AbortFail(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			return
		}

		user, err := database.GetUserByID(claims.UserID)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			return
		}
		if !user.Active {
			response.AbortFail(c, http.StatusForbidden, response.CodeForbidden, "account is deactivated")
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present but never
// rejects the request. Used on proxied routes where the backend decides what
// anonymous callers may do.
func OptionalAuth(tokens *token.Manager, database db.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			c.Next()
			return
		}
		claims, err := tokens.Validate(raw)
		if err != nil {
			c.Next()
			return
		}
		user, err := database.GetUserByID(claims.UserID)
		if err != nil || !user.Active {
			c.Next()
			return
		}
		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextClaimsKey, claims)
		c.Next()
	}
}

// CurrentUser returns the identity attached by Auth, if any.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}

// CurrentClaims returns the token claims attached by Auth, if any.
func CurrentClaims(c *gin.Context) (*token.Claims, bool) {
	v, ok := c.Get(ContextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}
