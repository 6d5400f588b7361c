package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"aigateway/internal/middleware"
	"aigateway/internal/quota"
	"aigateway/internal/response"

	"github.com/gin-gonic/gin"
)

// defaultTokenEstimate is charged against the quota check when a billable
// request does not declare max_tokens.
const defaultTokenEstimate = 1024

// maxGateBody bounds how much of a request body the gate will buffer.
const maxGateBody = 1 << 20

// QuotaGate denies billable proxied operations that would push the caller
// past a ceiling. The check-then-forward pair is deliberately not atomic; a
// bounded transient over-admission of one in-flight request is accepted.
func QuotaGate(ledger *quota.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			response.AbortFail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required")
			return
		}

		tokensNeeded := int64(defaultTokenEstimate)
		modelName := ""
		if c.Request.Body != nil {
			rest := c.Request.Body
			body, err := io.ReadAll(io.LimitReader(rest, maxGateBody))
			if err == nil {
				// The full body must survive for the proxy downstream,
				// including anything beyond what the hint peek buffered.
				c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), rest))
				var hint struct {
					Model     string `json:"model"`
					MaxTokens int64  `json:"max_tokens"`
				}
				if json.Unmarshal(body, &hint) == nil {
					if hint.MaxTokens > 0 {
						tokensNeeded = hint.MaxTokens
					}
					modelName = hint.Model
				}
			}
		}

		if !ledger.CheckQuota(user.ID, tokensNeeded, modelName) {
			response.AbortFail(c, http.StatusTooManyRequests, response.CodeQuotaExceeded, "quota exceeded")
			return
		}
		c.Next()
	}
}
