// Package middleware implements the admission chain: panic recovery, CORS,
// request logging, rate limiting, and auth verification, composed in that
// order.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"aigateway/internal/response"

	"github.com/gin-gonic/gin"
)

// Recovery converts any panic in the chain into an INTERNAL_ERROR envelope
// instead of crashing the process. http.ErrAbortHandler means the client went
// away and is only logged.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					log.Warn("Client connection aborted", "path", c.Request.URL.Path)
					c.Abort()
					return
				}

				log.Error("Panic recovered",
					"error", recovered,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				response.AbortFail(c, http.StatusInternalServerError, response.CodeInternal, "internal server error")
			}
		}()
		c.Next()
	}
}
