// Package response defines the uniform JSON envelope every gateway endpoint
// and middleware answers with.
package response

import "github.com/gin-gonic/gin"

// Error codes of the gateway's failure taxonomy.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeQuotaExceeded = "QUOTA_EXCEEDED"
	CodeRateLimited   = "RATE_LIMITED"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL_ERROR"
	CodeServiceDown   = "SERVICE_DOWN"
	CodeUpstream      = "UPSTREAM_ERROR"
)

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Envelope is the wire shape of every response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// OK writes a success envelope with the given status.
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// Fail writes an error envelope with the given status.
func Fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}

// FailWithDetails writes an error envelope carrying structured details.
func FailWithDetails(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message, Details: details}})
}

// AbortFail writes an error envelope and aborts the middleware chain.
func AbortFail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Error: &ErrorBody{Code: code, Message: message}})
}
