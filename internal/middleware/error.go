package middleware

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body written when middleware aborts a request
// before the handler produced one.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// abortWith stops the chain with a uniform error body. The request ID
// travels as trace_id so clients can quote it back.
func abortWith(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    status,
		Message: message,
		TraceID: c.GetString(ContextRequestID),
	})
}
