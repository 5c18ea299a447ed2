package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lifehub/reminder-engine/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, code int, data interface{}) {
	c.JSON(code, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError maps an application error onto an HTTP status and
// sends the envelope. Plain errors are treated as internal and their
// details are not exposed.
func RespondWithError(c *gin.Context, err error) {
	var message string
	if appErr, ok := err.(*errors.AppError); ok {
		message = appErr.Message
	} else {
		message = "internal server error"
	}

	c.JSON(statusFor(errors.Code(err)), Response{
		Status:  "error",
		Message: message,
	})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrValidation:
		return http.StatusBadRequest
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrInvalidState, errors.ErrSnoozeLimit:
		return http.StatusConflict
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
