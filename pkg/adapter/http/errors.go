package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a domain error code to an HTTP status.
func statusFor(code metadata.ErrorCode) int {
	switch code {
	case metadata.ErrNotFound:
		return http.StatusNotFound
	case metadata.ErrForbidden, metadata.ErrBlocked:
		return http.StatusForbidden
	case metadata.ErrValidation, metadata.ErrSelfReference:
		return http.StatusBadRequest
	case metadata.ErrQuotaExceeded:
		return http.StatusRequestEntityTooLarge
	case metadata.ErrAlreadyExists, metadata.ErrAlreadyFriends, metadata.ErrDuplicateRequest:
		return http.StatusConflict
	case metadata.ErrUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the response for err and stops the handler chain.
// Domain errors keep their message; anything else is logged and reported
// as an internal error.
func abortWithError(c *gin.Context, err error) {
	if code, ok := metadata.CodeOf(err); ok {
		c.AbortWithStatusJSON(statusFor(code), errorBody{Error: errorDetail{
			Code:    code.String(),
			Message: err.Error(),
		}})
		return
	}

	if errors.Is(err, context.Canceled) {
		// Client went away
		c.Abort()
		return
	}

	logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: errorDetail{
		Code:    "internal",
		Message: "internal server error",
	}})
}

// badRequest reports malformed input that never reached a service.
func badRequest(c *gin.Context, format string, args ...any) {
	abortWithError(c, metadata.NewValidationError("request", format, args...))
}
