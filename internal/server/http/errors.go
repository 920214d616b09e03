package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/gin-gonic/gin"
)

const (
	codeValidation        = "VALIDATION_ERROR"
	codeRequestValidation = "REQUEST_VALIDATION_ERROR"
	codeInvalidCreds      = "INVALID_CREDENTIALS"
	codeUnauthorized      = "UNAUTHORIZED"
	codeNotFound          = "NOT_FOUND"
	codeConflict          = "CONFLICT"
	codeUnavailable       = "SERVICE_UNAVAILABLE"
	codeInternal          = "INTERNAL_ERROR"
	codeTooManyRequests   = "TOO_MANY_REQUESTS"
)

type errorBody struct {
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// timeNow is replaced in tests.
var timeNow = time.Now

func abortWith(c *gin.Context, status int, code, message string, fields map[string]string) {
	c.AbortWithStatusJSON(status, errorBody{
		Status:    status,
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
		Timestamp: timeNow().UTC().Format(time.RFC3339Nano),
		Errors:    fields,
	})
}

// abortWithError maps a service error to a response. Only *common.Error
// messages reach the client.
func abortWithError(c *gin.Context, err error) {
	status, code := classify(err)

	message := http.StatusText(status)
	var ce *common.Error
	if errors.As(err, &ce) {
		message = ce.Message
	} else if status != http.StatusInternalServerError {
		message = err.Error()
	}

	abortWith(c, status, code, message, nil)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, codeInvalidCreds
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, codeConflict
	case errors.Is(err, common.ErrorServiceUnavailable):
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
