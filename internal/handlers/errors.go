package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"apartment-locator/internal/clientimport"
	"apartment-locator/internal/edits"
	"apartment-locator/internal/scheduler"
)

// ErrMissingIdentity is returned when a write arrives without X-User-ID
var ErrMissingIdentity = errors.New("missing caller identity")

// ErrUnavailable marks an optional component that is not configured
var ErrUnavailable = errors.New("service unavailable")

// errorCode maps an error to its HTTP status and a stable machine-readable code
func errorCode(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingIdentity):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, edits.ErrValidation), errors.Is(err, clientimport.ErrUnsupportedFormat):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, edits.ErrInvalidResolution):
		return http.StatusBadRequest, "invalid_resolution"
	case errors.Is(err, edits.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, edits.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, edits.ErrConflictState):
		return http.StatusConflict, "conflict_state"
	case errors.Is(err, edits.ErrPersistence), errors.Is(err, ErrUnavailable),
		errors.Is(err, scheduler.ErrQueueFull), errors.Is(err, scheduler.ErrQueueStopped):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}

func respondError(c *gin.Context, err error) {
	status, code := errorCode(err)
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}

// badRequest reports a malformed payload
func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{
		"error": err.Error(),
		"code":  "bad_request",
	})
}
