// internal/errors/errors.go
package errors

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"

	"gorm.io/gorm"
)

// Domain sentinels. Handlers match on these to pick a response shape;
// ErrProfileRequired in particular must stay distinguishable so the
// client can redirect to profile creation instead of showing a
// generic failure.
var (
	ErrProfileRequired    = errors.New("pet profile required")
	ErrInvalidCoordinate  = errors.New("invalid coordinate")
	ErrInvalidActionKind  = errors.New("invalid action kind")
	ErrSelfAction         = errors.New("cannot act on own pet")
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Storage classifies connection-level failures as
// ErrStorageUnavailable so the HTTP layer can signal a retry to the
// client; the core itself never retries. Domain and query errors
// (including gorm.ErrRecordNotFound) pass through unchanged.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}

// HTTPStatus converts repo/service errors into an HTTP status code.
// Keeps the handler layer clean by centralizing error mapping.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrProfileRequired):
		return http.StatusPreconditionFailed

	case errors.Is(err, ErrInvalidCoordinate), errors.Is(err, ErrInvalidActionKind), errors.Is(err, ErrSelfAction):
		return http.StatusBadRequest

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return 499 // client closed request

	default:
		return http.StatusInternalServerError
	}
}

// Code returns the machine-readable error code used in JSON responses.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrProfileRequired):
		return "profile_required"
	case errors.Is(err, ErrInvalidCoordinate):
		return "invalid_coordinate"
	case errors.Is(err, ErrInvalidActionKind):
		return "invalid_action_kind"
	case errors.Is(err, ErrSelfAction):
		return "self_action"
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
