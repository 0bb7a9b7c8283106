package httpx

import (
	"errors"
	"net/http"

	"github.com/phoenix-garage/garage/internal/shared"
)

// ErrBadRequest marks malformed request bodies.
var ErrBadRequest = errors.New("malformed request")

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, shared.ErrStorage), errors.Is(err, shared.ErrUpload):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as an error envelope.
func RespondError(w http.ResponseWriter, err error) {
	msg := shared.UserSafeMessage(err)
	if errors.Is(err, ErrBadRequest) {
		msg = err.Error()
	}
	Fail(w, StatusFor(err), msg)
}
