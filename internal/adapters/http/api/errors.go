package api

import (
	"errors"
	"net/http"

	service "github.com/okian/dasha/internal/app"
)

// ErrBadRequest marks a body that could not be decoded or validated.
var ErrBadRequest = errors.New("bad request")

const codeBadRequest = "bad_request"

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	if errors.Is(err, ErrBadRequest) {
		return http.StatusBadRequest, codeBadRequest
	}
	kind := service.ErrorKind(err)
	switch kind {
	case service.KindInvalidInput:
		return http.StatusBadRequest, kind
	case service.KindUnknownSystem:
		return http.StatusNotFound, kind
	case service.KindMissingLongitude:
		return http.StatusUnprocessableEntity, kind
	case service.KindUnavailable:
		return http.StatusServiceUnavailable, kind
	default:
		return http.StatusInternalServerError, kind
	}
}
