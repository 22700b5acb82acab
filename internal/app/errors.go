package service

import (
	"context"
	"errors"

	"github.com/okian/dasha/internal/adapters/worker"
	"github.com/okian/dasha/internal/domain/dasha"
	"github.com/okian/dasha/internal/domain/ephemeris"
)

// ErrNoLongitude reports a request with neither a longitude nor a location
// the configured resolver could turn into one.
var ErrNoLongitude = errors.New("no longitude given and none can be resolved")

// Error kinds used as metric labels and API error codes.
const (
	KindInvalidInput     = "invalid_input"
	KindUnknownSystem    = "unknown_system"
	KindMissingLongitude = "missing_longitude"
	KindUnavailable      = "unavailable"
	KindInternal         = "internal"
)

// ErrorKind classifies err for callers that map errors to codes.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, dasha.ErrUnknownSystem):
		return KindUnknownSystem
	case errors.Is(err, dasha.ErrInputDomain), errors.Is(err, ephemeris.ErrInvalidQuery):
		return KindInvalidInput
	case errors.Is(err, ErrNoLongitude):
		return KindMissingLongitude
	case errors.Is(err, worker.ErrPoolStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindUnavailable
	default:
		return KindInternal
	}
}
