// Package ephemeris declares the astronomical collaborator the service
// consumes to turn a reference instant and place into a sidereal longitude.
//
// No implementation lives here. Settings that other tools keep as
// process-wide state travel with every Query instead.
package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidQuery marks a query the resolver cannot answer as posed.
var ErrInvalidQuery = errors.New("invalid ephemeris query")

// Body is the celestial body whose longitude is requested.
type Body string

// Bodies used by the period systems.
const (
	Moon Body = "moon"
	Sun  Body = "sun"
)

// Location is a point on Earth in decimal degrees and metres.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude,omitempty"`
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	switch {
	case math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90:
		return fmt.Errorf("%w: latitude %g", ErrInvalidQuery, l.Latitude)
	case math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180:
		return fmt.Errorf("%w: longitude %g", ErrInvalidQuery, l.Longitude)
	}
	return nil
}

// Settings configure a single resolution.
type Settings struct {
	// Path to ephemeris data files.
	Path string
	// Mode selects the calculation backend, e.g. "moshier" or "swiss".
	Mode string
}

// Query asks for the longitude of Body at At as seen from Location.
type Query struct {
	At       time.Time
	Location Location
	Body     Body
	Settings Settings
}

// Validate checks the query before it reaches a resolver.
func (q Query) Validate() error {
	if q.At.IsZero() {
		return fmt.Errorf("%w: reference instant is zero", ErrInvalidQuery)
	}
	if strings.TrimSpace(string(q.Body)) == "" {
		return fmt.Errorf("%w: body is empty", ErrInvalidQuery)
	}
	return q.Location.Validate()
}

// Resolver returns the sidereal longitude in degrees [0,360) for q.
type Resolver interface {
	Longitude(ctx context.Context, q Query) (float64, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, q Query) (float64, error)

// Longitude calls f.
func (f ResolverFunc) Longitude(ctx context.Context, q Query) (float64, error) {
	return f(ctx, q)
}
