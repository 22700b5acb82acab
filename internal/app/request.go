package service

import (
	"time"

	"github.com/okian/dasha/internal/domain/dasha"
	"github.com/okian/dasha/internal/domain/ephemeris"
)

// Request asks for one timeline. Zero values fall back to service defaults;
// Lookahead is a pointer because zero is a meaningful value.
type Request struct {
	System    string              `json:"system,omitempty"`
	At        time.Time           `json:"at"`
	Longitude *float64            `json:"longitude,omitempty"`
	Location  *ephemeris.Location `json:"location,omitempty"`
	Body      ephemeris.Body      `json:"body,omitempty"`
	Depth     int                 `json:"depth,omitempty"`
	Lookahead *int                `json:"lookahead,omitempty"`
}

// Result is one entry of a batch, in request order.
type Result struct {
	ID       string          `json:"id"`
	Timeline *dasha.Timeline `json:"timeline,omitempty"`
	Err      error           `json:"-"`
}

// SystemInfo describes a registered system.
type SystemInfo struct {
	Name        string         `json:"name"`
	CycleYears  float64        `json:"cycle_years"`
	DaysPerYear float64        `json:"days_per_year"`
	Lords       []dasha.Lord   `json:"lords"`
	Buckets     int            `json:"buckets"`
	Spans       []dasha.Bucket `json:"spans,omitempty"`
}

func describe(sys *dasha.System, withSpans bool) SystemInfo {
	info := SystemInfo{
		Name:        sys.Name(),
		CycleYears:  sys.CycleYears(),
		DaysPerYear: sys.DaysPerYear(),
		Lords:       sys.Lords(),
		Buckets:     sys.Spans().Len(),
	}
	if withSpans {
		info.Spans = sys.Spans().Buckets()
	}
	return info
}
