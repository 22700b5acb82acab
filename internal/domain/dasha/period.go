package dasha

import "time"

// Period is one node of a timeline tree.
//
// Start and End are the raw bounds implied by the cycle. DisplayStart is
// max(Start, reference): only the leftmost chain of a timeline, the periods
// already running at the reference instant, has DisplayStart after Start.
// PrunedYears is the length of children that ended at or before the
// reference instant and were therefore not emitted; the children's Years plus
// PrunedYears always equal Years.
type Period struct {
	Lord         string    `json:"lord"`
	Level        int       `json:"level"`
	Start        time.Time `json:"start"`
	DisplayStart time.Time `json:"display_start"`
	End          time.Time `json:"end"`
	Years        float64   `json:"years"`
	PrunedYears  float64   `json:"pruned_years,omitempty"`
	IsBalance    bool      `json:"is_balance"`
	Children     []Period  `json:"children,omitempty"`
}

// LevelName returns the conventional name of the period's level.
func (p Period) LevelName() string { return LevelName(p.Level) }

// Duration returns the raw calendar length of the period.
func (p Period) Duration() time.Duration { return p.End.Sub(p.Start) }

// Clipped reports whether the period started before the reference instant.
func (p Period) Clipped() bool { return p.DisplayStart.After(p.Start) }

// Contains reports whether t falls in [DisplayStart, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.DisplayStart) && t.Before(p.End)
}
