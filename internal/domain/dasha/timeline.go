package dasha

import (
	"fmt"
	"math/big"
	"time"
)

// Timeline is the ordered list of top-level periods beginning with the
// balance period, plus the metadata that anchored it.
type Timeline struct {
	System       string    `json:"system"`
	Reference    time.Time `json:"reference"`
	Longitude    float64   `json:"longitude"`
	StartLord    string    `json:"start_lord"`
	BalanceYears float64   `json:"balance_years"`
	Origin       time.Time `json:"origin"`
	Depth        int       `json:"depth"`
	Periods      []Period  `json:"periods"`
}

// ComputeTimeline resolves the balance for longitude, back-dates the
// starting period to its origin and emits it followed by lookahead further
// top-level periods, each subdivided to depth levels in total. Periods that
// end at or before reference are dropped at every level.
func ComputeTimeline(reference time.Time, longitude float64, sys *System, depth, lookahead int) (Timeline, error) {
	switch {
	case sys == nil:
		return Timeline{}, fmt.Errorf("%w: no period system given", ErrInputDomain)
	case reference.IsZero():
		return Timeline{}, fmt.Errorf("%w: reference instant is zero", ErrInputDomain)
	case depth < 1 || depth > MaxDepth:
		return Timeline{}, fmt.Errorf("%w: depth %d outside [1,%d]", ErrInputDomain, depth, MaxDepth)
	case lookahead < 0:
		return Timeline{}, fmt.Errorf("%w: negative lookahead %d", ErrInputDomain, lookahead)
	}

	bal, err := sys.ResolveBalance(longitude)
	if err != nil {
		return Timeline{}, err
	}

	b := &builder{sys: sys, reference: reference, elapsed: bal.elapsed}
	tl := Timeline{
		System:       sys.name,
		Reference:    reference,
		Longitude:    longitude,
		StartLord:    bal.Lord,
		BalanceYears: bal.Years,
		Origin:       sys.Origin(reference, bal),
		Depth:        depth,
		Periods:      make([]Period, 0, lookahead+1),
	}

	cursor := new(big.Rat)
	for step := 0; step <= lookahead; step++ {
		lord := sys.next(bal.lord, step)
		length := sys.weights[lord]
		start := new(big.Rat).Set(cursor)
		cursor.Add(cursor, length)
		if b.ended(cursor) {
			continue
		}
		p := b.period(lord, start, length, 1, depth-1, len(tl.Periods) == 0)
		p.IsBalance = step == 0
		tl.Periods = append(tl.Periods, p)
	}
	return tl, nil
}

// ActiveAt returns the chain of periods containing t, outermost first. The
// chain is empty when t lies outside the timeline.
func (tl Timeline) ActiveAt(t time.Time) []Period {
	var chain []Period
	level := tl.Periods
	for {
		found := false
		for _, p := range level {
			if p.Contains(t) {
				chain = append(chain, p)
				level = p.Children
				found = true
				break
			}
		}
		if !found || len(level) == 0 {
			return chain
		}
	}
}

// Walk visits every period depth-first in chronological order until fn
// returns false.
func (tl Timeline) Walk(fn func(Period) bool) {
	var visit func([]Period) bool
	visit = func(ps []Period) bool {
		for _, p := range ps {
			if !fn(p) || !visit(p.Children) {
				return false
			}
		}
		return true
	}
	visit(tl.Periods)
}

// Leaves returns every period at the given level in chronological order.
func (tl Timeline) Leaves(level int) []Period {
	var out []Period
	tl.Walk(func(p Period) bool {
		if p.Level == level {
			out = append(out, p)
		}
		return true
	})
	return out
}

// NodeCount returns the number of periods in the tree.
func (tl Timeline) NodeCount() int {
	n := 0
	tl.Walk(func(Period) bool {
		n++
		return true
	})
	return n
}
