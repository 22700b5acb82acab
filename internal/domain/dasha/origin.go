package dasha

import (
	"math/big"
	"time"
)

// Origin back-dates reference by the consumed part of the starting lord's
// period, giving the instant that period truly began.
func (s *System) Origin(reference time.Time, b Balance) time.Time {
	return s.shift(reference, new(big.Rat).Neg(b.elapsedYears(s)))
}

// elapsedYears returns weight-minus-balance exactly, recomputing it for a
// Balance built outside ResolveBalance.
func (b Balance) elapsedYears(s *System) *big.Rat {
	if b.elapsed != nil {
		return b.elapsed
	}
	w, ok := s.Weight(b.Lord)
	if !ok {
		return new(big.Rat)
	}
	return new(big.Rat).SetFloat64(w - b.Years)
}
