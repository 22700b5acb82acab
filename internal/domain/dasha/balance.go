package dasha

import (
	"fmt"
	"math"
	"math/big"
)

// Balance is the resolved starting point of a timeline: the lord active at
// the reference instant and how much of its period remains.
type Balance struct {
	Lord      string  `json:"lord"`
	Years     float64 `json:"years"`
	Position  int     `json:"position"`
	GroupSize int     `json:"group_size"`
	Fraction  float64 `json:"fraction_elapsed"`

	lord    int
	years   *big.Rat
	elapsed *big.Rat
}

// ResolveBalance maps a normalized longitude to the starting lord and the
// years of its period still to run.
//
// A bucket at position g of a group of s buckets owns weight/s years per
// bucket. The balance is the unconsumed part of the current bucket plus the
// s-1-g whole buckets the same lord still holds, so 0 < Years <= weight.
func (s *System) ResolveBalance(longitude float64) (Balance, error) {
	if err := checkLongitude(longitude); err != nil {
		return Balance{}, err
	}
	b, frac, ok := s.spans.locate(longitude)
	if !ok {
		// Unreachable for a validated table.
		return Balance{}, fmt.Errorf("%w: no bucket of %q covers %g", ErrConfiguration, s.name, longitude)
	}

	w := s.weights[b.lord]
	unit := new(big.Rat).Quo(w, big.NewRat(int64(b.GroupSize), 1))

	remaining := new(big.Rat).Sub(big.NewRat(1, 1), new(big.Rat).SetFloat64(frac))
	remaining.Add(remaining, big.NewRat(int64(b.GroupSize-1-b.Position), 1))
	years := remaining.Mul(remaining, unit)

	yf, _ := years.Float64()
	return Balance{
		Lord:      b.Lord,
		Years:     yf,
		Position:  b.Position,
		GroupSize: b.GroupSize,
		Fraction:  frac,
		lord:      b.lord,
		years:     years,
		elapsed:   new(big.Rat).Sub(w, years),
	}, nil
}

// checkLongitude rejects anything outside the normalized range [0,360).
func checkLongitude(longitude float64) error {
	if math.IsNaN(longitude) || math.IsInf(longitude, 0) {
		return fmt.Errorf("%w: longitude %v is not finite", ErrInputDomain, longitude)
	}
	if longitude < 0 || longitude >= fullCircle {
		return fmt.Errorf("%w: longitude %g outside [0,360)", ErrInputDomain, longitude)
	}
	return nil
}

// NormalizeLongitude folds any finite angle into [0,360).
func NormalizeLongitude(degrees float64) (float64, error) {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return 0, fmt.Errorf("%w: longitude %v is not finite", ErrInputDomain, degrees)
	}
	d := math.Mod(degrees, fullCircle)
	if d < 0 {
		d += fullCircle
	}
	// Clamp: a tiny negative remainder plus 360 rounds to exactly 360, which
	// belongs to the last bucket rather than wrapping to the first.
	if d >= fullCircle {
		d = math.Nextafter(fullCircle, 0)
	}
	return d, nil
}
