// Package dasha computes nested period timelines for cyclic weighted timing
// systems.
//
// A System is immutable configuration built once from a Definition. Every
// computation is a pure function of its inputs: the engine performs no I/O,
// keeps no shared state and never logs, so independent calls may run
// concurrently without coordination.
package dasha

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
)

const (
	weightTolerance  = 1e-9
	nanosecondsInDay = 86_400_000_000_000
)

// LordDefinition names a lord and the years its full period lasts.
type LordDefinition struct {
	Name  string  `koanf:"name" json:"name"`
	Years float64 `koanf:"years" json:"years"`
}

// Definition is the declarative form of a period system, as authored in code
// or loaded from configuration.
type Definition struct {
	Name        string           `koanf:"name" json:"name"`
	Lords       []LordDefinition `koanf:"lords" json:"lords"`
	CycleYears  float64          `koanf:"cycle_years" json:"cycle_years"`
	DaysPerYear float64          `koanf:"days_per_year" json:"days_per_year"`
	Spans       SpanDefinition   `koanf:"spans" json:"spans"`
}

// Lord is one member of a system's cycle.
type Lord struct {
	Name  string  `json:"name"`
	Years float64 `json:"years"`
}

// System is a validated, immutable period system.
type System struct {
	name        string
	lords       []Lord
	weights     []*big.Rat
	index       map[string]int
	cycle       *big.Rat // exact sum of weights
	cycleYears  float64
	daysPerYear float64
	nsPerYear   *big.Rat
	spans       SpanTable
}

// NewSystem validates def and builds a System. Every failure wraps
// ErrConfiguration.
func NewSystem(def Definition) (*System, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: system name is empty", ErrConfiguration)
	}
	if len(def.Lords) == 0 {
		return nil, fmt.Errorf("%w: system %q has no lords", ErrConfiguration, name)
	}
	if !(def.DaysPerYear > 0) || math.IsInf(def.DaysPerYear, 0) {
		return nil, fmt.Errorf("%w: system %q has days_per_year %g", ErrConfiguration, name, def.DaysPerYear)
	}

	s := &System{
		name:        name,
		lords:       make([]Lord, len(def.Lords)),
		weights:     make([]*big.Rat, len(def.Lords)),
		index:       make(map[string]int, len(def.Lords)),
		cycle:       new(big.Rat),
		cycleYears:  def.CycleYears,
		daysPerYear: def.DaysPerYear,
	}

	names := make([]string, len(def.Lords))
	sum := 0.0
	for i, l := range def.Lords {
		lname := strings.TrimSpace(l.Name)
		if lname == "" {
			return nil, fmt.Errorf("%w: system %q has an unnamed lord at %d", ErrConfiguration, name, i)
		}
		key := strings.ToLower(lname)
		if _, dup := s.index[key]; dup {
			return nil, fmt.Errorf("%w: system %q lists lord %q twice", ErrConfiguration, name, lname)
		}
		if !(l.Years > 0) || math.IsInf(l.Years, 0) {
			return nil, fmt.Errorf("%w: lord %q of %q has weight %g", ErrConfiguration, lname, name, l.Years)
		}
		s.index[key] = i
		s.lords[i] = Lord{Name: lname, Years: l.Years}
		s.weights[i] = new(big.Rat).SetFloat64(l.Years)
		s.cycle.Add(s.cycle, s.weights[i])
		names[i] = lname
		sum += l.Years
	}
	if math.Abs(sum-def.CycleYears) > weightTolerance {
		return nil, fmt.Errorf("%w: weights of %q sum to %g, cycle constant is %g", ErrConfiguration, name, sum, def.CycleYears)
	}

	s.nsPerYear = new(big.Rat).Mul(new(big.Rat).SetFloat64(def.DaysPerYear), big.NewRat(nanosecondsInDay, 1))

	spans, err := buildSpanTable(def.Spans, names)
	if err != nil {
		return nil, fmt.Errorf("system %q: %w", name, err)
	}
	s.spans = spans
	return s, nil
}

// MustSystem is NewSystem for static tables known to be valid. It panics on
// a configuration fault.
func MustSystem(def Definition) *System {
	s, err := NewSystem(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the system name.
func (s *System) Name() string { return s.name }

// CycleYears returns the cycle constant.
func (s *System) CycleYears() float64 { return s.cycleYears }

// DaysPerYear returns the year-length convention used for calendar conversion.
func (s *System) DaysPerYear() float64 { return s.daysPerYear }

// Spans returns the span table.
func (s *System) Spans() SpanTable { return s.spans }

// Lords returns the cycle in order.
func (s *System) Lords() []Lord {
	out := make([]Lord, len(s.lords))
	copy(out, s.lords)
	return out
}

// Weight returns the full-period years of the named lord.
func (s *System) Weight(lord string) (float64, bool) {
	i, ok := s.index[strings.ToLower(strings.TrimSpace(lord))]
	if !ok {
		return 0, false
	}
	return s.lords[i].Years, true
}

// Sequence returns the lord names of one full lap beginning with lord.
func (s *System) Sequence(lord string) ([]string, error) {
	i, ok := s.index[strings.ToLower(strings.TrimSpace(lord))]
	if !ok {
		return nil, fmt.Errorf("%w: system %q has no lord %q", ErrInputDomain, s.name, lord)
	}
	out := make([]string, len(s.lords))
	for j := range s.lords {
		out[j] = s.lords[s.next(i, j)].Name
	}
	return out, nil
}

// MaxNodes returns an upper bound on the periods a timeline of depth levels
// and lookahead further top-level periods can hold before pruning. The result
// saturates at math.MaxInt.
func (s *System) MaxNodes(depth, lookahead int) int {
	if depth < 1 || lookahead < 0 {
		return 0
	}
	n := len(s.lords)
	perTree, level := 0, 1
	for k := 0; k < depth; k++ {
		if perTree > math.MaxInt-level {
			return math.MaxInt
		}
		perTree += level
		if k+1 < depth {
			if level > math.MaxInt/n {
				return math.MaxInt
			}
			level *= n
		}
	}
	if perTree > math.MaxInt/(lookahead+1) {
		return math.MaxInt
	}
	return perTree * (lookahead + 1)
}

// next returns the lord index step places after i in the cycle.
func (s *System) next(i, step int) int {
	return (i + step) % len(s.lords)
}

// shift converts a rational number of years to calendar time relative to
// anchor, rounding to the nearest nanosecond.
func (s *System) shift(anchor time.Time, years *big.Rat) time.Time {
	ns := new(big.Rat).Mul(years, s.nsPerYear)
	num := new(big.Int).Lsh(ns.Num(), 1)
	num.Add(num, ns.Denom())
	den := new(big.Int).Lsh(ns.Denom(), 1)
	total, _ := new(big.Int).DivMod(num, den, new(big.Int))
	sec, nsec := new(big.Int).DivMod(total, big.NewInt(int64(time.Second)), new(big.Int))
	return time.Unix(anchor.Unix()+sec.Int64(), int64(anchor.Nanosecond())+nsec.Int64()).In(anchor.Location())
}
