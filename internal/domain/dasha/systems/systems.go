// Package systems holds the built-in period-system tables.
//
// Each table is plain data: the cycle order, the years of each lord, the
// cycle constant, the year-length convention and how the 27 lunar mansions
// (nakshatras, counted from 0 = Ashwini) map to lords.
package systems

import "github.com/okian/dasha/internal/domain/dasha"

// Year-length conventions.
const (
	JulianYear    = 365.25
	GregorianYear = 365.2425
)

// Built-in system names.
const (
	Vimshottari   = "vimshottari"
	Ashtottari    = "ashtottari"
	Yogini        = "yogini"
	Shodashottari = "shodashottari"
	Dwadashottari = "dwadashottari"
	Panchottari   = "panchottari"
	Shatabdika    = "shatabdika"
)

// Nakshatra indices used as span anchors.
const (
	ashwini  = 0
	ardra    = 5
	pushya   = 7
	anuradha = 16
	revati   = 26
)

func lords(pairs ...any) []dasha.LordDefinition {
	out := make([]dasha.LordDefinition, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, dasha.LordDefinition{Name: pairs[i].(string), Years: float64(pairs[i+1].(int))})
	}
	return out
}

// Builtin returns fresh copies of every built-in definition.
func Builtin() []dasha.Definition {
	return []dasha.Definition{
		{
			Name:        Vimshottari,
			Lords:       lords("Ketu", 7, "Venus", 20, "Sun", 6, "Moon", 10, "Mars", 7, "Rahu", 18, "Jupiter", 16, "Saturn", 19, "Mercury", 17),
			CycleYears:  120,
			DaysPerYear: JulianYear,
			Spans:       dasha.SpanDefinition{Kind: dasha.SpanUniform, Start: ashwini},
		},
		{
			Name:        Ashtottari,
			Lords:       lords("Sun", 6, "Moon", 15, "Mars", 8, "Mercury", 17, "Saturn", 10, "Jupiter", 19, "Rahu", 12, "Venus", 21),
			CycleYears:  108,
			DaysPerYear: GregorianYear,
			Spans: dasha.SpanDefinition{
				Kind:  dasha.SpanGrouped,
				Start: ardra,
				Groups: []dasha.GroupDefinition{
					{Lord: "Sun", Size: 4},
					{Lord: "Moon", Size: 3},
					{Lord: "Mars", Size: 4},
					{Lord: "Mercury", Size: 3},
					{Lord: "Saturn", Size: 3},
					{Lord: "Jupiter", Size: 3},
					{Lord: "Rahu", Size: 4},
					{Lord: "Venus", Size: 3},
				},
			},
		},
		{
			Name:        Yogini,
			Lords:       lords("Mangala", 1, "Pingala", 2, "Dhanya", 3, "Bhramari", 4, "Bhadrika", 5, "Ulka", 6, "Siddha", 7, "Sankata", 8),
			CycleYears:  36,
			DaysPerYear: JulianYear,
			Spans:       dasha.SpanDefinition{Kind: dasha.SpanUniform, Start: ardra},
		},
		{
			Name:        Shodashottari,
			Lords:       lords("Sun", 11, "Mars", 12, "Jupiter", 13, "Saturn", 14, "Ketu", 15, "Moon", 16, "Mercury", 17, "Venus", 18),
			CycleYears:  116,
			DaysPerYear: GregorianYear,
			Spans:       dasha.SpanDefinition{Kind: dasha.SpanUniform, Start: pushya},
		},
		{
			Name:        Dwadashottari,
			Lords:       lords("Sun", 7, "Jupiter", 9, "Ketu", 11, "Mercury", 13, "Rahu", 15, "Mars", 17, "Saturn", 19, "Moon", 21),
			CycleYears:  112,
			DaysPerYear: GregorianYear,
			Spans:       dasha.SpanDefinition{Kind: dasha.SpanUniform, Start: revati, Reverse: true},
		},
		{
			Name:        Panchottari,
			Lords:       lords("Sun", 12, "Moon", 13, "Mars", 14, "Mercury", 15, "Saturn", 16, "Jupiter", 17, "Venus", 18),
			CycleYears:  105,
			DaysPerYear: GregorianYear,
			Spans:       dasha.SpanDefinition{Kind: dasha.SpanUniform, Start: anuradha},
		},
		{
			Name:        Shatabdika,
			Lords:       lords("Sun", 5, "Moon", 5, "Venus", 10, "Mercury", 10, "Jupiter", 20, "Mars", 20, "Saturn", 30),
			CycleYears:  100,
			DaysPerYear: GregorianYear,
			Spans:       dasha.SpanDefinition{Kind: dasha.SpanUniform, Start: revati},
		},
	}
}

// Registry builds a registry of the built-ins followed by extra definitions.
func Registry(extra ...dasha.Definition) (*dasha.Registry, error) {
	return dasha.NewRegistry(append(Builtin(), extra...)...)
}
