package dasha

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Span table shapes accepted in a SpanDefinition.
const (
	SpanUniform  = "uniform"
	SpanGrouped  = "grouped"
	SpanExplicit = "explicit"

	defaultBucketCount = 27
	fullCircle         = 360.0
	boundaryTolerance  = 1e-9
)

// GroupDefinition is one run of consecutive buckets owned by a single lord.
type GroupDefinition struct {
	Lord string `koanf:"lord" json:"lord"`
	Size int    `koanf:"size" json:"size"`
}

// BucketDefinition declares a single bucket of an explicit span table.
type BucketDefinition struct {
	Start     float64 `koanf:"start" json:"start"`
	End       float64 `koanf:"end" json:"end"`
	Lord      string  `koanf:"lord" json:"lord"`
	Position  int     `koanf:"position" json:"position"`
	GroupSize int     `koanf:"group_size" json:"group_size"`
}

// SpanDefinition describes how longitude buckets map to lords.
//
// Uniform tables assign bucket i to lord (i-Start) mod N, or (Start-i) mod N
// when Reverse is set. Grouped tables hand out runs of Groups[k].Size buckets
// beginning at bucket Start and wrapping around the circle. Explicit tables
// list every bucket verbatim.
type SpanDefinition struct {
	Kind    string             `koanf:"kind" json:"kind"`
	Buckets int                `koanf:"buckets" json:"buckets,omitempty"`
	Start   int                `koanf:"start" json:"start"`
	Reverse bool               `koanf:"reverse" json:"reverse,omitempty"`
	Groups  []GroupDefinition  `koanf:"groups" json:"groups,omitempty"`
	Table   []BucketDefinition `koanf:"table" json:"table,omitempty"`
}

// Bucket is one longitude segment of a SpanTable.
type Bucket struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Lord      string  `json:"lord"`
	Position  int     `json:"position"`
	GroupSize int     `json:"group_size"`

	lord int
}

// SpanTable maps a longitude in [0,360) to the bucket that owns it.
// Buckets are sorted, contiguous and cover the whole circle.
type SpanTable struct {
	buckets []Bucket
}

// Buckets returns a copy of the table rows.
func (t SpanTable) Buckets() []Bucket {
	out := make([]Bucket, len(t.buckets))
	copy(out, t.buckets)
	return out
}

// Len returns the number of buckets.
func (t SpanTable) Len() int { return len(t.buckets) }

// locate returns the bucket containing longitude and the elapsed fraction of
// its current sub-unit.
func (t SpanTable) locate(longitude float64) (Bucket, float64, bool) {
	i := sort.Search(len(t.buckets), func(i int) bool { return t.buckets[i].End > longitude })
	if i == len(t.buckets) {
		return Bucket{}, 0, false
	}
	b := t.buckets[i]
	if longitude < b.Start {
		return Bucket{}, 0, false
	}
	frac := (longitude - b.Start) / (b.End - b.Start)
	// Clamp: a longitude a few ulps below End can round to a full unit.
	if frac >= 1 {
		frac = math.Nextafter(1, 0)
	}
	return b, frac, true
}

// buildSpanTable expands def against the ordered lord names of a system.
func buildSpanTable(def SpanDefinition, lords []string) (SpanTable, error) {
	index := make(map[string]int, len(lords))
	for i, name := range lords {
		index[strings.ToLower(name)] = i
	}

	var rows []BucketDefinition
	switch strings.ToLower(strings.TrimSpace(def.Kind)) {
	case "", SpanUniform:
		n := bucketCount(def)
		width := fullCircle / float64(n)
		for i := 0; i < n; i++ {
			k := i - def.Start
			if def.Reverse {
				k = def.Start - i
			}
			rows = append(rows, BucketDefinition{
				Start:     float64(i) * width,
				End:       bucketEnd(i, n, width),
				Lord:      lords[mod(k, len(lords))],
				GroupSize: 1,
			})
		}
	case SpanGrouped:
		n := bucketCount(def)
		total := 0
		for _, g := range def.Groups {
			if g.Size < 1 {
				return SpanTable{}, fmt.Errorf("%w: group for %q has size %d", ErrConfiguration, g.Lord, g.Size)
			}
			total += g.Size
		}
		if total != n {
			return SpanTable{}, fmt.Errorf("%w: groups cover %d of %d buckets", ErrConfiguration, total, n)
		}
		width := fullCircle / float64(n)
		rows = make([]BucketDefinition, n)
		cursor := def.Start
		for _, g := range def.Groups {
			for pos := 0; pos < g.Size; pos++ {
				i := mod(cursor, n)
				rows[i] = BucketDefinition{
					Start:     float64(i) * width,
					End:       bucketEnd(i, n, width),
					Lord:      g.Lord,
					Position:  pos,
					GroupSize: g.Size,
				}
				cursor++
			}
		}
	case SpanExplicit:
		rows = append(rows, def.Table...)
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Start < rows[j].Start })
	default:
		return SpanTable{}, fmt.Errorf("%w: unknown span kind %q", ErrConfiguration, def.Kind)
	}

	table := SpanTable{buckets: make([]Bucket, 0, len(rows))}
	for _, r := range rows {
		li, ok := index[strings.ToLower(r.Lord)]
		if !ok {
			return SpanTable{}, fmt.Errorf("%w: bucket [%g,%g) names unknown lord %q", ErrConfiguration, r.Start, r.End, r.Lord)
		}
		table.buckets = append(table.buckets, Bucket{
			Start:     r.Start,
			End:       r.End,
			Lord:      lords[li],
			Position:  r.Position,
			GroupSize: r.GroupSize,
			lord:      li,
		})
	}
	if err := table.validate(); err != nil {
		return SpanTable{}, err
	}
	if err := table.validateGroups(); err != nil {
		return SpanTable{}, err
	}
	// Close the sub-tolerance seams validate accepted so every longitude in
	// [0,360) has a bucket.
	for i := 1; i < len(table.buckets); i++ {
		table.buckets[i].Start = table.buckets[i-1].End
	}
	return table, nil
}

// validate checks exhaustive, gap-free coverage of [0,360) and sane group
// positions.
func (t SpanTable) validate() error {
	if len(t.buckets) == 0 {
		return fmt.Errorf("%w: span table is empty", ErrConfiguration)
	}
	if t.buckets[0].Start != 0 {
		return fmt.Errorf("%w: span table starts at %g, not 0", ErrConfiguration, t.buckets[0].Start)
	}
	for i, b := range t.buckets {
		if b.End <= b.Start {
			return fmt.Errorf("%w: bucket %d is empty [%g,%g)", ErrConfiguration, i, b.Start, b.End)
		}
		if b.GroupSize < 1 || b.Position < 0 || b.Position >= b.GroupSize {
			return fmt.Errorf("%w: bucket %d has position %d in group of %d", ErrConfiguration, i, b.Position, b.GroupSize)
		}
		if i > 0 && math.Abs(t.buckets[i-1].End-b.Start) > boundaryTolerance {
			return fmt.Errorf("%w: gap or overlap between %g and %g", ErrConfiguration, t.buckets[i-1].End, b.Start)
		}
	}
	if last := t.buckets[len(t.buckets)-1]; last.End != fullCircle {
		return fmt.Errorf("%w: span table ends at %g, not 360", ErrConfiguration, last.End)
	}
	return nil
}

// validateGroups checks that every group is one run of consecutive buckets,
// wrapping around the circle, owned by one lord with positions 0..size-1 in
// order.
func (t SpanTable) validateGroups() error {
	n := len(t.buckets)
	for i, b := range t.buckets {
		if b.Position > 0 {
			prev := t.buckets[mod(i-1, n)]
			if prev.lord != b.lord || prev.GroupSize != b.GroupSize || prev.Position != b.Position-1 {
				return fmt.Errorf("%w: bucket %d (%s %d/%d) does not follow %s %d/%d",
					ErrConfiguration, i, b.Lord, b.Position, b.GroupSize, prev.Lord, prev.Position, prev.GroupSize)
			}
		}
		if b.Position < b.GroupSize-1 {
			next := t.buckets[mod(i+1, n)]
			if next.lord != b.lord || next.GroupSize != b.GroupSize || next.Position != b.Position+1 {
				return fmt.Errorf("%w: group of %s at bucket %d ends after %d of %d buckets",
					ErrConfiguration, b.Lord, i, b.Position+1, b.GroupSize)
			}
		}
	}
	return nil
}

func bucketCount(def SpanDefinition) int {
	if def.Buckets > 0 {
		return def.Buckets
	}
	return defaultBucketCount
}

// bucketEnd pins the last bucket to exactly 360 so accumulated width error
// never opens a gap at the top of the circle.
func bucketEnd(i, n int, width float64) float64 {
	if i == n-1 {
		return fullCircle
	}
	return float64(i+1) * width
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
