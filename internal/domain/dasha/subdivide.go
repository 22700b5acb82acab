package dasha

import (
	"math/big"
	"time"
)

// builder holds what every level of one timeline shares. Positions are exact
// rational years measured from the origin of the balance period; they become
// calendar instants only when a node is emitted.
type builder struct {
	sys       *System
	reference time.Time
	elapsed   *big.Rat // origin-to-reference distance in years
}

// instant materializes a position as calendar time.
func (b *builder) instant(pos *big.Rat) time.Time {
	return b.sys.shift(b.reference, new(big.Rat).Sub(pos, b.elapsed))
}

// ended reports whether a position is at or before the reference instant.
// A period whose end equals the reference instant has ended.
func (b *builder) ended(pos *big.Rat) bool {
	return pos.Cmp(b.elapsed) <= 0
}

// period emits the node for lord over [start, start+length) together with
// its subtree, descending depthRemaining further levels. first marks the
// first surfaced sibling, the only one whose display start may be clipped.
func (b *builder) period(lord int, start, length *big.Rat, level, depthRemaining int, first bool) Period {
	end := new(big.Rat).Add(start, length)
	years, _ := length.Float64()

	p := Period{
		Lord:  b.sys.lords[lord].Name,
		Level: level,
		Start: b.instant(start),
		End:   b.instant(end),
		Years: years,
	}
	p.DisplayStart = p.Start
	if first && b.ended(start) {
		p.DisplayStart = b.reference
	}
	if depthRemaining > 0 {
		var pruned *big.Rat
		p.Children, pruned = b.subdivide(lord, start, length, level+1, depthRemaining-1)
		if pruned.Sign() > 0 {
			p.PrunedYears, _ = pruned.Float64()
		}
	}
	return p
}

// subdivide splits [start, start+length) among one full lap of the cycle
// beginning with lord, each child getting length*weight/cycle. The cursor
// advances over every child, but children that have already ended are
// neither recursed into nor emitted. The length they covered is returned as
// pruned.
func (b *builder) subdivide(lord int, start, length *big.Rat, level, depthRemaining int) ([]Period, *big.Rat) {
	n := len(b.sys.lords)
	scale := new(big.Rat).Quo(length, b.sys.cycle)
	cursor := new(big.Rat).Set(start)
	pruned := new(big.Rat)

	children := make([]Period, 0, n)
	for step := 0; step < n; step++ {
		child := b.sys.next(lord, step)
		childLen := new(big.Rat).Mul(scale, b.sys.weights[child])
		childStart := new(big.Rat).Set(cursor)
		cursor.Add(cursor, childLen)

		if b.ended(cursor) {
			pruned.Add(pruned, childLen)
			continue
		}
		children = append(children, b.period(child, childStart, childLen, level, depthRemaining, len(children) == 0))
	}
	return children, pruned
}
