package gloam

import (
	"iter"
	"math"
	"slices"
	"strings"
)

// Region is a set of pixels stored as disjoint rectangles. Rectangles are
// kept in y-x banded form: each band covers a vertical range and holds sorted,
// non-touching horizontal spans, and vertically adjacent bands never share
// the same spans. The representation is therefore canonical: two regions
// covering the same pixels compare Equal and produce the same Boxes.
//
// The zero Region is empty and ready to use. Mutating methods work in place;
// the package-level UnionRegions, IntersectRegions, SubtractRegions and
// XorRegions leave their arguments untouched.
type Region struct {
	bands []band
}

type span struct{ x1, x2 int }

type band struct {
	y1, y2 int
	spans  []span
}

// NewRegion returns the union of the given boxes.
func NewRegion(boxes ...Box) Region {
	var r Region
	for _, b := range boxes {
		r.UnionBox(b)
	}
	return r
}

func regionFromBox(b Box) Region {
	if b.Empty() {
		return Region{}
	}
	return Region{bands: []band{{y1: b.Y, y2: b.Bottom(), spans: []span{{b.X, b.Right()}}}}}
}

// IsEmpty reports whether the region covers no pixels.
func (r Region) IsEmpty() bool {
	return len(r.bands) == 0
}

// Clear empties the region.
func (r *Region) Clear() {
	r.bands = nil
}

// Clone returns an independent copy of r.
func (r Region) Clone() Region {
	if len(r.bands) == 0 {
		return Region{}
	}
	out := make([]band, len(r.bands))
	for i, b := range r.bands {
		out[i] = band{y1: b.y1, y2: b.y2, spans: slices.Clone(b.spans)}
	}
	return Region{bands: out}
}

// Len returns the number of rectangles in the region.
func (r Region) Len() int {
	n := 0
	for _, b := range r.bands {
		n += len(b.spans)
	}
	return n
}

// Boxes returns the region's rectangles in y-x order.
func (r Region) Boxes() []Box {
	out := make([]Box, 0, r.Len())
	for b := range r.All() {
		out = append(out, b)
	}
	return out
}

// All yields the region's rectangles in y-x order.
func (r Region) All() iter.Seq[Box] {
	return func(yield func(Box) bool) {
		for _, b := range r.bands {
			for _, s := range b.spans {
				if !yield(Box{s.x1, b.y1, s.x2 - s.x1, b.y2 - b.y1}) {
					return
				}
			}
		}
	}
}

// Extents returns the bounding box of the region.
func (r Region) Extents() Box {
	if r.IsEmpty() {
		return Box{}
	}
	x1, x2 := math.MaxInt, math.MinInt
	for _, b := range r.bands {
		x1 = min(x1, b.spans[0].x1)
		x2 = max(x2, b.spans[len(b.spans)-1].x2)
	}
	y1 := r.bands[0].y1
	y2 := r.bands[len(r.bands)-1].y2
	return Box{x1, y1, x2 - x1, y2 - y1}
}

// Area returns the number of pixels covered.
func (r Region) Area() int {
	a := 0
	for b := range r.All() {
		a += b.Width * b.Height
	}
	return a
}

// ContainsPoint reports whether pixel (x, y) is in the region.
func (r Region) ContainsPoint(x, y int) bool {
	for _, b := range r.bands {
		if y < b.y1 {
			return false
		}
		if y >= b.y2 {
			continue
		}
		for _, s := range b.spans {
			if x >= s.x1 && x < s.x2 {
				return true
			}
		}
		return false
	}
	return false
}

// Equal reports whether r and o cover the same pixels.
func (r Region) Equal(o Region) bool {
	if len(r.bands) != len(o.bands) {
		return false
	}
	for i := range r.bands {
		a, b := r.bands[i], o.bands[i]
		if a.y1 != b.y1 || a.y2 != b.y2 || !slices.Equal(a.spans, b.spans) {
			return false
		}
	}
	return true
}

func (r Region) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	i := 0
	for b := range r.All() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(b.String())
		i++
	}
	sb.WriteByte('}')
	return sb.String()
}

// --- In-place operations ---

// Union adds o to r.
func (r *Region) Union(o Region) {
	if o.IsEmpty() {
		return
	}
	if r.IsEmpty() {
		*r = o.Clone()
		return
	}
	*r = combine(*r, o, opUnion)
}

// UnionBox adds b to r.
func (r *Region) UnionBox(b Box) {
	if b.Empty() {
		return
	}
	r.Union(regionFromBox(b))
}

// Intersect keeps only the pixels of r that are also in o.
func (r *Region) Intersect(o Region) {
	if r.IsEmpty() {
		return
	}
	if o.IsEmpty() {
		r.Clear()
		return
	}
	*r = combine(*r, o, opIntersect)
}

// IntersectBox clips r to b.
func (r *Region) IntersectBox(b Box) {
	r.Intersect(regionFromBox(b))
}

// Subtract removes the pixels of o from r.
func (r *Region) Subtract(o Region) {
	if r.IsEmpty() || o.IsEmpty() {
		return
	}
	*r = combine(*r, o, opSubtract)
}

// SubtractBox removes b from r.
func (r *Region) SubtractBox(b Box) {
	r.Subtract(regionFromBox(b))
}

// Xor replaces r with the pixels that are in exactly one of r and o.
func (r *Region) Xor(o Region) {
	if o.IsEmpty() {
		return
	}
	if r.IsEmpty() {
		*r = o.Clone()
		return
	}
	*r = combine(*r, o, opXor)
}

// Translate moves every rectangle by (dx, dy).
func (r *Region) Translate(dx, dy int) {
	if (dx == 0 && dy == 0) || r.IsEmpty() {
		return
	}
	// Region values may share band storage, so build fresh bands.
	out := make([]band, len(r.bands))
	for i, b := range r.bands {
		spans := make([]span, len(b.spans))
		for j, s := range b.spans {
			spans[j] = span{s.x1 + dx, s.x2 + dx}
		}
		out[i] = band{y1: b.y1 + dy, y2: b.y2 + dy, spans: spans}
	}
	r.bands = out
}

// Scale multiplies every rectangle by s, flooring low edges and ceiling high
// edges, and merges the results.
func (r *Region) Scale(s float64) {
	if s == 1 || r.IsEmpty() {
		return
	}
	var out Region
	for b := range r.All() {
		out.UnionBox(b.Scale(s))
	}
	*r = out
}

// ExpandEdges grows every rectangle by n pixels on each side, or shrinks it
// when n is negative. Rectangles that vanish while shrinking are dropped.
func (r *Region) ExpandEdges(n int) {
	if n == 0 || r.IsEmpty() {
		return
	}
	var out Region
	for b := range r.All() {
		out.UnionBox(b.Expand(n))
	}
	*r = out
}

// --- Value operations ---

// UnionRegions returns a ∪ b.
func UnionRegions(a, b Region) Region {
	out := a.Clone()
	out.Union(b)
	return out
}

// IntersectRegions returns a ∩ b.
func IntersectRegions(a, b Region) Region {
	out := a.Clone()
	out.Intersect(b)
	return out
}

// SubtractRegions returns a − b.
func SubtractRegions(a, b Region) Region {
	out := a.Clone()
	out.Subtract(b)
	return out
}

// XorRegions returns the symmetric difference of a and b.
func XorRegions(a, b Region) Region {
	out := a.Clone()
	out.Xor(b)
	return out
}

// --- Banded boolean combination ---

type regionOp func(inA, inB bool) bool

func opUnion(a, b bool) bool     { return a || b }
func opIntersect(a, b bool) bool { return a && b }
func opSubtract(a, b bool) bool  { return a && !b }
func opXor(a, b bool) bool       { return a != b }

// combine sweeps the union of both regions' band edges and applies op to each
// horizontal slab. Adjacent slabs with identical spans are coalesced.
func combine(a, b Region, op regionOp) Region {
	ys := make([]int, 0, 2*(len(a.bands)+len(b.bands)))
	for _, bd := range a.bands {
		ys = append(ys, bd.y1, bd.y2)
	}
	for _, bd := range b.bands {
		ys = append(ys, bd.y1, bd.y2)
	}
	slices.Sort(ys)
	ys = slices.Compact(ys)

	var out []band
	ia, ib := 0, 0
	for k := 0; k+1 < len(ys); k++ {
		y1, y2 := ys[k], ys[k+1]
		for ia < len(a.bands) && a.bands[ia].y2 <= y1 {
			ia++
		}
		for ib < len(b.bands) && b.bands[ib].y2 <= y1 {
			ib++
		}
		var sa, sb []span
		if ia < len(a.bands) && a.bands[ia].y1 <= y1 {
			sa = a.bands[ia].spans
		}
		if ib < len(b.bands) && b.bands[ib].y1 <= y1 {
			sb = b.bands[ib].spans
		}
		spans := combineSpans(sa, sb, op)
		if len(spans) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].y2 == y1 && slices.Equal(out[n-1].spans, spans) {
			out[n-1].y2 = y2
			continue
		}
		out = append(out, band{y1: y1, y2: y2, spans: spans})
	}
	return Region{bands: out}
}

// combineSpans applies op to two sorted span lists and returns the merged
// result with touching spans joined.
func combineSpans(a, b []span, op regionOp) []span {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	xs := make([]int, 0, 2*(len(a)+len(b)))
	for _, s := range a {
		xs = append(xs, s.x1, s.x2)
	}
	for _, s := range b {
		xs = append(xs, s.x1, s.x2)
	}
	slices.Sort(xs)
	xs = slices.Compact(xs)

	var out []span
	ia, ib := 0, 0
	for k := 0; k+1 < len(xs); k++ {
		x1, x2 := xs[k], xs[k+1]
		for ia < len(a) && a[ia].x2 <= x1 {
			ia++
		}
		for ib < len(b) && b[ib].x2 <= x1 {
			ib++
		}
		inA := ia < len(a) && a[ia].x1 <= x1
		inB := ib < len(b) && b[ib].x1 <= x1
		if !op(inA, inB) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].x2 == x1 {
			out[n-1].x2 = x2
			continue
		}
		out = append(out, span{x1, x2})
	}
	return out
}
