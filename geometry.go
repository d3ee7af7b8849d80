package gloam

import (
	"fmt"
	"image"
	"math"
)

// Box is an integer axis-aligned rectangle in output-local pixels. The
// origin is the top-left corner with Y increasing downward. A box covers the
// half-open ranges [X, X+Width) and [Y, Y+Height).
type Box struct {
	X, Y, Width, Height int
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{r.Min.X, r.Min.Y, r.Dx(), r.Dy()}
}

// Empty reports whether the box covers no pixels.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Right returns the exclusive right edge.
func (b Box) Right() int { return b.X + b.Width }

// Bottom returns the exclusive bottom edge.
func (b Box) Bottom() int { return b.Y + b.Height }

// Contains reports whether the pixel (x, y) lies inside the box.
func (b Box) Contains(x, y int) bool {
	return x >= b.X && x < b.Right() && y >= b.Y && y < b.Bottom()
}

// Overlaps reports whether b and o share at least one pixel.
func (b Box) Overlaps(o Box) bool {
	return !b.Intersect(o).Empty()
}

// Intersect returns the overlap of b and o, or the zero box.
func (b Box) Intersect(o Box) Box {
	x1 := max(b.X, o.X)
	y1 := max(b.Y, o.Y)
	x2 := min(b.Right(), o.Right())
	y2 := min(b.Bottom(), o.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return Box{}
	}
	return Box{x1, y1, x2 - x1, y2 - y1}
}

// Union returns the bounding box of b and o. Empty boxes are ignored.
func (b Box) Union(o Box) Box {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	x1 := min(b.X, o.X)
	y1 := min(b.Y, o.Y)
	x2 := max(b.Right(), o.Right())
	y2 := max(b.Bottom(), o.Bottom())
	return Box{x1, y1, x2 - x1, y2 - y1}
}

// Translate returns b moved by (dx, dy).
func (b Box) Translate(dx, dy int) Box {
	return Box{b.X + dx, b.Y + dy, b.Width, b.Height}
}

// Expand returns b grown by n pixels on every side. Negative n shrinks it.
func (b Box) Expand(n int) Box {
	return Box{b.X - n, b.Y - n, b.Width + 2*n, b.Height + 2*n}
}

// Scale converts a logical box into a pixel box at the given scale. Low
// edges are floored and high edges ceiled so the result always covers the
// scaled area.
func (b Box) Scale(s float64) Box {
	if s == 1 {
		return b
	}
	x1 := int(math.Floor(float64(b.X) * s))
	y1 := int(math.Floor(float64(b.Y) * s))
	x2 := int(math.Ceil(float64(b.Right()) * s))
	y2 := int(math.Ceil(float64(b.Bottom()) * s))
	return Box{x1, y1, x2 - x1, y2 - y1}
}

// Center returns the center point of the box.
func (b Box) Center() PointF {
	return PointF{float64(b.X) + float64(b.Width)/2, float64(b.Y) + float64(b.Height)/2}
}

// Rectangle returns the box as an image.Rectangle.
func (b Box) Rectangle() image.Rectangle {
	return image.Rect(b.X, b.Y, b.Right(), b.Bottom())
}

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", b.X, b.Y, b.Width, b.Height)
}

// boundingBoxOf returns the smallest Box covering every point. Coordinates
// are floored and ceiled so the box never under-approximates.
func boundingBoxOf(pts ...PointF) Box {
	if len(pts) == 0 {
		return Box{}
	}
	x1, y1 := pts[0].X, pts[0].Y
	x2, y2 := x1, y1
	for _, p := range pts[1:] {
		x1 = math.Min(x1, p.X)
		y1 = math.Min(y1, p.Y)
		x2 = math.Max(x2, p.X)
		y2 = math.Max(y2, p.Y)
	}
	ix1, iy1 := int(math.Floor(x1)), int(math.Floor(y1))
	ix2, iy2 := int(math.Ceil(x2)), int(math.Ceil(y2))
	return Box{ix1, iy1, ix2 - ix1, iy2 - iy1}
}
