package toucharea

import (
	"fmt"
	"image"
	"math"
)

// Rect is an integer rectangle in container-local pixels. Unlike
// image.Rectangle it is never canonicalized, so an inset that crosses the
// edges leaves it degenerate instead of flipping it.
type Rect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

func (r *Rect) Set(left, top, right, bottom int) {
	r.Left = left
	r.Top = top
	r.Right = right
	r.Bottom = bottom
}

// Inset moves the left and right edges inward by dx and the top and bottom
// edges inward by dy. Negative values move the edges outward. Edges saturate
// at the int range instead of wrapping.
func (r *Rect) Inset(dx, dy int) {
	r.Left = addSat(r.Left, dx)
	r.Top = addSat(r.Top, dy)
	r.Right = subSat(r.Right, dx)
	r.Bottom = subSat(r.Bottom, dy)
}

func (r Rect) Width() int {
	return r.Right - r.Left
}

func (r Rect) Height() int {
	return r.Bottom - r.Top
}

// Degenerate reports whether the edges crossed, leaving no hit region.
func (r Rect) Degenerate() bool {
	return r.Left > r.Right || r.Top > r.Bottom
}

// Contains uses closed bounds: a point on any edge is inside.
func (r Rect) Contains(x, y int) bool {
	if r.Degenerate() {
		return false
	}
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

func (r Rect) Offset(dx, dy int) Rect {
	return Rect{Left: addSat(r.Left, dx), Top: addSat(r.Top, dy), Right: addSat(r.Right, dx), Bottom: addSat(r.Bottom, dy)}
}

// Image converts to an image.Rectangle for drawing. Degenerate rects map to the
// empty rectangle.
func (r Rect) Image() image.Rectangle {
	if r.Degenerate() {
		return image.Rectangle{}
	}
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

func addSat(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}

func subSat(a, b int) int {
	switch {
	case b < 0 && a > math.MaxInt+b:
		return math.MaxInt
	case b > 0 && a < math.MinInt+b:
		return math.MinInt
	}
	return a - b
}
