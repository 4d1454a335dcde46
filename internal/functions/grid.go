package functions

import (
	"math"

	"github.com/copyleftdev/landscape/internal/optimization"
)

// GridPoint returns the point sampled for cell (x, y) of a w x h grid laid
// over the first two coordinates of the box, row 0 at the top. Coordinates
// past the second sit at the centre of the box.
func GridPoint(b optimization.Bounds, dims, w, h, x, y int) []float64 {
	pt := make([]float64, dims)
	for i := range pt {
		pt[i] = b.Center()
	}
	pt[0] = b.Low + (float64(x)+0.5)/float64(w)*b.Width()
	if dims > 1 {
		pt[1] = b.High - (float64(y)+0.5)/float64(h)*b.Width()
	}
	return pt
}

// Grid evaluates p at every cell of a w x h grid, indexed [y][x].
func Grid(p optimization.Problem, dims, w, h int) [][]float64 {
	values := make([][]float64, h)
	for y := range values {
		values[y] = make([]float64, w)
		for x := range values[y] {
			values[y][x] = p.Func(GridPoint(p.Bounds, dims, w, h, x, y))
		}
	}
	return values
}

// Range returns the lowest and highest finite grid value. ok is false when
// no value is finite.
func Range(values [][]float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range values {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok
}
