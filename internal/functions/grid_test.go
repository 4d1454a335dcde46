package functions

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/copyleftdev/landscape/internal/optimization"
)

func TestGridPoint(t *testing.T) {
	b := optimization.Bounds{Low: -2, High: 2}
	tests := []struct {
		name string
		dims int
		x, y int
		want []float64
	}{
		{"top left", 2, 0, 0, []float64{-1.5, 1.5}},
		{"bottom right", 2, 3, 3, []float64{1.5, -1.5}},
		{"extra dimensions at the centre", 3, 1, 2, []float64{-0.5, -0.5, 0}},
		{"one dimension ignores the row", 1, 2, 3, []float64{0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GridPoint(b, tt.dims, 4, 4, tt.x, tt.y)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("GridPoint mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGrid(t *testing.T) {
	p := optimization.Problem{
		Name:   "sum",
		Func:   func(x []float64) float64 { return x[0] + x[1] },
		Bounds: optimization.Bounds{Low: 0, High: 2},
	}
	want := [][]float64{
		{0.5 + 1.5, 1.5 + 1.5},
		{0.5 + 0.5, 1.5 + 0.5},
	}
	if diff := cmp.Diff(want, Grid(p, 2, 2, 2)); diff != "" {
		t.Errorf("Grid mismatch (-want +got):\n%s", diff)
	}
}

func TestRange(t *testing.T) {
	lo, hi, ok := Range([][]float64{{3, math.Inf(1)}, {math.NaN(), -1}})
	assert.True(t, ok)
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 3.0, hi)

	_, _, ok = Range([][]float64{{math.NaN()}})
	assert.False(t, ok)
}
