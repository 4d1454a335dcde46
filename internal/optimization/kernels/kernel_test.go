package kernels

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/landscape/internal/optimization"
)

func TestRBFKernel(t *testing.T) {
	tests := []struct {
		name     string
		x1, x2   []float64
		ls, sv   float64
		expected float64
	}{
		{"same point", []float64{1, 2}, []float64{1, 2}, 1, 1, 1},
		{"different points", []float64{0, 0}, []float64{1, 1}, 1, 1, math.Exp(-1)},
		{"with different length scale", []float64{0, 0}, []float64{2, 2}, 2, 1, math.Exp(-1)},
		{"signal variance scales", []float64{0}, []float64{0}, 1, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := NewRBFKernel(tt.ls, tt.sv)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, k.Eval(tt.x1, tt.x2), 1e-10)
			assert.InDelta(t, k.Eval(tt.x1, tt.x2), k.Eval(tt.x2, tt.x1), 1e-12, "symmetric")
		})
	}
}

func TestMatern52Kernel(t *testing.T) {
	s := math.Sqrt(5) * math.Sqrt(2)
	tests := []struct {
		name     string
		x1, x2   []float64
		ls, sv   float64
		expected float64
	}{
		{"same point", []float64{1, 2}, []float64{1, 2}, 1, 1, 1},
		{"different points", []float64{0, 0}, []float64{1, 1}, 1, 1, (1 + s + s*s/3) * math.Exp(-s)},
		{"far apart", []float64{0}, []float64{100}, 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := NewMatern52Kernel(tt.ls, tt.sv)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, k.Eval(tt.x1, tt.x2), 1e-10)
			assert.InDelta(t, k.Eval(tt.x1, tt.x2), k.Eval(tt.x2, tt.x1), 1e-12, "symmetric")
		})
	}
}

func TestKernelHyperparameters(t *testing.T) {
	rbf, err := NewRBFKernel(1, 1)
	require.NoError(t, err)
	matern, err := NewMatern52Kernel(1, 1)
	require.NoError(t, err)

	tests := []struct {
		name     string
		kernel   Kernel
		params   []float64
		errorMsg string
	}{
		{"RBF valid params", rbf, []float64{2, 3}, ""},
		{"RBF invalid params count", rbf, []float64{1}, "expected 2 hyperparameters, got 1"},
		{"RBF invalid param value", rbf, []float64{-1, 1}, "hyperparameters must be positive, got [-1 1]"},
		{"Matern52 valid params", matern, []float64{2, 3}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.kernel.Hyperparameters()
			err := tt.kernel.SetHyperparameters(tt.params)
			if tt.errorMsg != "" {
				require.EqualError(t, err, tt.errorMsg)
				assert.Equal(t, before, tt.kernel.Hyperparameters(), "rejected values are not applied")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.params, tt.kernel.Hyperparameters())
		})
	}
}

func TestNew(t *testing.T) {
	k, err := New(NameMatern52, 0.5, 2)
	require.NoError(t, err)
	assert.IsType(t, &Matern52Kernel{}, k)
	assert.Equal(t, []float64{0.5, 2}, k.Hyperparameters())

	k, err = New(NameRBF, 1, 1)
	require.NoError(t, err)
	assert.IsType(t, &RBFKernel{}, k)

	for _, tt := range []struct {
		name   string
		ls, sv float64
	}{
		{NameRBF, 0, 1},
		{NameMatern52, 1, -1},
		{"periodic", 1, 1},
	} {
		_, err := New(tt.name, tt.ls, tt.sv)
		require.Error(t, err, tt.name)
		assert.True(t, errors.Is(err, optimization.ErrInvalidConfig))
	}
}
