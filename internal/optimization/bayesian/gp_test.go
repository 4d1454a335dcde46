package bayesian

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/landscape/internal/optimization/kernels"
)

func rbf(t testing.TB, ls float64) kernels.Kernel {
	t.Helper()
	k, err := kernels.NewRBFKernel(ls, 1)
	require.NoError(t, err)
	return k
}

func TestGPFitAndPredict(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewVecDense(3, []float64{1, 2, 1})

	gp := NewGP(rbf(t, 1), 1e-6, nil)
	assert.False(t, gp.Fitted())
	require.NoError(t, gp.Fit(X, y))
	assert.True(t, gp.Fitted())

	// the posterior interpolates the training targets
	for i, want := range []float64{1, 2, 1} {
		mu, sd, err := gp.PredictPoint([]float64{float64(i + 1)})
		require.NoError(t, err)
		assert.InDelta(t, want, mu, 1e-3)
		assert.Less(t, sd, 1e-2)
	}

	// far from the data the prior of the standardised targets takes over
	mu, sd, err := gp.PredictPoint([]float64{100})
	require.NoError(t, err)
	mean, std := stat.MeanStdDev([]float64{1, 2, 1}, nil)
	assert.InDelta(t, mean, mu, 1e-9)
	assert.InDelta(t, std, sd, 1e-9)
}

func TestGPBatchPredict(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{0, 0, 1, 0, 0, 1, 1, 1})
	y := mat.NewVecDense(4, []float64{0, 1, 1, 2})
	gp := NewGP(rbf(t, 0.8), 1e-6, nil)
	require.NoError(t, gp.Fit(X, y))

	test := mat.NewDense(2, 2, []float64{0.5, 0.5, 0.2, 0.9})
	mean, variance, err := gp.Predict(test)
	require.NoError(t, err)
	require.Equal(t, 2, mean.Len())

	for i := 0; i < 2; i++ {
		mu, sd, err := gp.PredictPoint(test.RawRowView(i))
		require.NoError(t, err)
		assert.Equal(t, mu, mean.AtVec(i))
		assert.InDelta(t, sd*sd, variance.AtVec(i), 1e-12)
		assert.GreaterOrEqual(t, variance.AtVec(i), 0.0)
	}
}

func TestGPErrorHandling(t *testing.T) {
	gp := NewGP(rbf(t, 1), 1e-6, nil)

	_, _, err := gp.PredictPoint([]float64{1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFitted))

	tests := []struct {
		name string
		X    *mat.Dense
		y    *mat.VecDense
	}{
		{"nil X", nil, mat.NewVecDense(1, nil)},
		{"nil y", mat.NewDense(1, 1, nil), nil},
		{"dimension mismatch", mat.NewDense(3, 1, nil), mat.NewVecDense(2, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, gp.Fit(tt.X, tt.y))
			assert.False(t, gp.Fitted())
		})
	}

	require.NoError(t, gp.Fit(mat.NewDense(2, 2, []float64{0, 0, 1, 1}), mat.NewVecDense(2, []float64{0, 1})))
	_, _, err = gp.PredictPoint([]float64{1})
	assert.Error(t, err, "feature count must match")
	_, _, err = gp.Predict(nil)
	assert.Error(t, err)
}

func TestGPSingularMatrixUsesJitter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	// identical inputs without noise give a rank one kernel matrix
	X := mat.NewDense(3, 1, []float64{1, 1, 1})
	y := mat.NewVecDense(3, []float64{1, 1, 1})
	gp := NewGP(rbf(t, 1), 0, zap.New(core))
	require.NoError(t, gp.Fit(X, y))

	assert.NotZero(t, logs.FilterMessage("Kernel matrix not positive definite, adding jitter").Len())
	fitted := logs.FilterMessage("Fitted GP model").All()
	require.Len(t, fitted, 1)
	assert.Equal(t, int64(3), fitted[0].ContextMap()["samples"])

	mu, _, err := gp.PredictPoint([]float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 1, mu, 1e-6)
}

func TestGPSinglePoint(t *testing.T) {
	gp := NewGP(rbf(t, 1), 1e-6, nil)
	require.NoError(t, gp.Fit(mat.NewDense(1, 1, []float64{0}), mat.NewVecDense(1, []float64{5})))

	mu, sd, err := gp.PredictPoint([]float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 5, mu, 1e-4)
	assert.False(t, math.IsNaN(sd))
}
