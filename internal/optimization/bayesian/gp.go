package bayesian

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/landscape/internal/optimization"
	"github.com/copyleftdev/landscape/internal/optimization/kernels"
)

// maxJitterAttempts bounds the diagonal jitter retries of Fit. The jitter
// grows tenfold on every attempt.
const maxJitterAttempts = 6

// ErrNotFitted is returned by Predict before a successful Fit.
var ErrNotFitted = errors.New("model not fitted")

// GP is a Gaussian process regression model with a zero prior mean over
// standardised targets.
type GP struct {
	kernel   kernels.Kernel
	noiseVar float64
	logger   *zap.Logger

	// Training inputs (n_samples, n_features)
	X     *mat.Dense
	alpha *mat.VecDense
	chol  *mat.Cholesky
	// kernel matrix buffer, reused while the sample count is unchanged
	k *mat.SymDense

	yMean  float64
	yScale float64
}

// NewGP creates a Gaussian process. A nil logger discards.
func NewGP(kernel kernels.Kernel, noiseVar float64, logger *zap.Logger) *GP {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GP{
		kernel:   kernel,
		noiseVar: noiseVar,
		logger:   logger.Named("gaussian_process"),
		yScale:   1,
	}
}

func gpError(op string, err error) error {
	return optimization.WrapErrorf(err, "%s failed", op).WithComponent("gaussian_process").WithOperation(op)
}

// Fit conditions the model on the rows of X and the targets y.
func (gp *GP) Fit(X *mat.Dense, y *mat.VecDense) error {
	const op = "fit"

	if X == nil || y == nil {
		return gpError(op, errors.New("input matrices must not be nil"))
	}
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return gpError(op, errors.New("input matrix X must not be empty"))
	}
	if n != y.Len() {
		return gpError(op, fmt.Errorf("dimension mismatch: X has %d samples but y has length %d", n, y.Len()))
	}

	targets := make([]float64, n)
	for i := range targets {
		targets[i] = y.AtVec(i)
	}
	gp.yMean, gp.yScale = stat.MeanStdDev(targets, nil)
	if n == 1 || !(gp.yScale > 0) || math.IsInf(gp.yScale, 0) {
		gp.yScale = 1
	}
	standardised := mat.NewVecDense(n, nil)
	for i, v := range targets {
		standardised.SetVec(i, (v-gp.yMean)/gp.yScale)
	}

	gp.fillKernelMatrix(X, n)

	var chol mat.Cholesky
	jitter := 0.0
	ok := chol.Factorize(gp.k)
	for attempt := 1; !ok && attempt <= maxJitterAttempts; attempt++ {
		added := math.Pow(10, float64(attempt-11))
		for i := 0; i < n; i++ {
			gp.k.SetSym(i, i, gp.k.At(i, i)+added)
		}
		jitter += added
		gp.logger.Debug("Kernel matrix not positive definite, adding jitter",
			zap.Int("attempt", attempt),
			zap.Float64("jitter", jitter),
		)
		ok = chol.Factorize(gp.k)
	}
	if !ok {
		return gpError(op, fmt.Errorf("cholesky decomposition failed after %d jitter attempts", maxJitterAttempts))
	}

	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, standardised); err != nil {
		return gpError(op, fmt.Errorf("failed to solve linear system: %w", err))
	}

	gp.X = mat.DenseCopyOf(X)
	gp.alpha = alpha
	gp.chol = &chol

	if ce := gp.logger.Check(zap.DebugLevel, "Fitted GP model"); ce != nil {
		ce.Write(
			zap.Int("samples", n),
			zap.Int("features", d),
			zap.Float64("noise_var", gp.noiseVar),
			zap.Float64("condition_number", chol.Cond()),
		)
	}
	return nil
}

func (gp *GP) fillKernelMatrix(X *mat.Dense, n int) {
	if gp.k == nil || gp.k.SymmetricDim() != n {
		gp.k = mat.NewSymDense(n, nil)
	}
	for i := 0; i < n; i++ {
		xi := X.RawRowView(i)
		gp.k.SetSym(i, i, gp.kernel.Eval(xi, xi)+gp.noiseVar)
		for j := i + 1; j < n; j++ {
			gp.k.SetSym(i, j, gp.kernel.Eval(xi, X.RawRowView(j)))
		}
	}
}

// Fitted reports whether Predict can be called.
func (gp *GP) Fitted() bool {
	return gp.alpha != nil
}

// PredictPoint returns the posterior mean and standard deviation at x in
// the units of the training targets.
func (gp *GP) PredictPoint(x []float64) (mean, stddev float64, err error) {
	if !gp.Fitted() {
		return 0, 0, gpError("predict", ErrNotFitted)
	}
	n, d := gp.X.Dims()
	if len(x) != d {
		return 0, 0, gpError("predict", fmt.Errorf("point has %d features, model has %d", len(x), d))
	}

	kstar := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		kstar.SetVec(i, gp.kernel.Eval(x, gp.X.RawRowView(i)))
	}
	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, kstar); err != nil {
		return 0, 0, gpError("predict", err)
	}

	mean = mat.Dot(kstar, gp.alpha)*gp.yScale + gp.yMean
	variance := gp.kernel.Eval(x, x) - mat.Dot(kstar, v)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance) * gp.yScale, nil
}

// Predict returns the posterior mean and variance at every row of X.
func (gp *GP) Predict(X *mat.Dense) (*mat.VecDense, *mat.VecDense, error) {
	if X == nil {
		return nil, nil, gpError("predict", errors.New("input matrix X is nil"))
	}
	rows, _ := X.Dims()
	mean := mat.NewVecDense(rows, nil)
	variance := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		mu, sd, err := gp.PredictPoint(X.RawRowView(i))
		if err != nil {
			return nil, nil, err
		}
		mean.SetVec(i, mu)
		variance.SetVec(i, sd*sd)
	}
	return mean, variance, nil
}
