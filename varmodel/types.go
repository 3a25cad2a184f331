// Package varmodel fits reduced-form vector autoregressions and bridges
// a fitted VAR(p) into the companion-form state-space parameters the ssm
// package consumes. It plays the role spec.md assigns to an external
// collaborator (a StateSpaceEstimation-style driver): ssm never imports
// this package, only the reverse.
package varmodel

import (
	"gonum.org/v1/gonum/mat"
)

// TimeSeries is a T x K panel of observations: rows are time points,
// columns are variables.
type TimeSeries struct {
	Y        *mat.Dense
	Time     []float64
	VarNames []string
}

// Deterministic selects which deterministic terms a VAR includes.
type Deterministic int

const (
	DetNone Deterministic = iota
	DetConst
	DetTrend
	DetConstTrend
)

// ModelSpec describes the VAR to fit: lag order, deterministic terms, and
// whether exogenous regressors are present (not yet supported).
type ModelSpec struct {
	Lags          int
	Deterministic Deterministic
	HasExogenous  bool
}

// ReducedFormVAR is a fitted VAR(p): y_t = c + sum_j A_j y_{t-j} + u_t,
// u_t ~ N(0, SigmaU).
type ReducedFormVAR struct {
	Model ModelSpec

	A      []*mat.Dense  // lag coefficient matrices A_1..A_p, each K x K
	C      *mat.Dense    // K x detCols deterministic coefficients, nil if none
	SigmaU *mat.SymDense // K x K innovation covariance
}

// ReducedForm is the interface a fitted model exposes to forecasting and
// impulse-response code, independent of how it was estimated.
type ReducedForm interface {
	Spec() ModelSpec
	Phi() []*mat.Dense
	CovU() *mat.SymDense

	Forecast(y0 *mat.Dense, steps int) (*mat.Dense, error)
	IRF(horizon int, shockIndex int) (*mat.Dense, error)
}

// EstimationOptions carries estimator-specific knobs. OLS currently
// ignores it; it exists so alternative estimators (e.g. a Bayesian VAR)
// can share the Estimator interface without an API break.
type EstimationOptions struct {
	UseGeneralizedLeastSquares bool
}

// Estimator turns a panel of data into a fitted reduced-form VAR.
type Estimator interface {
	Estimate(ts *TimeSeries, spec ModelSpec, opts EstimationOptions) (*ReducedFormVAR, error)
}

// OLSEstimator fits a VAR by equation-by-equation least squares (or, when
// the regressor matrix is singular, a minimum-norm SVD solve).
type OLSEstimator struct{}

// GrangerCausalityResult holds the outcome of one pairwise Granger test.
type GrangerCausalityResult struct {
	CauseVar    string
	EffectVar   string
	FStatistic  float64
	PValue      float64
	Lags        int
	Significant bool
}
