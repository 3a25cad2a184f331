package varmodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// --- Forecast tests ---

// VAR(1) scalar without deterministics: y_t = 0.5 y_{t-1}.
// If the last observed value is y_T = 1/16, forecasts should be
// 1/32, 1/64, 1/128, ....
func TestForecast_SimpleVAR1_NoDeterministic(t *testing.T) {
	spec := ModelSpec{
		Lags:          1,
		Deterministic: DetNone,
		HasExogenous:  false,
	}

	A1 := mat.NewDense(1, 1, []float64{0.5})
	rf := &ReducedFormVAR{
		Model: spec,
		A:     []*mat.Dense{A1},
	}

	histData := []float64{1.0, 0.5, 0.25, 0.125, 0.0625}
	yHist := mat.NewDense(len(histData), 1, histData)

	steps := 3
	fcst, err := rf.Forecast(yHist, steps)
	require.NoError(t, err)

	r, c := fcst.Dims()
	require.Equal(t, steps, r)
	require.Equal(t, 1, c)

	expected := []float64{0.03125, 0.015625, 0.0078125}
	for i := 0; i < steps; i++ {
		got := fcst.At(i, 0)
		require.Truef(t, almostEqual(got, expected[i], 1e-6), "Forecast[%d] = %v, want %v", i, got, expected[i])
	}
}

// VAR(1) scalar with constant only: y_t = c, c = 1.0. A_1 = 0, so all
// forecasts should be 1.
func TestForecast_Var1_ConstantOnly(t *testing.T) {
	spec := ModelSpec{
		Lags:          1,
		Deterministic: DetConst,
		HasExogenous:  false,
	}

	A1 := mat.NewDense(1, 1, []float64{0.0})
	C := mat.NewDense(1, 1, []float64{1.0})
	rf := &ReducedFormVAR{
		Model: spec,
		A:     []*mat.Dense{A1},
		C:     C,
	}

	histData := []float64{0, 0, 0}
	yHist := mat.NewDense(len(histData), 1, histData)

	steps := 4
	fcst, err := rf.Forecast(yHist, steps)
	require.NoError(t, err)

	r, c := fcst.Dims()
	require.Equal(t, steps, r)
	require.Equal(t, 1, c)

	for i := 0; i < steps; i++ {
		got := fcst.At(i, 0)
		require.Truef(t, almostEqual(got, 1.0, 1e-6), "Forecast[%d] = %v, want 1.0", i, got)
	}
}

// --- IRF tests ---

// Scalar VAR(1): y_t = a y_{t-1} + u_t, Var(u_t) = 1. With a Cholesky
// identification the unit shock gives IRF(h) = a^h.
func TestIRF_ScalarVAR1(t *testing.T) {
	spec := ModelSpec{
		Lags:          1,
		Deterministic: DetNone,
		HasExogenous:  false,
	}

	a := 0.5
	A1 := mat.NewDense(1, 1, []float64{a})
	SigmaU := mat.NewSymDense(1, []float64{1.0})

	rf := &ReducedFormVAR{
		Model:  spec,
		A:      []*mat.Dense{A1},
		SigmaU: SigmaU,
	}

	horizon := 5
	irf, err := rf.IRF(horizon, 0)
	require.NoError(t, err)

	r, c := irf.Dims()
	require.Equal(t, horizon, r)
	require.Equal(t, 1, c)

	val := 1.0
	for h := 0; h < horizon; h++ {
		got := irf.At(h, 0)
		require.Truef(t, almostEqual(got, val, 1e-6), "IRF[%d] = %v, want %v", h, got, val)
		val *= a
	}
}

// --- Estimate tests ---

// Estimate should recover roughly the correct coefficient for
// y_t = 0.5 y_{t-1} with no deterministic terms.
func TestEstimate_SimpleVAR1_NoDeterministic(t *testing.T) {
	data := []float64{1.0, 0.5, 0.25, 0.125, 0.0625, 0.03125, 0.015625}
	T := len(data)
	Y := mat.NewDense(T, 1, data)

	ts := &TimeSeries{Y: Y, Time: nil, VarNames: []string{"y"}}
	spec := ModelSpec{Lags: 1, Deterministic: DetNone, HasExogenous: false}
	opts := EstimationOptions{}

	est := &OLSEstimator{}
	rf, err := est.Estimate(ts, spec, opts)
	require.NoError(t, err)
	require.Len(t, rf.A, 1)

	phiHat := rf.A[0].At(0, 0)
	require.True(t, almostEqual(phiHat, 0.5, 1e-2), "Estimated phi = %v, want approx 0.5", phiHat)
	require.Nil(t, rf.C, "Expected no deterministic coefficients")
}

// Force X'X singular (all-zero regressors) to exercise the SVD /
// pseudoinverse fallback path.
func TestEstimate_PseudoinverseFallback(t *testing.T) {
	data := []float64{0, 0, 0, 0}
	T := len(data)
	Y := mat.NewDense(T, 1, data)

	ts := &TimeSeries{Y: Y, Time: nil, VarNames: []string{"y"}}
	spec := ModelSpec{Lags: 1, Deterministic: DetNone, HasExogenous: false}
	opts := EstimationOptions{}

	est := &OLSEstimator{}
	rf, err := est.Estimate(ts, spec, opts)
	require.NoError(t, err)
	require.Len(t, rf.A, 1)

	phiHat := rf.A[0].At(0, 0)
	require.True(t, almostEqual(phiHat, 0.0, 1e-6), "Estimated phi (pseudoinverse) = %v, want 0.0", phiHat)
}

// --- Granger causality test ---

// With y Granger-causing x by construction (x_t depends on y_{t-1} but
// not vice versa), the x<-y test should reject the null more strongly
// than the y<-x test.
func TestGrangerCausality_DirectionalAsymmetry(t *testing.T) {
	n := 60
	data := make([]float64, n*2)
	yPrev := 1.0
	for t := 0; t < n; t++ {
		x := 0.7*yPrev + 0.01*float64(t%3)
		y := 0.3 + 0.02*float64(t%5)
		data[t*2+0] = x
		data[t*2+1] = y
		yPrev = y
	}
	Y := mat.NewDense(n, 2, data)
	ts := &TimeSeries{Y: Y, Time: nil, VarNames: []string{"x", "y"}}

	spec := ModelSpec{Lags: 1, Deterministic: DetConst, HasExogenous: false}
	est := &OLSEstimator{}
	rf, err := est.Estimate(ts, spec, EstimationOptions{})
	require.NoError(t, err)

	yCausesX, err := rf.GrangerCausality(ts, 1, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, yCausesX.PValue, 0.0)
	require.LessOrEqual(t, yCausesX.PValue, 1.0)

	xCausesY, err := rf.GrangerCausality(ts, 0, 1)
	require.NoError(t, err)
	require.Less(t, yCausesX.PValue, xCausesY.PValue)
}

// --- State-space bridge test ---

// StateSpace should build a companion matrix whose top-left K x K block
// equals A_1 and whose first sub-diagonal block is the identity.
func TestStateSpace_CompanionForm(t *testing.T) {
	A1 := mat.NewDense(1, 1, []float64{0.6})
	A2 := mat.NewDense(1, 1, []float64{0.2})
	SigmaU := mat.NewSymDense(1, []float64{1.0})

	rf := &ReducedFormVAR{
		Model:  ModelSpec{Lags: 2, Deterministic: DetNone},
		A:      []*mat.Dense{A1, A2},
		SigmaU: SigmaU,
	}

	p, err := rf.StateSpace(10)
	require.NoError(t, err)
	require.Equal(t, 2, p.M)
	require.Equal(t, 1, p.P)
	require.Equal(t, 1, p.G)

	T := p.T.At(0)
	require.True(t, almostEqual(T.At(0, 0), 0.6, 1e-12), "T[0][0] = %v, want 0.6", T.At(0, 0))
	require.True(t, almostEqual(T.At(0, 1), 0.2, 1e-12), "T[0][1] = %v, want 0.2", T.At(0, 1))
	require.True(t, almostEqual(T.At(1, 0), 1.0, 1e-12), "T[1][0] = %v, want 1.0 (lag shift)", T.At(1, 0))
}
