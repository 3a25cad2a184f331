package ssm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// scalarParams builds a time-invariant scalar model y_t = alpha_t + eps_t,
// alpha_t = T*alpha_{t-1} + eta_t, eps_t ~ N(0,H), eta_t ~ N(0,Q).
func scalarParams(T, H, Q float64) *Params {
	return &Params{
		Z: NewConstMatrix(mat.NewDense(1, 1, []float64{1})),
		D: NewConstVector(mat.NewVecDense(1, []float64{0})),
		H: NewConstCov(mat.NewSymDense(1, []float64{H})),
		T: NewConstMatrix(mat.NewDense(1, 1, []float64{T})),
		C: NewConstVector(mat.NewVecDense(1, []float64{0})),
		R: NewConstMatrix(mat.NewDense(1, 1, []float64{1})),
		Q: NewConstCov(mat.NewSymDense(1, []float64{Q})),
		P: 1, M: 1, G: 1,
	}
}

// A scalar random walk (T=1) starts fully diffuse. With a single
// observation y0, the exact-diffuse update collapses the diffuse block
// immediately and the filtered state equals y0 exactly (hand-derived:
// the diffuse gain update reduces to a = y0, posterior variance = H).
func TestFilter_ScalarRandomWalk_SingleObservation(t *testing.T) {
	p := scalarParams(1, 1, 1)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 1, []float64{1.0})
	res, err := Filter(p, init, y)
	require.NoError(t, err)

	require.Equal(t, 1, res.Dt)
	if !almostEqual(res.A[0].AtVec(0), 0, 1e-12) {
		t.Errorf("A[0] = %v, want 0", res.A[0].AtVec(0))
	}
	if !almostEqual(res.A[1].AtVec(0), 1.0, 1e-9) {
		t.Errorf("A[1] = %v, want 1.0", res.A[1].AtVec(0))
	}
	if !almostEqual(res.P[1].At(0, 0), 2.0, 1e-9) {
		t.Errorf("P[1] = %v, want 2.0", res.P[1].At(0, 0))
	}
	if !almostEqual(res.Pd[1].At(0, 0), 0.0, 1e-9) {
		t.Errorf("Pd[1] = %v, want 0.0", res.Pd[1].At(0, 0))
	}
	if !almostEqual(res.F.At(0, 0), 2.0, 1e-9) {
		t.Errorf("F[0,0] = %v, want 2.0", res.F.At(0, 0))
	}
	if !almostEqual(res.Fd.At(0, 0), 1.0, 1e-9) {
		t.Errorf("Fd[0,0] = %v, want 1.0", res.Fd.At(0, 0))
	}

	wantLogLik := -0.5*math.Log(2*math.Pi) - 0.5*math.Log(1.0)
	if !almostEqual(res.LogLik, wantLogLik, 1e-9) {
		t.Errorf("LogLik = %v, want %v", res.LogLik, wantLogLik)
	}
}

// A stationary AR(1) with H=0 recovers the state exactly on the first
// observation: with no measurement noise, the posterior variance
// collapses to zero and the filtered mean equals y0.
func TestFilter_StationaryAR1_ExactRecoveryWhenNoiseless(t *testing.T) {
	phi := 0.5
	Q := 1.0
	p := scalarParams(phi, 0, Q)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	wantPrior := Q / (1 - phi*phi) // unconditional AR(1) variance, 4/3
	require.InDelta(t, wantPrior, init.PStar0().At(0, 0), 1e-9)

	y0 := 2.0
	y := mat.NewDense(1, 1, []float64{y0})
	res, err := Filter(p, init, y)
	require.NoError(t, err)

	require.Equal(t, 0, res.Dt, "fully stationary init should need no diffuse periods")
	if !almostEqual(res.A[1].AtVec(0), phi*y0, 1e-9) {
		t.Errorf("A[1] = %v, want %v", res.A[1].AtVec(0), phi*y0)
	}
	// Posterior variance after the noiseless observation is exactly 0,
	// so the one-step-ahead prior variance is purely process noise.
	if !almostEqual(res.P[1].At(0, 0), Q, 1e-9) {
		t.Errorf("P[1] = %v, want %v (pure process noise)", res.P[1].At(0, 0), Q)
	}

	Fstar := wantPrior
	wantLogLik := -0.5*math.Log(2*math.Pi) - 0.5*(math.Log(Fstar)+y0*y0/Fstar)
	if !almostEqual(res.LogLik, wantLogLik, 1e-9) {
		t.Errorf("LogLik = %v, want %v", res.LogLik, wantLogLik)
	}
}

// A random walk observed through a zero loading (Z=0) never collapses
// its diffuse block: no observation carries any information about the
// state, so Filter must report DegenerateDiffuseInitError.
func TestFilter_DegenerateDiffuseInit(t *testing.T) {
	p := scalarParams(1, 1, 1)
	p.Z = NewConstMatrix(mat.NewDense(1, 1, []float64{0}))

	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 3, []float64{1, 2, 3})
	_, err = Filter(p, init, y)
	require.Error(t, err)
	require.ErrorAs(t, err, new(*DegenerateDiffuseInitError))
}

// A correlated observation covariance H must not be read as if it were
// diagonal: Filter has to run C4's Factorize internally first. This is
// checked against the textbook joint-multivariate Kalman likelihood
// (computed here by hand from F = Z PStar0 Z' + H and its inverse,
// independent of this package's LDL/univariate machinery) for a single
// two-series observation of a stationary AR(1) state: before the univariate LDL fix this would have read only H's
// diagonal and silently understated the correlation's effect on the
// likelihood.
func TestFilter_CorrelatedH_MatchesJointGaussianLikelihood(t *testing.T) {
	phi, Q := 0.5, 1.0
	p := &Params{
		Z: NewConstMatrix(mat.NewDense(2, 1, []float64{1, 1})),
		D: NewConstVector(mat.NewVecDense(2, []float64{0, 0})),
		H: NewConstCov(mat.NewSymDense(2, []float64{1, 0.5, 0.5, 1})),
		T: NewConstMatrix(mat.NewDense(1, 1, []float64{phi})),
		C: NewConstVector(mat.NewVecDense(1, []float64{0})),
		R: NewConstMatrix(mat.NewDense(1, 1, []float64{1})),
		Q: NewConstCov(mat.NewSymDense(1, []float64{Q})),
		P: 2, M: 1, G: 1,
	}
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y := mat.NewDense(2, 1, []float64{1.2, 0.8})
	res, err := Filter(p, init, y)
	require.NoError(t, err)

	// F = Z PStar0 Z' + H = [[7/3, 11/6], [11/6, 7/3]], |F| = 25/12,
	// v'F^-1 v = 0.64 exactly (hand-derived from PStar0 = Q/(1-phi^2) = 4/3).
	wantLogLik := -0.5*(2*math.Log(2*math.Pi) + math.Log(25.0/12.0) + 0.64)
	require.InDelta(t, wantLogLik, res.LogLik, 1e-6)
}

// A missing observation in the middle of the sample should not break
// the recursion: the period with NaN y simply contributes no update,
// and Filter should still produce a finite log-likelihood and state
// path.
func TestFilter_MissingObservation(t *testing.T) {
	p := scalarParams(1, 1, 1)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 3, []float64{1, math.NaN(), 3})
	res, err := Filter(p, init, y)
	require.NoError(t, err)

	require.False(t, math.IsNaN(res.LogLik) || math.IsInf(res.LogLik, 0), "LogLik should stay finite across a missing observation")
	for i, a := range res.A {
		require.Falsef(t, math.IsNaN(a.AtVec(0)), "A[%d] should stay finite", i)
	}
	require.True(t, math.IsNaN(res.V.At(0, 1)), "innovation at the missing period should stay NaN")
}
