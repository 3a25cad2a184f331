package ssm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// Smoothing a stationary, noiseless AR(1) with a single observation
// should reproduce the filtered state exactly: the filter already
// recovers the state with zero posterior variance, so there is nothing
// left for the backward pass to revise.
func TestSmooth_StationaryAR1_MatchesFilterWhenNoiseless(t *testing.T) {
	phi := 0.5
	p := scalarParams(phi, 0, 1)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y0 := 2.0
	y := mat.NewDense(1, 1, []float64{y0})
	sm, filt, err := Smooth(p, init, y)
	require.NoError(t, err)

	require.True(t, almostEqual(sm.Alpha[0].AtVec(0), y0, 1e-9), "Alpha[0] = %v, want %v", sm.Alpha[0].AtVec(0), y0)
	require.True(t, almostEqual(sm.N[0].At(0, 0), 0.75, 1e-9), "N[0] = %v, want 0.75", sm.N[0].At(0, 0))
	require.True(t, almostEqual(sm.Eta[0].AtVec(0), 1.5, 1e-9), "Eta[0] = %v, want 1.5", sm.Eta[0].AtVec(0))
	require.Equal(t, filt.LogLik, sm.LogLik, "Smooth's LogLik should match Filter's")
}

// A single-observation scalar random walk exercises the exact-initial
// phase's diffuse branch; the hand-derived smoothed state equals the
// filtered posterior (1.0) and N collapses to 0 at the one period
// the sample provides.
func TestSmooth_ScalarRandomWalk_SingleObservation(t *testing.T) {
	p := scalarParams(1, 1, 1)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 1, []float64{1.0})
	sm, filt, err := Smooth(p, init, y)
	require.NoError(t, err)
	require.Equal(t, 1, filt.Dt)

	require.True(t, almostEqual(sm.Alpha[0].AtVec(0), 1.0, 1e-9), "Alpha[0] = %v, want 1.0", sm.Alpha[0].AtVec(0))
	require.True(t, almostEqual(sm.N[0].At(0, 0), 0.0, 1e-9), "N[0] = %v, want 0.0", sm.N[0].At(0, 0))
	require.True(t, almostEqual(sm.Rd[0].AtVec(0), 1.0, 1e-9), "Rd[0] = %v, want 1.0", sm.Rd[0].AtVec(0))
}

// Postprocess's disturbance formulas, checked against the single-
// observation random walk hand-derivation: VarEps collapses to H
// (nothing is learned about the measurement noise beyond the prior
// when N is zero), and the smoothed measurement residual is exactly 0
// since the diffuse prior lets the filter match y0 exactly.
func TestPostprocess_ScalarRandomWalk_SingleObservation(t *testing.T) {
	p := scalarParams(1, 1, 1)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 1, []float64{1.0})
	sm, filt, err := Smooth(p, init, y)
	require.NoError(t, err)
	post := Postprocess(p, filt, sm)

	require.True(t, almostEqual(post.VarEps[0].At(0, 0), 1.0, 1e-9), "VarEps[0] = %v, want 1.0", post.VarEps[0].At(0, 0))
	require.True(t, almostEqual(post.VarEta[0].At(0, 0), 1.0, 1e-9), "VarEta[0] = %v, want 1.0", post.VarEta[0].At(0, 0))
	require.True(t, almostEqual(post.EpsHat.At(0, 0), 0.0, 1e-9), "EpsHat[0,0] = %v, want 0.0", post.EpsHat.At(0, 0))
}
