package ssm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// Gradient's closed-form d(log-lik)/dQ should agree with a central
// finite difference on a scalar random walk (T=1): the diffuse prior
// has no stationary block, so perturbing Q cannot also perturb the
// initial condition through the Lyapunov solve, isolating exactly the
// sensitivity Gradient's Q-block accounts for.
func TestGradient_ScalarRandomWalk_MatchesFiniteDifference(t *testing.T) {
	y := mat.NewDense(1, 3, []float64{1.0, 2.0, 1.5})
	Q0 := 1.0
	eps := 1e-4

	loglik := func(q float64) float64 {
		p := scalarParams(1, 1, q)
		init, err := ComputeInit(p, nil)
		require.NoError(t, err)
		filt, err := Filter(p, init, y)
		require.NoError(t, err)
		return filt.LogLik
	}

	fd := (loglik(Q0+eps) - loglik(Q0-eps)) / (2 * eps)

	p := scalarParams(1, 1, Q0)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)
	jac := &GradientJacobians{
		Q: []*mat.Dense{mat.NewDense(1, 1, []float64{1})},
	}
	result, err := Gradient(p, init, y, jac)
	require.NoError(t, err)

	assert.InDelta(t, fd, result.Grad, 1e-2)
}

// With every Jacobian field left nil, Gradient contributes nothing:
// the returned derivative must be exactly zero regardless of the data.
func TestGradient_NilJacobians_ReturnsZero(t *testing.T) {
	p := scalarParams(0.5, 1, 1)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)
	y := mat.NewDense(1, 2, []float64{1.0, 0.5})

	result, err := Gradient(p, init, y, &GradientJacobians{})
	require.NoError(t, err)
	assert.Zero(t, result.Grad, "Grad should be 0 with no Jacobians supplied")
	assert.False(t, math.IsNaN(result.LogLik))
}
