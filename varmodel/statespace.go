package varmodel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/adgarrio/statespace/ssm"
)

// StateSpace builds the companion-form ssm.Params for this fitted VAR(p),
// the standard reduction of a K-variable, p-lag VAR into a
// first-order system of dimension m = Kp:
//
//	alpha_t = [y_t; y_{t-1}; ...; y_{t-p+1}]  (m x 1)
//	alpha_t = T alpha_{t-1} + c + R eta_t,    eta_t ~ N(0, SigmaU)
//	y_t     = Z alpha_t
//
// T is the Kp x Kp companion matrix (A_1..A_p across the top block row,
// identity blocks shifting the lags down); R selects the first K rows
// (only the current-period equation receives a fresh shock); Q = SigmaU;
// Z selects the first K rows of the state (the observation equation has
// no measurement error, H = 0, since the VAR's y_t is observed exactly
// given the state). StateSpace does not build the initial condition;
// DefaultInit supplies it from ssm.ComputeInit, which partitions the state
// by the eigenvalues of T.
//
// This is the bridge spec.md assigns to an external collaborator
// (StateSpaceEstimation in the terms of section 2): the core never
// constructs these parameters itself.
func (rf *ReducedFormVAR) StateSpace(n int) (*ssm.Params, error) {
	if rf == nil || len(rf.A) == 0 {
		return nil, fmt.Errorf("varmodel: model not estimated")
	}
	p := rf.Model.Lags
	K, _ := rf.A[0].Dims()
	m := K * p

	T := mat.NewDense(m, m, nil)
	for lag := 0; lag < p; lag++ {
		A := rf.A[lag]
		for i := 0; i < K; i++ {
			for j := 0; j < K; j++ {
				T.Set(i, lag*K+j, A.At(i, j))
			}
		}
	}
	for block := 0; block < p-1; block++ {
		for i := 0; i < K; i++ {
			T.Set((block+1)*K+i, block*K+i, 1.0)
		}
	}

	c := mat.NewVecDense(m, nil)
	if hasConst, _, _ := detColumns(rf.Model.Deterministic); rf.C != nil && hasConst {
		for i := 0; i < K; i++ {
			c.SetVec(i, rf.C.At(i, 0)) // constant term only; trend is not carried into the state mean
		}
	}

	R := mat.NewDense(m, K, nil)
	for i := 0; i < K; i++ {
		R.Set(i, i, 1.0)
	}

	Z := mat.NewDense(K, m, nil)
	for i := 0; i < K; i++ {
		Z.Set(i, i, 1.0)
	}

	H := mat.NewSymDense(K, nil)
	d := mat.NewVecDense(K, nil)

	Ttau := make([]int, n+1)
	Ctau := make([]int, n+1)
	Rtau := make([]int, n+1)
	Qtau := make([]int, n+1)
	Ztau := make([]int, n)
	Dtau := make([]int, n)
	Htau := make([]int, n)

	return &ssm.Params{
		Z: ssm.NewTimeVaryingMatrix([]*mat.Dense{Z}, Ztau),
		D: ssm.NewTimeVaryingVector([]*mat.VecDense{d}, Dtau),
		H: ssm.NewTimeVaryingCov([]*mat.SymDense{H}, Htau),
		T: ssm.NewTimeVaryingMatrix([]*mat.Dense{T}, Ttau),
		C: ssm.NewTimeVaryingVector([]*mat.VecDense{c}, Ctau),
		R: ssm.NewTimeVaryingMatrix([]*mat.Dense{R}, Rtau),
		Q: ssm.NewTimeVaryingCov([]*mat.SymDense{rf.SigmaU}, Qtau),
		P: K, M: m, G: K,
	}, nil
}

// DefaultInit builds the initial condition for a companion-form VAR by
// delegating to ssm.ComputeInit, which partitions the Kp-dimensional
// state into stationary and diffuse blocks from T's eigenvalues (section
// 4.3, C3) rather than this package re-deriving the stationarity check.
func (rf *ReducedFormVAR) DefaultInit(p *ssm.Params) (*ssm.Init, error) {
	return ssm.ComputeInit(p, nil)
}
