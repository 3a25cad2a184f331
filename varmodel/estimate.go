package varmodel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Spec returns the fitted model's specification.
func (rf *ReducedFormVAR) Spec() ModelSpec { return rf.Model }

// Phi returns the lag coefficient matrices A_1..A_p.
func (rf *ReducedFormVAR) Phi() []*mat.Dense { return rf.A }

// CovU returns the innovation covariance SigmaU.
func (rf *ReducedFormVAR) CovU() *mat.SymDense { return rf.SigmaU }

func detColumns(d Deterministic) (hasConst, hasTrend bool, cols int) {
	hasConst = d == DetConst || d == DetConstTrend
	hasTrend = d == DetTrend || d == DetConstTrend
	if hasConst {
		cols++
	}
	if hasTrend {
		cols++
	}
	return
}

// Estimate fits a VAR(p) by OLS, falling back to a minimum-norm SVD
// solve when the regressor Gram matrix is singular.
func (e *OLSEstimator) Estimate(ts *TimeSeries, spec ModelSpec, opts EstimationOptions) (*ReducedFormVAR, error) {
	if ts == nil || ts.Y == nil {
		return nil, fmt.Errorf("varmodel: time series data not provided")
	}

	T, K := ts.Y.Dims()
	p := spec.Lags
	if p <= 0 {
		return nil, fmt.Errorf("varmodel: lags must be > 0")
	}
	if T <= p {
		return nil, fmt.Errorf("varmodel: need at least p+1 observations: p=%d, T=%d", p, T)
	}
	if spec.HasExogenous {
		return nil, fmt.Errorf("varmodel: exogenous variables not supported yet")
	}

	Treg := T - p
	Yreg := mat.NewDense(Treg, K, nil)
	for t := 0; t < Treg; t++ {
		for k := 0; k < K; k++ {
			Yreg.Set(t, k, ts.Y.At(t+p, k))
		}
	}

	hasConst, hasTrend, detCols := detColumns(spec.Deterministic)
	lagCols := p * K
	m := detCols + lagCols

	X := mat.NewDense(Treg, m, nil)
	for t := 0; t < Treg; t++ {
		col := 0
		timeIdx := float64(t + p + 1)
		if hasConst {
			X.Set(t, col, 1.0)
			col++
		}
		if hasTrend {
			X.Set(t, col, timeIdx)
			col++
		}
		for lag := 1; lag <= p; lag++ {
			srcRow := t + p - lag
			for k := 0; k < K; k++ {
				X.Set(t, col, ts.Y.At(srcRow, k))
				col++
			}
		}
	}

	var B mat.Dense
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err == nil {
		var xty mat.Dense
		xty.Mul(X.T(), Yreg)
		B.Mul(&xtxInv, &xty)
	} else {
		var svd mat.SVD
		if !svd.Factorize(X, mat.SVDFullU|mat.SVDFullV) {
			return nil, fmt.Errorf("varmodel: OLS failed, X'X singular and SVD factorization failed: %w", err)
		}
		rank := svd.Rank(1e-12)
		if rank == 0 {
			B = *mat.NewDense(m, K, nil)
		} else {
			svd.SolveTo(&B, Yreg, rank)
		}
	}

	var C *mat.Dense
	if detCols > 0 {
		C = mat.NewDense(K, detCols, nil)
		for k := 0; k < K; k++ {
			for d := 0; d < detCols; d++ {
				C.Set(k, d, B.At(d, k))
			}
		}
	}

	A := make([]*mat.Dense, p)
	for lag := 0; lag < p; lag++ {
		Aj := mat.NewDense(K, K, nil)
		rowOffset := detCols + lag*K
		for eq := 0; eq < K; eq++ {
			for col := 0; col < K; col++ {
				Aj.Set(eq, col, B.At(rowOffset+col, eq))
			}
		}
		A[lag] = Aj
	}

	var Yhat mat.Dense
	Yhat.Mul(X, &B)
	var U mat.Dense
	U.Sub(Yreg, &Yhat)
	var utu mat.Dense
	utu.Mul(U.T(), &U)

	df := float64(Treg - m)
	if df <= 0 {
		df = float64(Treg)
	}
	sigmaData := make([]float64, K*K)
	for i := 0; i < K; i++ {
		for k := 0; k < K; k++ {
			sigmaData[i*K+k] = utu.At(i, k) / df
		}
	}

	return &ReducedFormVAR{
		Model:  spec,
		A:      A,
		C:      C,
		SigmaU: mat.NewSymDense(K, sigmaData),
	}, nil
}
