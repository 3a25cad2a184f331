package varmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// IRF computes the impulse response of every variable to a one-time
// structural shock in shockIndex, identified by a Cholesky factor of
// SigmaU (the recursive/short-run identification a reduced-form VAR
// supports without further restrictions).
func (rf *ReducedFormVAR) IRF(horizon int, shockIndex int) (*mat.Dense, error) {
	if rf == nil || len(rf.A) == 0 {
		return nil, fmt.Errorf("varmodel: model not estimated")
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("varmodel: horizon must be > 0")
	}

	p := rf.Model.Lags
	if p <= 0 {
		return nil, fmt.Errorf("varmodel: lags must be > 0 to IRF")
	}

	K, _ := rf.A[0].Dims()
	if shockIndex < 0 || shockIndex >= K {
		return nil, fmt.Errorf("varmodel: shockIndex must be between 0 and %d", K-1)
	}

	shock := make([]float64, K)
	if rf.SigmaU != nil {
		var chol mat.Cholesky
		if chol.Factorize(rf.SigmaU) {
			L := mat.NewTriDense(K, mat.Lower, nil)
			chol.LTo(L)
			for i := 0; i < K; i++ {
				shock[i] = L.At(i, shockIndex)
			}
		} else {
			shock[shockIndex] = 1.0
		}
	} else {
		shock[shockIndex] = 1.0
	}

	psi := make([]*mat.Dense, horizon)
	ident := make([]float64, K*K)
	for i := 0; i < K; i++ {
		ident[i*K+i] = 1.0
	}
	psi[0] = mat.NewDense(K, K, ident)

	for h := 1; h < horizon; h++ {
		M := mat.NewDense(K, K, nil)
		maxLag := p
		if h < p {
			maxLag = h
		}
		for lag := 1; lag <= maxLag; lag++ {
			var tmp mat.Dense
			tmp.Mul(rf.A[lag-1], psi[h-lag])
			M.Add(M, &tmp)
		}
		psi[h] = M
	}

	irf := mat.NewDense(horizon, K, nil)
	shockVec := mat.NewVecDense(K, shock)
	for h := 0; h < horizon; h++ {
		var resp mat.VecDense
		resp.MulVec(psi[h], shockVec)
		for i := 0; i < K; i++ {
			irf.Set(h, i, resp.AtVec(i))
		}
	}

	return irf, nil
}

// RunIRFAnalysis collects, for every candidate shock variable, its
// impulse response on varIndex.
func (rf *ReducedFormVAR) RunIRFAnalysis(varIndex int, horizon int) (map[int][]float64, error) {
	if rf == nil || len(rf.A) == 0 {
		return nil, fmt.Errorf("varmodel: model not estimated")
	}
	K, _ := rf.A[0].Dims()
	if varIndex < 0 || varIndex >= K {
		return nil, fmt.Errorf("varmodel: varIndex must be between 0 and %d", K-1)
	}

	results := make(map[int][]float64)
	for shockIdx := 0; shockIdx < K; shockIdx++ {
		irfMat, err := rf.IRF(horizon, shockIdx)
		if err != nil {
			return nil, fmt.Errorf("varmodel: IRF failed for shockIdx %d: %w", shockIdx, err)
		}
		series := make([]float64, horizon)
		for h := 0; h < horizon; h++ {
			series[h] = irfMat.At(h, varIndex)
		}
		results[shockIdx] = series
	}
	return results, nil
}

// GrangerCausality tests whether causeIdx Granger-causes effectIdx via a
// restricted/unrestricted F-test.
func (rf *ReducedFormVAR) GrangerCausality(ts *TimeSeries, causeIdx, effectIdx int) (*GrangerCausalityResult, error) {
	if ts == nil || ts.Y == nil {
		return nil, fmt.Errorf("varmodel: time series data not provided")
	}

	T, K := ts.Y.Dims()
	p := rf.Model.Lags
	if causeIdx < 0 || causeIdx >= K {
		return nil, fmt.Errorf("varmodel: causeIdx out of range: %d", causeIdx)
	}
	if effectIdx < 0 || effectIdx >= K {
		return nil, fmt.Errorf("varmodel: effectIdx out of range: %d", effectIdx)
	}
	if causeIdx == effectIdx {
		return nil, fmt.Errorf("varmodel: causeIdx and effectIdx cannot be the same")
	}

	Treg := T - p
	yEffect := mat.NewVecDense(Treg, nil)
	for t := 0; t < Treg; t++ {
		yEffect.SetVec(t, ts.Y.At(t+p, effectIdx))
	}

	hasConst, hasTrend, detCols := detColumns(rf.Model.Deterministic)

	lagCols := p * K
	mUnrestricted := detCols + lagCols
	XUnrestricted := mat.NewDense(Treg, mUnrestricted, nil)
	for t := 0; t < Treg; t++ {
		col := 0
		timeIdx := float64(t + p + 1)
		if hasConst {
			XUnrestricted.Set(t, col, 1.0)
			col++
		}
		if hasTrend {
			XUnrestricted.Set(t, col, timeIdx)
			col++
		}
		for lag := 1; lag <= p; lag++ {
			srcRow := t + p - lag
			for k := 0; k < K; k++ {
				XUnrestricted.Set(t, col, ts.Y.At(srcRow, k))
				col++
			}
		}
	}

	var betaUnrestricted mat.VecDense
	if err := betaUnrestricted.SolveVec(XUnrestricted, yEffect); err != nil {
		return nil, fmt.Errorf("varmodel: failed to solve unrestricted model: %w", err)
	}
	var yHatUnrestricted mat.VecDense
	yHatUnrestricted.MulVec(XUnrestricted, &betaUnrestricted)
	var residUnrestricted mat.VecDense
	residUnrestricted.SubVec(yEffect, &yHatUnrestricted)
	rssUnrestricted := mat.Dot(&residUnrestricted, &residUnrestricted)

	mRestricted := detCols + p*(K-1)
	XRestricted := mat.NewDense(Treg, mRestricted, nil)
	for t := 0; t < Treg; t++ {
		col := 0
		timeIdx := float64(t + p + 1)
		if hasConst {
			XRestricted.Set(t, col, 1.0)
			col++
		}
		if hasTrend {
			XRestricted.Set(t, col, timeIdx)
			col++
		}
		for lag := 1; lag <= p; lag++ {
			srcRow := t + p - lag
			for k := 0; k < K; k++ {
				if k != causeIdx {
					XRestricted.Set(t, col, ts.Y.At(srcRow, k))
					col++
				}
			}
		}
	}

	var betaRestricted mat.VecDense
	if err := betaRestricted.SolveVec(XRestricted, yEffect); err != nil {
		return nil, fmt.Errorf("varmodel: failed to solve restricted model: %w", err)
	}
	var yHatRestricted mat.VecDense
	yHatRestricted.MulVec(XRestricted, &betaRestricted)
	var residRestricted mat.VecDense
	residRestricted.SubVec(yEffect, &yHatRestricted)
	rssRestricted := mat.Dot(&residRestricted, &residRestricted)

	q := float64(p)
	k := float64(mUnrestricted)
	dof := float64(Treg) - k
	if dof <= 0 {
		return nil, fmt.Errorf("varmodel: insufficient degrees of freedom: %f", dof)
	}

	fStatistic := ((rssRestricted - rssUnrestricted) / q) / (rssUnrestricted / dof)
	fDist := distuv.F{D1: q, D2: dof}
	pValue := 1.0 - fDist.CDF(fStatistic)

	if math.IsNaN(fStatistic) || math.IsInf(fStatistic, 0) {
		fStatistic = 0
		pValue = 1.0
	}
	if pValue < 0 {
		pValue = 0
	}
	if pValue > 1 {
		pValue = 1.0
	}

	return &GrangerCausalityResult{
		CauseVar:    ts.VarNames[causeIdx],
		EffectVar:   ts.VarNames[effectIdx],
		FStatistic:  fStatistic,
		PValue:      pValue,
		Lags:        p,
		Significant: pValue < 0.05,
	}, nil
}

// GrangerCausalityMatrix runs every pairwise Granger test.
func (rf *ReducedFormVAR) GrangerCausalityMatrix(ts *TimeSeries) ([][]*GrangerCausalityResult, error) {
	if ts == nil || ts.Y == nil {
		return nil, fmt.Errorf("varmodel: time series data not provided")
	}
	_, K := ts.Y.Dims()

	results := make([][]*GrangerCausalityResult, K)
	for i := range results {
		results[i] = make([]*GrangerCausalityResult, K)
	}

	for i := 0; i < K; i++ {
		for k := 0; k < K; k++ {
			if i == k {
				continue
			}
			result, err := rf.GrangerCausality(ts, i, k)
			if err != nil {
				return nil, fmt.Errorf("varmodel: error testing %s -> %s: %w", ts.VarNames[i], ts.VarNames[k], err)
			}
			results[i][k] = result
		}
	}
	return results, nil
}
