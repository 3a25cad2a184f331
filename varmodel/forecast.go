package varmodel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Forecast produces a multi-step-ahead forecast from the last p rows of
// yHist. This is deliberately outside ssm's scope (spec.md's non-goals
// exclude forecasting beyond the natural one-step prediction the filter
// already produces); it stays here as a feature of the VAR companion,
// not the core.
func (rf *ReducedFormVAR) Forecast(yHist *mat.Dense, steps int) (*mat.Dense, error) {
	if rf == nil || len(rf.A) == 0 {
		return nil, fmt.Errorf("varmodel: model not estimated")
	}
	if steps <= 0 {
		return nil, fmt.Errorf("varmodel: steps must be > 0")
	}

	p := rf.Model.Lags
	if p <= 0 {
		return nil, fmt.Errorf("varmodel: lags must be > 0 to forecast")
	}

	T, K := yHist.Dims()
	if T < p {
		return nil, fmt.Errorf("varmodel: need at least %d rows in yHist, got %d", p, T)
	}

	totalRows := p + steps
	data := make([]float64, totalRows*K)
	for i := 0; i < p; i++ {
		for k := 0; k < K; k++ {
			data[i*K+k] = yHist.At(T-p+i, k)
		}
	}
	out := mat.NewDense(totalRows, K, data)

	hasConst, hasTrend, _ := detColumns(rf.Model.Deterministic)
	detConstIdx, detTrendIdx := 0, 0
	detCols := 0
	if hasConst {
		detCols++
	}
	if hasTrend {
		detTrendIdx = detCols
		detCols++
	}

	for step := 0; step < steps; step++ {
		row := p + step
		tIdx := float64(T + step + 1)

		for eq := 0; eq < K; eq++ {
			val := 0.0
			if rf.C != nil && detCols > 0 {
				if hasConst {
					val += rf.C.At(eq, detConstIdx)
				}
				if hasTrend {
					val += rf.C.At(eq, detTrendIdx) * tIdx
				}
			}
			for lag := 1; lag <= p; lag++ {
				A := rf.A[lag-1]
				prevRow := row - lag
				for k := 0; k < K; k++ {
					val += A.At(eq, k) * out.At(prevRow, k)
				}
			}
			out.Set(row, eq, val)
		}
	}

	return mat.DenseCopyOf(out.Slice(p, totalRows, 0, K)), nil
}
