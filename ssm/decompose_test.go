package ssm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// DecomposeSmoothed must return one contribution series per requested
// period plus the ConstContrib baseline, each spanning every time index
// with the model's state dimension.
func TestDecomposeSmoothed_Shapes(t *testing.T) {
	p := scalarParams(0.5, 1, 1)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 4, []float64{1.0, 0.8, 0.3, 0.1})
	periods := []int{0, 2}

	dec, err := DecomposeSmoothed(p, init, y, periods)
	require.NoError(t, err)

	require.Len(t, dec.Contributions, len(periods))
	require.Len(t, dec.ConstContrib, 4)
	for _, v := range dec.ConstContrib {
		require.Equal(t, p.M, v.Len())
	}
	for _, s := range periods {
		share, ok := dec.Contributions[s]
		require.Truef(t, ok, "missing contribution for period %d", s)
		require.Lenf(t, share, 4, "period %d", s)
		for idx, v := range share {
			require.Equalf(t, p.M, v.Len(), "period %d, t=%d", s, idx)
		}
	}
}

// With a single requested period, reintroducing that period's data on top
// of the baseline recovers the full dataset exactly, so
// ConstContrib[t] + Contributions[s][t] must equal the ordinary smoothed
// path's alpha_hat[t] exactly (a tautology of the construction, not an
// approximation — this is the one-period case where the documented
// reintroduce-jointly-vs-one-at-a-time gap cannot arise).
func TestDecomposeSmoothed_ReconstructsFullPath_SinglePeriod(t *testing.T) {
	p := scalarParams(0.5, 1, 1)
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 4, []float64{1.0, 0.8, 0.3, 0.1})
	full, _, err := Smooth(p, init, y)
	require.NoError(t, err)

	dec, err := DecomposeSmoothed(p, init, y, []int{1})
	require.NoError(t, err)

	share := dec.Contributions[1]
	for idx := 0; idx < 4; idx++ {
		var recon mat.VecDense
		recon.AddVec(dec.ConstContrib[idx], share[idx])
		require.InDeltaf(t, full.Alpha[idx].AtVec(0), recon.AtVec(0), 1e-9, "t=%d", idx)
	}
}

// Leaving out the only period carrying information about a stationary
// scalar model's state should shift that same period's smoothed value
// the most; distant, unaffected periods should shift far less once the
// state has had time to revert toward its unconditional mean.
func TestDecomposeSmoothed_OwnPeriodDominates(t *testing.T) {
	p := scalarParams(0.2, 1, 1) // fast mean reversion
	init, err := ComputeInit(p, nil)
	require.NoError(t, err)

	y := mat.NewDense(1, 5, []float64{0, 0, 5.0, 0, 0})
	dec, err := DecomposeSmoothed(p, init, y, []int{2})
	require.NoError(t, err)

	share := dec.Contributions[2]
	own := share[2].AtVec(0)
	far := share[0].AtVec(0)

	require.Greater(t, own, 0.0, "own-period contribution should be positive")
	require.Greater(t, own, far, "own-period contribution should exceed distant-period contribution")
}
