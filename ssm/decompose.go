package ssm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Decomposition attributes the smoothed state path to the individual
// observation periods named in the call to DecomposeSmoothed (external
// operation 4, section 6's dataDecomposition/constContrib pair).
// ConstContrib[t] is the smoothed state at t with every named period's
// data withheld — the part of alpha_hat that does not come from any of
// the periods under study. Contributions[s][t] is period s's marginal
// share of alpha_hat at t on top of that baseline: the full smoothed path
// at t is recovered, approximately (see DecomposeSmoothed), as
// ConstContrib[t] plus the sum of Contributions[s][t] over every
// requested s.
type Decomposition struct {
	Periods       []int
	ConstContrib  []*mat.VecDense         // length n, smoothed path with every named period withheld
	Contributions map[int][]*mat.VecDense // period s -> length n, share of alpha_hat at each t
}

// DecomposeSmoothed isolates each named period's contribution to the
// smoothed state path by withholding data (marking it missing) rather
// than a bespoke backward pass (section E): a period's contribution is
// recovered as the difference between a smoother pass that includes its
// data and one that withholds it.
//
// The baseline withholds every named period at once (not just one at a
// time): ConstContrib is the smoothed path with all of periods masked out,
// giving the constant term section 6's dataDecomposition/constContrib pair
// requires. Each period's Contributions entry then reintroduces only that
// one period's data on top of the shared baseline and differences against
// it, so alpha_hat(t) = ConstContrib[t] + sum_s Contributions[s][t] holds
// exactly when reintroducing the named periods one at a time has the same
// effect as reintroducing them together — true whenever the recursion's
// branch structure (which periods are diffuse, which scalar updates are
// singular) does not change between the single-period and all-periods
// reintroduction, and otherwise an approximation, same as the rest of this
// operation's documented superposition simplification. This reuses C5/C6
// verbatim (one extra pass per requested period, plus the shared baseline
// pass) instead of deriving a fifth recursion or the full per-series W
// tensor section 6 names.
//
// If the model cannot identify its state at all once every named period is
// withheld (DegenerateDiffuseInitError), that error propagates to the
// caller rather than being silently absorbed: a baseline decomposition
// without a meaningful ConstContrib is not a usable one.
func DecomposeSmoothed(p *Params, init *Init, y *mat.Dense, periods []int) (*Decomposition, error) {
	rows, n := y.Dims()

	withheld := mat.DenseCopyOf(y)
	for _, s := range periods {
		for j := 0; j < rows; j++ {
			withheld.Set(j, s, math.NaN())
		}
	}

	baseline, _, err := Smooth(p, init, withheld)
	if err != nil {
		return nil, err
	}

	out := &Decomposition{
		Periods:       periods,
		ConstContrib:  make([]*mat.VecDense, n),
		Contributions: make(map[int][]*mat.VecDense, len(periods)),
	}
	for t := 0; t < n; t++ {
		out.ConstContrib[t] = mat.VecDenseCopyOf(baseline.Alpha[t])
	}

	for _, s := range periods {
		withOnlyS := mat.DenseCopyOf(withheld)
		for j := 0; j < rows; j++ {
			withOnlyS.Set(j, s, y.At(j, s))
		}

		sm, _, err := Smooth(p, init, withOnlyS)
		if err != nil {
			return nil, err
		}

		share := make([]*mat.VecDense, n)
		for t := 0; t < n; t++ {
			diff := mat.NewVecDense(p.M, nil)
			diff.SubVec(sm.Alpha[t], baseline.Alpha[t])
			share[t] = diff
		}
		out.Contributions[s] = share
	}

	return out, nil
}
