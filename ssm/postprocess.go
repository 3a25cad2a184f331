package ssm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Postprocessed holds the recovered observation and state disturbances
// (C8): their smoothed means and variances. EpsHat carries NaN at missing
// y entries, matching the filter's missing-data convention.
type Postprocessed struct {
	EpsHat *mat.Dense      // p x n, smoothed observation disturbance E[eps_t|Y]
	VarEps []*mat.SymDense // length n, p x p, Var(eps_t|Y) = H_t - H_t Z_t N_t Z_t' H_t
	VarEta []*mat.SymDense // length n, g x g, Var(eta_t|Y) = Q_t - Q_t R_t' N_t R_t Q_t
}

// Postprocess recovers observation and state disturbances from a filter
// and smoother pass (C8), following the disturbance-smoothing identities
// of section 4.6: eps_hat is read directly off the smoothed state
// (y - Z alpha_hat - d), and both variance terms reuse the smoother's N
// sequence rather than a separate recursion.
//
// p must be the same Params passed to the Smooth call that produced filt
// and sm: if H is not diagonal, Smooth factorizes it internally and its
// results are only consistent with the factorized Z/H, not the original
// ones. Callers building filt/sm by hand from a correlated-H model should
// run Factorize themselves first and pass its output here.
func Postprocess(p *Params, filt *FilterResult, sm *SmootherResult) *Postprocessed {
	n := len(sm.N)
	out := &Postprocessed{
		EpsHat: mat.NewDense(p.P, n, nil),
		VarEps: make([]*mat.SymDense, n),
		VarEta: make([]*mat.SymDense, n),
	}

	for t := 0; t < n; t++ {
		Zt := p.Z.At(t)
		Dt := p.D.At(t)
		Ht := p.H.At(t)

		_ = Dt
		for j := 0; j < p.P; j++ {
			v := filt.V.At(j, t)
			if math.IsNaN(v) {
				out.EpsHat.Set(j, t, math.NaN())
				continue
			}
			// v = y - Z*a_pred - d, so y - Z*alpha_hat - d = v - Z*(alpha_hat - a_pred).
			Zj := mat.Row(nil, j, Zt)
			epsHat := v - dotRow(Zj, sm.Alpha[t]) + dotRow(Zj, filt.A[t])
			out.EpsHat.Set(j, t, epsHat)
		}

		var znz mat.Dense
		znz.Mul(Zt, sm.N[t])
		znz.Mul(&znz, Zt.T())

		var hznzh mat.Dense
		hznzh.Mul(Ht, &znz)
		hznzh.Mul(&hznzh, Ht)

		varEps := mat.NewSymDense(p.P, nil)
		for i := 0; i < p.P; i++ {
			for k := i; k < p.P; k++ {
				varEps.SetSym(i, k, Ht.At(i, k)-hznzh.At(i, k))
			}
		}
		out.VarEps[t] = varEps

		Qn := p.Q.At(t + 1)
		Rn := p.R.At(t + 1)
		var rnr mat.Dense
		rnr.Mul(Rn.T(), sm.N[t])
		rnr.Mul(&rnr, Rn)
		var qrnrq mat.Dense
		qrnrq.Mul(Qn, &rnr)
		qrnrq.Mul(&qrnrq, Qn)
		varEta := mat.NewSymDense(p.G, nil)
		for i := 0; i < p.G; i++ {
			for k := i; k < p.G; k++ {
				varEta.SetSym(i, k, Qn.At(i, k)-qrnrq.At(i, k))
			}
		}
		out.VarEta[t] = varEta
	}

	return out
}
