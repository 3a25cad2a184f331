package ssm

import (
	"gonum.org/v1/gonum/mat"
)

// GradientJacobians bundles the caller-supplied derivatives of each
// parameter block with respect to a single scalar parameter theta
// (section 4.7, C7). Any field may be left nil when that block does not
// depend on theta; Gradient then skips its contribution. Each field has
// the same shape as the corresponding Params field's slices (one
// Jacobian per distinct slice, not per period), matching the convention
// that a parameter's Tau selects among a small number of distinct values
// rather than varying freely period by period.
type GradientJacobians struct {
	Z []*mat.Dense // p x m, one per p.Z slice
	D []*mat.VecDense
	H []*mat.Dense // p x p, need not be symmetric if theta only affects part of H

	T []*mat.Dense // m x m, one per p.T slice
	C []*mat.VecDense
	R []*mat.Dense // m x g
	Q []*mat.Dense // g x g

	A0 *mat.VecDense
	P0 *mat.Dense // m x m
}

// Gradient computes the analytic derivative of the log-likelihood with
// respect to theta (C7), given the Jacobian blocks in j. It runs its own
// filter/smoother/postprocess pass rather than accepting cached results,
// since the closed-form accumulators below need quantities (Var(eps),
// Var(eta), V = Var(alpha|Y)) that Smooth and Postprocess only compute on
// request.
//
// The accumulators follow the complete-data score identity for Gaussian
// state space models (the expectation, given the data, of the gradient
// of the complete-data log density equals the gradient of the observed
// log-likelihood; Durbin & Koopman section 7.3). Each block's
// contribution is a trace of its Jacobian against a closed-form
// per-period matrix built from smoothed residuals and their variances,
// so no recursive sensitivity propagation (d(filter state)/dtheta) is
// needed.
//
// R's gradient uses a Moore-Penrose pseudoinverse of R Q R' to generalize
// the transition score to a possibly rank-deficient state-shock
// covariance, and only carries the leading-order term: it does not
// differentiate the pseudoinverse itself with respect to R. This is
// exact when R is locally constant (the common case, a fixed 0/1
// selector) and approximate otherwise; verify against finite differences
// before trusting a model whose R is both theta-dependent and active
// during the diffuse phase.

// GradientResult holds the log-likelihood and its derivative with
// respect to the single scalar parameter theta described by j.
type GradientResult struct {
	LogLik float64
	Grad   float64
}

func Gradient(p *Params, init *Init, y *mat.Dense, j *GradientJacobians) (*GradientResult, error) {
	// Gradient reads p.H/p.Z/p.Q/... directly below, so it factorizes once
	// up front (same reasoning as Smooth) rather than let Filter and
	// Smooth each factorize their own copy out from under it. Note this
	// means H's own Jacobian (j.H) must describe the derivative of the
	// diagonalized H when the caller's H is correlated; j.H supplied
	// against the original correlated H is only correct when H is
	// already diagonal, the same caveat already documented for R above.
	p, y, err := Factorize(p, y)
	if err != nil {
		return nil, err
	}

	filt, err := Filter(p, init, y)
	if err != nil {
		return nil, err
	}
	sm, _, err := Smooth(p, init, y)
	if err != nil {
		return nil, err
	}
	post := Postprocess(p, filt, sm)

	n := len(sm.N)
	grad := 0.0

	for t := 0; t < n; t++ {
		Ht := p.H.At(t)
		Hinv := pinvRQR(identity(p.P), Ht)

		epsT := columnVec(post.EpsHat, t)
		dlH := dHScore(Hinv, epsT, post.VarEps[t])
		if hj := j.jacH(p.H, t); hj != nil {
			grad += trace(dlH, hj)
		}

		if zj := j.jacZ(p.Z, t); zj != nil {
			V := stateVariance(filt.P[t], sm.N[t])
			dlZ := dZScore(Hinv, epsT, p.Z.At(t), sm.Alpha[t], V)
			grad += trace(dlZ, zj)
		}
		if dj := j.jacD(p.D, t); dj != nil {
			var hv mat.VecDense
			hv.MulVec(Hinv, epsT)
			grad += dot(dj, &hv)
		}

		Qn := p.Q.At(t + 1)
		Qinv := pinvRQR(identity(p.G), Qn)
		dlQ := dQScore(Qinv, sm.Eta[t], post.VarEta[t])
		if qj := j.jacQ(p.Q, t+1); qj != nil {
			grad += trace(dlQ, qj)
		}

		Rn := p.R.At(t + 1)
		RQRinv := pinvRQR(Rn, Qn)

		var alphaNext *mat.VecDense
		if t+1 < n {
			alphaNext = sm.Alpha[t+1]
		} else {
			alphaNext = nil
		}
		if alphaNext != nil {
			Tn := p.T.At(t + 1)
			Cn := p.C.At(t + 1)
			resid := mat.NewVecDense(p.M, nil)
			var tAlpha mat.VecDense
			tAlpha.MulVec(Tn, sm.Alpha[t])
			resid.SubVec(alphaNext, &tAlpha)
			resid.SubVec(resid, Cn)

			var score mat.VecDense
			score.MulVec(RQRinv, resid)

			if cj := j.jacC(p.C, t+1); cj != nil {
				grad += dot(cj, &score)
			}
			if tj := j.jacT(p.T, t+1); tj != nil {
				var outer mat.Dense
				outer.Mul(&score, sm.Alpha[t].T())
				grad += trace(&outer, tj)
			}
			if rj := j.jacR(p.R, t+1); rj != nil {
				grad += rScoreTrace(RQRinv, Qn, resid, rj)
			}
		}
	}

	grad += initScore(init, sm, j)
	return &GradientResult{LogLik: filt.LogLik, Grad: grad}, nil
}

func (j *GradientJacobians) jacZ(p *MatrixParam, t int) *mat.Dense { return sliceAt(j.Z, p.Tau, t) }
func (j *GradientJacobians) jacD(p *VectorParam, t int) *mat.VecDense {
	return sliceAtVec(j.D, p.Tau, t)
}
func (j *GradientJacobians) jacH(p *CovParam, t int) *mat.Dense     { return sliceAtCov(j.H, p.Tau, t) }
func (j *GradientJacobians) jacT(p *MatrixParam, t int) *mat.Dense  { return sliceAt(j.T, p.Tau, t) }
func (j *GradientJacobians) jacC(p *VectorParam, t int) *mat.VecDense {
	return sliceAtVec(j.C, p.Tau, t)
}
func (j *GradientJacobians) jacR(p *MatrixParam, t int) *mat.Dense { return sliceAt(j.R, p.Tau, t) }
func (j *GradientJacobians) jacQ(p *CovParam, t int) *mat.Dense    { return sliceAtCov(j.Q, p.Tau, t) }

func sliceAt(slices []*mat.Dense, tau []int, t int) *mat.Dense {
	if len(slices) == 0 {
		return nil
	}
	idx := 0
	if len(tau) > 0 {
		idx = tau[t]
	}
	if idx >= len(slices) {
		return nil
	}
	return slices[idx]
}

func sliceAtVec(slices []*mat.VecDense, tau []int, t int) *mat.VecDense {
	if len(slices) == 0 {
		return nil
	}
	idx := 0
	if len(tau) > 0 {
		idx = tau[t]
	}
	if idx >= len(slices) {
		return nil
	}
	return slices[idx]
}

func sliceAtCov(slices []*mat.Dense, tau []int, t int) *mat.Dense {
	return sliceAt(slices, tau, t)
}

// dHScore computes 0.5 * (Hinv (eps eps' + VarEps) Hinv - Hinv).
func dHScore(Hinv *mat.Dense, eps *mat.VecDense, varEps *mat.SymDense) *mat.Dense {
	p, _ := Hinv.Dims()
	var ee mat.Dense
	ee.Mul(eps, eps.T())
	var sum mat.Dense
	sum.Add(&ee, varEps)
	var mid mat.Dense
	mid.Mul(Hinv, &sum)
	mid.Mul(&mid, Hinv)
	out := mat.NewDense(p, p, nil)
	out.Sub(&mid, Hinv)
	out.Scale(0.5, out)
	return out
}

// dQScore mirrors dHScore for the state-shock block.
func dQScore(Qinv *mat.Dense, eta *mat.VecDense, varEta *mat.SymDense) *mat.Dense {
	g, _ := Qinv.Dims()
	var ee mat.Dense
	ee.Mul(eta, eta.T())
	var sum mat.Dense
	sum.Add(&ee, varEta)
	var mid mat.Dense
	mid.Mul(Qinv, &sum)
	mid.Mul(&mid, Qinv)
	out := mat.NewDense(g, g, nil)
	out.Sub(&mid, Qinv)
	out.Scale(0.5, out)
	return out
}

// stateVariance computes V = P - P N P, the smoothed state variance
// (section 4.6's definition, reused here rather than a fifth recursion).
func stateVariance(P *mat.SymDense, N *mat.Dense) *mat.Dense {
	m := P.Symmetric()
	var pn mat.Dense
	pn.Mul(P, N)
	var pnp mat.Dense
	pnp.Mul(&pn, P)
	out := mat.NewDense(m, m, nil)
	out.Sub(P, &pnp)
	return out
}

// dZScore computes Hinv*(eps*alpha_hat' - Z*V).
func dZScore(Hinv *mat.Dense, eps *mat.VecDense, Z *mat.Dense, alphaHat *mat.VecDense, V *mat.Dense) *mat.Dense {
	var ea mat.Dense
	ea.Mul(eps, alphaHat.T())
	var zv mat.Dense
	zv.Mul(Z, V)
	var diff mat.Dense
	diff.Sub(&ea, &zv)
	var hea mat.Dense
	hea.Mul(Hinv, &diff)
	return &hea
}

func pinvRQR(R *mat.Dense, Q mat.Matrix) *mat.Dense {
	m, _ := R.Dims()
	var rq mat.Dense
	rq.Mul(R, Q)
	var rqr mat.Dense
	rqr.Mul(&rq, R.T())

	var svd mat.SVD
	if !svd.Factorize(&rqr, mat.SVDFull) {
		return mat.NewDense(m, m, nil)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	vals := svd.Values(nil)

	sInv := mat.NewDense(m, m, nil)
	for i, s := range vals {
		if s > 1e-12 {
			sInv.Set(i, i, 1/s)
		}
	}
	var vs mat.Dense
	vs.Mul(&v, sInv)
	var out mat.Dense
	out.Mul(&vs, u.T())
	return &out
}

func rScoreTrace(RQRinv *mat.Dense, Q mat.Matrix, resid *mat.VecDense, jacR *mat.Dense) float64 {
	// Leading-order term only: treat (R Q R')^+ as locally constant in R
	// (exact when R does not depend on theta at this slice, approximate
	// otherwise; see the Gradient doc comment).
	var score mat.VecDense
	score.MulVec(RQRinv, resid)
	var qScore mat.VecDense
	qScore.MulVec(Q, score)
	var outer mat.Dense
	outer.Mul(&score, qScore.T())
	return trace(&outer, jacR)
}

// initScore contributes the a0 block of the score: j.A0 against the
// smoothing residual r carried back past the first period, recovered from
// A0Tilde - a0 = PStar0 r + PInf0 r1 through PStar0's pseudoinverse, which
// keeps the stationary block of r and drops the diffuse block (along which
// the diffuse likelihood does not depend on a0). P0's block is not
// implemented: the diffuse prior carries no finite density over its
// non-stationary directions, so the complete-data score with respect to
// the stationary block's covariance needs a dedicated derivation this
// package does not yet provide. Models differentiating P0 should expect
// Gradient to omit that contribution.
func initScore(init *Init, sm *SmootherResult, j *GradientJacobians) float64 {
	score := 0.0
	if j.A0 != nil {
		var diff mat.VecDense
		diff.SubVec(sm.A0Tilde, init.Mean0)
		var rInit mat.VecDense
		rInit.MulVec(pinvRQR(identity(diff.Len()), init.PStar0()), &diff)
		score += dot(j.A0, &rInit)
	}
	return score
}

func columnVec(d *mat.Dense, col int) *mat.VecDense {
	r, _ := d.Dims()
	out := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		out.SetVec(i, d.At(i, col))
	}
	return out
}

func dot(a, b *mat.VecDense) float64 {
	n := a.Len()
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a.AtVec(i) * b.AtVec(i)
	}
	return sum
}

func trace(a, b mat.Matrix) float64 {
	r, c := a.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for k := 0; k < c; k++ {
			sum += a.At(i, k) * b.At(i, k)
		}
	}
	return sum
}
