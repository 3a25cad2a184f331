package ssm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SmootherResult holds the backward pass output (C6): smoothed state means
// and shock means, plus the smoothing residuals r (and its diffuse-phase
// companion r1) and N consumed by the gradient (C7) and post-processors
// (C8).
type SmootherResult struct {
	Alpha []*mat.VecDense // length n, smoothed state mean
	Eta   []*mat.VecDense // length n, smoothed shock mean

	R  []*mat.VecDense // length n, standard-phase r (= r0 during the diffuse phase)
	Rd []*mat.VecDense // length n, diffuse-phase r1 (zero outside the diffuse phase)
	N  []*mat.Dense    // length n, smoothing residual N (= N0 during the diffuse phase)

	A0Tilde *mat.VecDense
	LogLik  float64
}

// Smooth runs the filter and then the univariate backward smoother (C6).
// Both phases share one (r, N) pair that is relabeled r0/N0 on entry to
// the exact-initial phase; a second vector r1 carries the diffuse
// residual and stays zero outside that phase, so Smooth's output
// uniformly covers both the "dt > 0" and "dt == 0" cases of the
// initial-state smoother formula in section 4.6 without a branch.
//
// The exact-initial phase's N-recursion is not fully specified in
// spec.md: it gives closed forms for r0 and r1 but not for an N0/N1/N2
// triple. This implementation carries the single N matrix through the
// diffuse phase: the Fd == 0 branch applies the standard-phase update
// with L*, and the Fd != 0 branch sets N = Ld' N Ld with no Z'Z/F term,
// which reduces to the textbook recursion whenever Fd == 0. This
// is the same documented limitation flagged in section 9's open question
// about R-gradients during the diffuse phase: gradient callers should
// verify correctness against finite differences before trusting R-blocks
// that are active during a model's diffuse periods.
func Smooth(p *Params, init *Init, y *mat.Dense) (*SmootherResult, *FilterResult, error) {
	// Smooth reads p.Z/p.Q directly below (not just filt's recorded
	// gains), so it must factorize up front rather than rely on Filter's
	// own internal factorization: otherwise a correlated H would leave
	// Smooth reading the original (untransformed) Z against gains Filter
	// computed from the diagonalized one.
	p, y, err := Factorize(p, y)
	if err != nil {
		return nil, nil, err
	}

	filt, err := Filter(p, init, y)
	if err != nil {
		return nil, nil, err
	}

	n := len(filt.K)
	m := p.M

	res := &SmootherResult{
		Alpha: make([]*mat.VecDense, n),
		Eta:   make([]*mat.VecDense, n),
		R:     make([]*mat.VecDense, n),
		Rd:    make([]*mat.VecDense, n),
		N:     make([]*mat.Dense, n),
	}

	r := mat.NewVecDense(m, nil)
	nMat := mat.NewDense(m, m, nil)
	r1 := mat.NewVecDense(m, nil)

	eye := identity(m)

	// Standard phase: Go index n-1 down to Dt.
	for t := n - 1; t >= filt.Dt; t-- {
		for j := p.P - 1; j >= 0; j-- {
			if math.IsNaN(filt.V.At(j, t)) {
				continue
			}
			Zj := mat.Row(nil, j, p.Z.At(t))
			Zvec := mat.NewVecDense(m, Zj)
			F := filt.F.At(j, t)
			Kj := filt.K[t].ColView(j)

			L := lMatrix(eye, Kj, Zvec, F)

			r = rUpdate(Zvec, filt.V.At(j, t), F, L, r)
			nMat = nUpdate(Zvec, F, L, nMat)
		}

		res.R[t] = mat.VecDenseCopyOf(r)
		res.Rd[t] = mat.NewVecDense(m, nil)
		res.N[t] = mat.DenseCopyOf(nMat)

		alpha := mat.NewVecDense(m, nil)
		alpha.MulVec(filt.P[t], r)
		alpha.AddVec(alpha, filt.A[t])
		res.Alpha[t] = alpha

		Qn := p.Q.At(t + 1)
		Rn := p.R.At(t + 1)
		eta := mat.NewVecDense(p.G, nil)
		var rtn mat.Dense
		rtn.Mul(Qn, Rn.T())
		eta.MulVec(&rtn, r)
		res.Eta[t] = eta

		Tn := p.T.At(t + 1)
		var rNext mat.VecDense
		rNext.MulVec(Tn.T(), r)
		r = &rNext
		var nNext mat.Dense
		nNext.Mul(Tn.T(), nMat)
		nNext.Mul(&nNext, Tn)
		nMat = &nNext
	}

	// Exact-initial phase: Go index Dt-1 down to 0.
	for t := filt.Dt - 1; t >= 0; t-- {
		for j := p.P - 1; j >= 0; j-- {
			if math.IsNaN(filt.V.At(j, t)) {
				continue
			}
			Zj := mat.Row(nil, j, p.Z.At(t))
			Zvec := mat.NewVecDense(m, Zj)
			F := filt.F.At(j, t)
			Fd := filt.Fd.At(j, t)
			Kj := filt.K[t].ColView(j)

			if Fd > fdZeroTol {
				Kdj := filt.Kd[t].ColView(j)
				Ld := lMatrix(eye, Kdj, Zvec, Fd)

				var l0vec mat.VecDense
				l0vec.ScaleVec(F/Fd, Kdj)
				l0vec.AddVec(&l0vec, Kj)
				var l0 mat.Dense
				l0.Mul(&l0vec, Zvec.T())
				l0.Scale(1/Fd, &l0)

				var newR1 mat.VecDense
				newR1.ScaleVec(filt.V.At(j, t)/Fd, Zvec)
				var l0tr0 mat.VecDense
				l0tr0.MulVec(l0.T(), r)
				newR1.SubVec(&newR1, &l0tr0)
				var ldtr1 mat.VecDense
				ldtr1.MulVec(Ld.T(), r1)
				newR1.AddVec(&newR1, &ldtr1)

				var newR0 mat.VecDense
				newR0.MulVec(Ld.T(), r)

				r = &newR0
				r1 = &newR1

				var nNext mat.Dense
				nNext.Mul(Ld.T(), nMat)
				nNext.Mul(&nNext, Ld)
				nMat = &nNext
			} else {
				L := lMatrix(eye, Kj, Zvec, F)
				r = rUpdate(Zvec, filt.V.At(j, t), F, L, r)
				nMat = nUpdate(Zvec, F, L, nMat)
			}
		}

		res.R[t] = mat.VecDenseCopyOf(r)
		res.Rd[t] = mat.VecDenseCopyOf(r1)
		res.N[t] = mat.DenseCopyOf(nMat)

		alpha := mat.NewVecDense(m, nil)
		var fromStar, fromDiffuse mat.VecDense
		fromStar.MulVec(filt.P[t], r)
		fromDiffuse.MulVec(filt.Pd[t], r1)
		alpha.AddVec(&fromStar, &fromDiffuse)
		alpha.AddVec(alpha, filt.A[t])
		res.Alpha[t] = alpha

		Qn := p.Q.At(t + 1)
		Rn := p.R.At(t + 1)
		eta := mat.NewVecDense(p.G, nil)
		var rtn mat.Dense
		rtn.Mul(Qn, Rn.T())
		eta.MulVec(&rtn, r)
		res.Eta[t] = eta

		Tn := p.T.At(t + 1)
		var rNext, r1Next mat.VecDense
		rNext.MulVec(Tn.T(), r)
		r1Next.MulVec(Tn.T(), r1)
		r, r1 = &rNext, &r1Next
		var nNext mat.Dense
		nNext.Mul(Tn.T(), nMat)
		nNext.Mul(&nNext, Tn)
		nMat = &nNext
	}

	a0tilde := mat.NewVecDense(m, nil)
	var fromStar, fromDiffuse mat.VecDense
	fromStar.MulVec(init.PStar0(), r)
	fromDiffuse.MulVec(init.PInf0(), r1)
	a0tilde.AddVec(&fromStar, &fromDiffuse)
	a0tilde.AddVec(a0tilde, init.Mean0)
	res.A0Tilde = a0tilde
	res.LogLik = filt.LogLik

	return res, filt, nil
}

func identity(m int) *mat.Dense {
	out := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// lMatrix computes L = I - k z^T / f for a gain column k, loading row z,
// and scalar variance f.
func lMatrix(eye *mat.Dense, k mat.Vector, z *mat.VecDense, f float64) *mat.Dense {
	var kz mat.Dense
	kz.Mul(k, z.T())
	kz.Scale(1/f, &kz)
	var L mat.Dense
	L.Sub(eye, &kz)
	return &L
}

func rUpdate(z *mat.VecDense, v, f float64, L *mat.Dense, r *mat.VecDense) *mat.VecDense {
	var term mat.VecDense
	term.ScaleVec(v/f, z)
	var lt mat.VecDense
	lt.MulVec(L.T(), r)
	var out mat.VecDense
	out.AddVec(&term, &lt)
	return &out
}

func nUpdate(z *mat.VecDense, f float64, L *mat.Dense, N *mat.Dense) *mat.Dense {
	var zz mat.Dense
	zz.Mul(z, z.T())
	zz.Scale(1/f, &zz)
	var lnl mat.Dense
	lnl.Mul(L.T(), N)
	lnl.Mul(&lnl, L)
	var out mat.Dense
	out.Add(&zz, &lnl)
	return &out
}
