package ssm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Factorize implements C4: it reduces a correlated-observation system to
// one with diagonal H by an LDL transform of the observed block of H at
// each period, applying the same transform to the corresponding rows of
// y, Z, and d. If H is already diagonal at every original slice, it is a
// documented no-op (section 4.4, final paragraph) and returns p, y
// unchanged.
//
// Filter, Smooth, and Gradient all call Factorize at their own entry
// point (section 2's data-flow order, C4 before C5): the per-series
// scalar update in Filter only reads H's diagonal, which is exact only
// once this transform has run, so a caller supplying a correlated H must
// never reach the recursion without it.
//
// The LDL factor itself is cached per distinct (tau_H(t), missingness
// pattern) combination, since computing it (a Cholesky factorization) is
// the expensive step; the transformed Z'/d'/H' values are, for
// simplicity, stored one slice per period rather than deduplicated across
// periods that share a pattern but differ in their active Z/d slice. This
// trades a constant-factor increase in scratch size for never needing to
// reason about whether two periods sharing an H pattern also share a Z/d
// slice.
func Factorize(p *Params, y *mat.Dense) (*Params, *mat.Dense, error) {
	if allDiagonal(p.H) {
		return p, y, nil
	}

	n := len(p.Z.Tau)
	if n == 0 {
		_, n = y.Dims()
	}

	type ldlKey struct {
		tauH int
		mask string
	}
	cache := map[ldlKey]*ldlFactor{}

	newZ := make([]*mat.Dense, n)
	newD := make([]*mat.VecDense, n)
	newH := make([]*mat.SymDense, n)
	newY := mat.DenseCopyOf(y)

	for t := 0; t < n; t++ {
		tauH := 0
		if len(p.H.Tau) > 0 {
			tauH = p.H.Tau[t]
		}
		obs, mask := observedIndices(y, t)

		key := ldlKey{tauH: tauH, mask: mask}
		factor, ok := cache[key]
		if !ok {
			Hsub := submatrixSym(p.H.Slices[tauH], obs)
			f, err := computeLDL(Hsub)
			if err != nil {
				return nil, nil, &NonPSDObservationCovError{Time: t}
			}
			factor = f
			cache[key] = factor
		}

		Zt := p.Z.At(t)
		Dt := p.D.At(t)
		Ht := p.H.At(t)

		ZtObs := submatrixRows(Zt, obs)
		DtObs := subvector(Dt, obs)
		YtObs := columnSubvector(y, t, obs)

		var ZtNew mat.Dense
		ZtNew.Mul(factor.CInv, ZtObs)
		var DtNew mat.VecDense
		DtNew.MulVec(factor.CInv, DtObs)
		var YtNew mat.VecDense
		YtNew.MulVec(factor.CInv, YtObs)

		zFull := mat.DenseCopyOf(Zt)
		dFull := mat.VecDenseCopyOf(Dt)
		hFull := mat.NewSymDense(p.P, nil)
		for i := 0; i < p.P; i++ {
			for j := i; j < p.P; j++ {
				hFull.SetSym(i, j, Ht.At(i, j))
			}
		}
		for i, row := range obs {
			zFull.SetRow(row, mat.Row(nil, i, &ZtNew))
			dFull.SetVec(row, DtNew.AtVec(i))
			newY.Set(row, t, YtNew.AtVec(i))
		}
		// The LDL whitening decorrelates every pair of observed rows, not
		// just their diagonal: zero the observed block's off-diagonal
		// entries before writing the new diagonal, or a row pair that was
		// correlated in the original H would silently stay correlated here.
		for a, rowA := range obs {
			for _, rowB := range obs {
				if rowA >= rowB {
					continue
				}
				hFull.SetSym(rowA, rowB, 0)
			}
			hFull.SetSym(rowA, rowA, factor.D[a])
		}

		newZ[t] = zFull
		newD[t] = dFull
		newH[t] = hFull
	}

	tau := identityTau(n)
	out := &Params{
		Z: NewTimeVaryingMatrix(newZ, tau),
		D: NewTimeVaryingVector(newD, tau),
		H: NewTimeVaryingCov(newH, tau),
		T: p.T,
		C: p.C,
		R: p.R,
		Q: p.Q,
		P: p.P,
		M: p.M,
		G: p.G,
	}
	return out, newY, nil
}

func identityTau(n int) []int {
	tau := make([]int, n)
	for i := range tau {
		tau[i] = i
	}
	return tau
}

type ldlFactor struct {
	CInv *mat.Dense
	D    []float64
}

// computeLDL factorizes an observed-block covariance h = L D L^T via
// Cholesky (h = Lchol Lchol^T) and rescales Lchol to a unit-lower-
// triangular L, returning L's inverse (so callers transform by C^-1
// directly) and the diagonal D.
func computeLDL(h *mat.SymDense) (*ldlFactor, error) {
	n := h.Symmetric()
	if n == 0 {
		return &ldlFactor{CInv: mat.NewDense(0, 0, nil), D: nil}, nil
	}

	var chol mat.Cholesky
	if !chol.Factorize(h) {
		return nil, errNonPSD
	}
	var lchol mat.TriDense
	chol.LTo(&lchol)

	d := make([]float64, n)
	L := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		lii := lchol.At(i, i)
		if lii <= 0 {
			return nil, errNonPSD
		}
		d[i] = lii * lii
		for j := 0; j <= i; j++ {
			L.Set(i, j, lchol.At(i, j)/lii)
		}
	}

	var lInv mat.Dense
	if err := lInv.Inverse(L); err != nil {
		return nil, err
	}
	return &ldlFactor{CInv: &lInv, D: d}, nil
}

var errNonPSD = &NonPSDObservationCovError{}

func allDiagonal(h *CovParam) bool {
	for _, s := range h.Slices {
		if !isDiagonal(s) {
			return false
		}
	}
	return true
}

func isDiagonal(s *mat.SymDense) bool {
	n := s.Symmetric()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if s.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

// observedIndices returns the row indices of y(:,t) that are not missing
// (NaN) and a string encoding the missingness mask, for use as a cache key.
func observedIndices(y *mat.Dense, t int) (obs []int, mask string) {
	p, _ := y.Dims()
	b := make([]byte, p)
	for j := 0; j < p; j++ {
		if math.IsNaN(y.At(j, t)) {
			b[j] = '0'
		} else {
			b[j] = '1'
			obs = append(obs, j)
		}
	}
	return obs, string(b)
}

func submatrixSym(s *mat.SymDense, idx []int) *mat.SymDense {
	out := mat.NewSymDense(len(idx), nil)
	for i, ri := range idx {
		for j, rj := range idx {
			if j < i {
				continue
			}
			out.SetSym(i, j, s.At(ri, rj))
		}
	}
	return out
}

func subvector(v *mat.VecDense, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for i, ri := range idx {
		out.SetVec(i, v.AtVec(ri))
	}
	return out
}

func columnSubvector(a *mat.Dense, col int, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for i, ri := range idx {
		out.SetVec(i, a.At(ri, col))
	}
	return out
}
