package ssm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	pdZeroTol = 1e-12 // Pd treated as the zero matrix below this max-abs entry
	fdZeroTol = 1e-12 // F_d treated as zero (diffuse-zero branch) below this
)

// FilterResult holds everything the filter (C5) retains for the smoother
// and gradient passes: the predicted state means and covariances at every
// period plus one step beyond the sample, and the per-series innovations,
// variances, and gain vectors recorded while processing each period.
type FilterResult struct {
	A  []*mat.VecDense // length n+1, A[i] = predicted mean entering period i
	P  []*mat.SymDense // length n+1, non-diffuse covariance entering period i
	Pd []*mat.SymDense // length n+1, diffuse covariance entering period i

	V  *mat.Dense // p x n, innovations
	F  *mat.Dense // p x n, non-diffuse innovation variance
	Fd *mat.Dense // p x n, diffuse innovation variance (only meaningful for i < Dt)

	K  []*mat.Dense // length n, each m x p, non-diffuse gain
	Kd []*mat.Dense // length n, each m x p, diffuse gain (only meaningful for i < Dt)

	Dt     int // count of periods processed under the diffuse phase
	LogLik float64
}

// Filter runs the exact-diffuse univariate filter (C5) over y given params
// and the initial condition init. It validates shapes and finiteness
// before touching the recursion, and it processes observed series in
// ascending index order within each period (section 4.5's ordering
// guarantee, required so the smoother's reverse traversal lines up with
// the recorded gains).
//
// The per-series update below reads only Ht.At(j, j): it is exact solely
// when H is diagonal (section 4.4). Filter therefore runs C4's Factorize
// first whenever H is not already diagonal at every distinct slice, so a
// caller supplying a correlated observation covariance still gets the
// correct log-likelihood and state path instead of a silently wrong one.
func Filter(p *Params, init *Init, y *mat.Dense) (*FilterResult, error) {
	n, err := Validate(p, y)
	if err != nil {
		return nil, err
	}
	if err := CheckFinite(p); err != nil {
		return nil, err
	}

	p, y, err = Factorize(p, y)
	if err != nil {
		return nil, err
	}

	m := p.M
	res := &FilterResult{
		A:  make([]*mat.VecDense, n+1),
		P:  make([]*mat.SymDense, n+1),
		Pd: make([]*mat.SymDense, n+1),
		V:  mat.NewDense(p.P, n, nil),
		F:  mat.NewDense(p.P, n, nil),
		Fd: mat.NewDense(p.P, n, nil),
		K:  make([]*mat.Dense, n),
		Kd: make([]*mat.Dense, n),
	}
	fillNaN(res.V)
	fillNaN(res.F)
	fillNaN(res.Fd)

	a := mat.NewVecDense(m, nil)
	a.MulVec(p.T.At(0), init.Mean0)
	a.AddVec(a, p.C.At(0))

	Pstar := initialPStar(p, init)
	Pd := initialPInf(p, init)

	res.A[0] = mat.VecDenseCopyOf(a)
	res.P[0] = symFromDense(Pstar)
	res.Pd[0] = symFromDense(Pd)

	logLikSum := 0.0
	finiteObs := 0
	dt := n // if the diffuse block never collapses, this stays n and triggers DegenerateDiffuseInit
	diffuseActive := true

	for t := 0; t < n; t++ {
		if diffuseActive && isZero(Pd, pdZeroTol) {
			diffuseActive = false
			dt = t
		}

		Kt := mat.NewDense(m, p.P, nil)
		Kdt := mat.NewDense(m, p.P, nil)
		Ht := p.H.At(t)
		Zt := p.Z.At(t)
		Dt := p.D.At(t)

		for j := 0; j < p.P; j++ {
			yj := y.At(j, t)
			if math.IsNaN(yj) {
				continue
			}

			Zj := mat.Row(nil, j, Zt)
			v := yj - dotRow(Zj, a) - Dt.AtVec(j)
			res.V.Set(j, t, v)

			Fstar := quadRow(Zj, Pstar) + Ht.At(j, j)
			Kstar := mat.NewVecDense(m, nil)
			Kstar.MulVec(Pstar, mat.NewVecDense(m, Zj))
			res.F.Set(j, t, Fstar)
			setCol(Kt, j, Kstar)

			if diffuseActive {
				Fd := quadRow(Zj, Pd)
				Kdvec := mat.NewVecDense(m, nil)
				Kdvec.MulVec(Pd, mat.NewVecDense(m, Zj))
				res.Fd.Set(j, t, Fd)
				setCol(Kdt, j, Kdvec)

				if Fd > fdZeroTol {
					// diffuse-nonsingular branch
					axpy(a, Kdvec, v/Fd)

					var kdkd, kskd, kdks mat.Dense
					kdkd.Mul(Kdvec, Kdvec.T())
					kdkd.Scale(Fstar/(Fd*Fd), &kdkd)
					kskd.Mul(Kstar, Kdvec.T())
					kdks.Mul(Kdvec, Kstar.T())
					var cross mat.Dense
					cross.Add(&kskd, &kdks)
					cross.Scale(1/Fd, &cross)

					var newPstar mat.Dense
					newPstar.Sub(Pstar, &cross)
					newPstar.Add(&newPstar, &kdkd)
					Pstar = &newPstar

					var kdkdRaw mat.Dense
					kdkdRaw.Mul(Kdvec, Kdvec.T())
					kdkdRaw.Scale(1/Fd, &kdkdRaw)
					var newPd mat.Dense
					newPd.Sub(Pd, &kdkdRaw)
					Pd = &newPd

					logLikSum += math.Log(Fd)
					finiteObs++
				} else {
					axpy(a, Kstar, v/Fstar)
					var kk mat.Dense
					kk.Mul(Kstar, Kstar.T())
					kk.Scale(1/Fstar, &kk)
					var newPstar mat.Dense
					newPstar.Sub(Pstar, &kk)
					Pstar = &newPstar

					logLikSum += math.Log(Fstar) + v*v/Fstar
					finiteObs++
				}
			} else {
				axpy(a, Kstar, v/Fstar)
				var kk mat.Dense
				kk.Mul(Kstar, Kstar.T())
				kk.Scale(1/Fstar, &kk)
				var newPstar mat.Dense
				newPstar.Sub(Pstar, &kk)
				Pstar = &newPstar

				logLikSum += math.Log(Fstar) + v*v/Fstar
				finiteObs++
			}
		}

		res.K[t] = Kt
		if diffuseActive {
			res.Kd[t] = Kdt
		}

		// propagate to period t+1 using the transition governing it
		Tn := p.T.At(t + 1)
		Cn := p.C.At(t + 1)
		Rn := p.R.At(t + 1)
		Qn := p.Q.At(t + 1)

		aNext := mat.NewVecDense(m, nil)
		aNext.MulVec(Tn, a)
		aNext.AddVec(aNext, Cn)
		a = aNext

		var tps mat.Dense
		tps.Mul(Tn, Pstar)
		tps.Mul(&tps, Tn.T())
		var rqr mat.Dense
		var rq mat.Dense
		rq.Mul(Rn, Qn)
		rqr.Mul(&rq, Rn.T())
		var pstarNext mat.Dense
		pstarNext.Add(&tps, &rqr)
		Pstar = &pstarNext

		var tpd mat.Dense
		tpd.Mul(Tn, Pd)
		tpd.Mul(&tpd, Tn.T())
		Pd = mat.DenseCopyOf(&tpd)

		res.A[t+1] = mat.VecDenseCopyOf(a)
		res.P[t+1] = symFromDense(Pstar)
		res.Pd[t+1] = symFromDense(Pd)
	}

	if dt == n && !isZero(Pd, pdZeroTol) {
		return nil, &DegenerateDiffuseInitError{Periods: n}
	}
	res.Dt = dt

	res.LogLik = -0.5*float64(finiteObs)*math.Log(2*math.Pi) - 0.5*logLikSum
	return res, nil
}

func initialPStar(p *Params, init *Init) *mat.Dense {
	m := p.M
	T0 := p.T.At(0)
	var tps mat.Dense
	tps.Mul(T0, init.PStar0())
	tps.Mul(&tps, T0.T())

	var rq, rqr mat.Dense
	rq.Mul(p.R.At(0), p.Q.At(0))
	rqr.Mul(&rq, p.R.At(0).T())

	out := mat.NewDense(m, m, nil)
	out.Add(&tps, &rqr)
	return out
}

func initialPInf(p *Params, init *Init) *mat.Dense {
	T0 := p.T.At(0)
	var out mat.Dense
	out.Mul(T0, init.PInf0())
	out.Mul(&out, T0.T())
	return mat.DenseCopyOf(&out)
}

func fillNaN(d *mat.Dense) {
	r, c := d.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.Set(i, j, math.NaN())
		}
	}
}

func isZero(d *mat.Dense, tol float64) bool {
	r, c := d.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(d.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

func symFromDense(d *mat.Dense) *mat.SymDense {
	n, _ := d.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, 0.5*(d.At(i, j)+d.At(j, i)))
		}
	}
	return out
}

func dotRow(row []float64, v *mat.VecDense) float64 {
	sum := 0.0
	for i, x := range row {
		sum += x * v.AtVec(i)
	}
	return sum
}

// quadRow computes row * m * row^T for a 1 x k row and k x k matrix m.
func quadRow(row []float64, m *mat.Dense) float64 {
	k := len(row)
	sum := 0.0
	for i := 0; i < k; i++ {
		acc := 0.0
		for j := 0; j < k; j++ {
			acc += m.At(i, j) * row[j]
		}
		sum += row[i] * acc
	}
	return sum
}

func setCol(d *mat.Dense, col int, v *mat.VecDense) {
	r, _ := d.Dims()
	for i := 0; i < r; i++ {
		d.Set(i, col, v.AtVec(i))
	}
}

func axpy(a *mat.VecDense, k *mat.VecDense, scale float64) {
	n := a.Len()
	for i := 0; i < n; i++ {
		a.SetVec(i, a.AtVec(i)+scale*k.AtVec(i))
	}
}
