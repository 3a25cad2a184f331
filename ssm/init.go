package ssm

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

const (
	eigenLoadingTol    = 1e-8
	stationaryRadiusTol = 1e-10
	lyapunovDirectMax   = 40 // s above which the dense Kronecker solve yields an s^2 x s^2 system too large to build directly
	lyapunovMaxIters    = 100
	lyapunovTol         = 1e-14
)

// InitOverride lets a caller supply a0 and/or P0 explicitly, skipping the
// corresponding default computation (section 4.3, point 4). A P0 entry of
// +Inf on the diagonal marks that state as diffuse.
type InitOverride struct {
	Mean0 *mat.VecDense
	P0    *mat.Dense
}

// ComputeInit implements C3: it partitions the state into stationary and
// diffuse blocks by eigendecomposing the initial transition slice, then
// fills in a0 and Q0 by their closed-form defaults unless the caller
// overrides them.
func ComputeInit(p *Params, override *InitOverride) (*Init, error) {
	m := p.M
	T0 := p.T.At(0)
	c0 := p.C.At(0)

	var stationaryIdx, diffuseIdx []int
	var err error

	if override != nil && override.P0 != nil && hasInfiniteDiagonal(override.P0) {
		stationaryIdx, diffuseIdx = partitionFromP0(override.P0)
	} else {
		stationaryIdx, diffuseIdx, err = partitionStates(T0, eigenLoadingTol)
		if err != nil {
			return nil, err
		}
	}

	r0 := selectorMatrix(m, stationaryIdx)
	a0Sel := selectorMatrix(m, diffuseIdx)
	s := len(stationaryIdx)

	if s > 0 {
		Ts := submatrix(T0, stationaryIdx, stationaryIdx)
		if radius := spectralRadius(Ts); radius >= 1-stationaryRadiusTol {
			return nil, &NonStationarySectionError{SpectralRadius: radius}
		}
	}

	init := &Init{
		Stationary:    r0,
		NonStationary: a0Sel,
	}

	// a0
	if override != nil && override.Mean0 != nil {
		init.Mean0 = override.Mean0
	} else {
		init.Mean0 = defaultMean0(m, T0, c0, stationaryIdx)
	}

	// Q0
	if override != nil && override.P0 != nil {
		init.Q0 = q0FromP0(override.P0, stationaryIdx)
	} else {
		Ts := submatrix(T0, stationaryIdx, stationaryIdx)
		Rs := submatrixRows(p.R.At(0), stationaryIdx)
		Q := p.Q.At(0)
		var sigma mat.Dense
		var rq mat.Dense
		rq.Mul(Rs, Q)
		sigma.Mul(&rq, Rs.T())

		q0, err := solveLyapunov(Ts, &sigma)
		if err != nil {
			return nil, err
		}
		init.Q0 = q0
	}

	return init, nil
}

// partitionStates eigendecomposes T0 and marks state k nonstationary if its
// row in the eigenvector matrix has nonzero loading on any eigenvalue with
// modulus >= 1 (section 4.3, point 1).
func partitionStates(T0 *mat.Dense, tol float64) (stationary, diffuse []int, err error) {
	m, _ := T0.Dims()

	var eig mat.Eigen
	if !eig.Factorize(T0, mat.EigenRight) {
		return nil, nil, &NonStationarySectionError{SpectralRadius: math.Inf(1)}
	}
	values := eig.Values(nil)

	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	for k := 0; k < m; k++ {
		nonstat := false
		for j := 0; j < m; j++ {
			if cmplx.Abs(values[j]) >= 1-tol {
				if cmplx.Abs(vectors.At(k, j)) > tol {
					nonstat = true
					break
				}
			}
		}
		if nonstat {
			diffuse = append(diffuse, k)
		} else {
			stationary = append(stationary, k)
		}
	}
	return stationary, diffuse, nil
}

func hasInfiniteDiagonal(p0 *mat.Dense) bool {
	r, _ := p0.Dims()
	for i := 0; i < r; i++ {
		if math.IsInf(p0.At(i, i), 1) {
			return true
		}
	}
	return false
}

func partitionFromP0(p0 *mat.Dense) (stationary, diffuse []int) {
	r, _ := p0.Dims()
	for i := 0; i < r; i++ {
		if math.IsInf(p0.At(i, i), 1) {
			diffuse = append(diffuse, i)
		} else {
			stationary = append(stationary, i)
		}
	}
	return stationary, diffuse
}

func q0FromP0(p0 *mat.Dense, stationaryIdx []int) *mat.SymDense {
	s := len(stationaryIdx)
	out := mat.NewSymDense(s, nil)
	for i, si := range stationaryIdx {
		for j, sj := range stationaryIdx {
			if j < i {
				continue
			}
			out.SetSym(i, j, p0.At(si, sj))
		}
	}
	return out
}

// selectorMatrix builds an m x len(idx) matrix whose columns are the
// standard-basis vectors named by idx, in order.
func selectorMatrix(m int, idx []int) *mat.Dense {
	out := mat.NewDense(m, len(idx), nil)
	for col, row := range idx {
		out.Set(row, col, 1)
	}
	return out
}

func submatrix(a *mat.Dense, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			out.Set(i, j, a.At(r, c))
		}
	}
	return out
}

func submatrixRows(a *mat.Dense, rows []int) *mat.Dense {
	_, cols := a.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		for c := 0; c < cols; c++ {
			out.Set(i, c, a.At(r, c))
		}
	}
	return out
}

func spectralRadius(a *mat.Dense) float64 {
	r, _ := a.Dims()
	if r == 0 {
		return 0
	}
	var eig mat.Eigen
	if !eig.Factorize(a, mat.EigenNone) {
		return math.Inf(1)
	}
	values := eig.Values(nil)
	radius := 0.0
	for _, v := range values {
		if m := cmplx.Abs(v); m > radius {
			radius = m
		}
	}
	return radius
}

// defaultMean0 solves (I - T_s) a0_s = c_s on the stationary block and
// zeroes the diffuse block (section 4.3, point 2).
func defaultMean0(m int, T0 *mat.Dense, c0 *mat.VecDense, stationaryIdx []int) *mat.VecDense {
	out := mat.NewVecDense(m, nil)
	s := len(stationaryIdx)
	if s == 0 {
		return out
	}

	Ts := submatrix(T0, stationaryIdx, stationaryIdx)
	eye := mat.NewDense(s, s, nil)
	for i := 0; i < s; i++ {
		eye.Set(i, i, 1)
	}
	var lhs mat.Dense
	lhs.Sub(eye, Ts)

	rhs := mat.NewVecDense(s, nil)
	for i, idx := range stationaryIdx {
		rhs.SetVec(i, c0.AtVec(idx))
	}

	var sol mat.VecDense
	if err := sol.SolveVec(&lhs, rhs); err != nil {
		// Singular (I - T_s): fall back to zero mean on the stationary
		// block rather than failing ComputeInit over a secondary default.
		return out
	}
	for i, idx := range stationaryIdx {
		out.SetVec(idx, sol.AtVec(i))
	}
	return out
}

// solveLyapunov solves Q0 - Ts Q0 Ts^T = Sigma for Q0 (section 4.3, point
// 3). Below lyapunovDirectMax it solves the vectorized Kronecker system
// directly; above that threshold it uses the doubling iteration, which
// never forms the s^2 x s^2 Kronecker product.
func solveLyapunov(Ts, Sigma *mat.Dense) (*mat.SymDense, error) {
	s, _ := Ts.Dims()
	if s == 0 {
		return mat.NewSymDense(0, nil), nil
	}

	var q0 *mat.Dense
	var err error
	if s <= lyapunovDirectMax {
		q0, err = solveLyapunovDirect(Ts, Sigma)
	} else {
		q0, err = solveLyapunovDoubling(Ts, Sigma)
	}
	if err != nil {
		return nil, err
	}

	out := mat.NewSymDense(s, nil)
	for i := 0; i < s; i++ {
		for j := i; j < s; j++ {
			out.SetSym(i, j, 0.5*(q0.At(i, j)+q0.At(j, i)))
		}
	}
	return out, nil
}

func solveLyapunovDirect(Ts, Sigma *mat.Dense) (*mat.Dense, error) {
	s, _ := Ts.Dims()
	n2 := s * s

	var kron mat.Dense
	kron.Kronecker(Ts, Ts)

	lhs := mat.NewDense(n2, n2, nil)
	for i := 0; i < n2; i++ {
		for j := 0; j < n2; j++ {
			v := -kron.At(i, j)
			if i == j {
				v += 1
			}
			lhs.Set(i, j, v)
		}
	}

	rhs := mat.NewVecDense(n2, nil)
	for col := 0; col < s; col++ {
		for row := 0; row < s; row++ {
			rhs.SetVec(col*s+row, Sigma.At(row, col))
		}
	}

	var sol mat.VecDense
	if err := sol.SolveVec(lhs, rhs); err != nil {
		q0, ferr := solveLyapunovDoubling(Ts, Sigma)
		if ferr != nil {
			return nil, &LyapunovFailureError{Cause: err}
		}
		return q0, nil
	}

	q0 := mat.NewDense(s, s, nil)
	for col := 0; col < s; col++ {
		for row := 0; row < s; row++ {
			q0.Set(row, col, sol.AtVec(col*s+row))
		}
	}
	return q0, nil
}

// solveLyapunovDoubling is the Smith doubling iteration for the discrete
// Lyapunov equation X = A X A^T + Sigma:
//
//	X_0 = Sigma, A_0 = A
//	X_{k+1} = X_k + A_k X_k A_k^T
//	A_{k+1} = A_k A_k
//
// X_k converges to sum_i A^i Sigma (A^T)^i, the fixed point, quadratically
// in the number of iterations.
func solveLyapunovDoubling(A, Sigma *mat.Dense) (*mat.Dense, error) {
	s, _ := A.Dims()
	Ak := mat.DenseCopyOf(A)
	Xk := mat.DenseCopyOf(Sigma)

	for iter := 0; iter < lyapunovMaxIters; iter++ {
		var term mat.Dense
		term.Mul(Ak, Xk)
		term.Mul(&term, Ak.T())

		var next mat.Dense
		next.Add(Xk, &term)

		delta := 0.0
		for i := 0; i < s; i++ {
			for j := 0; j < s; j++ {
				d := math.Abs(next.At(i, j) - Xk.At(i, j))
				if d > delta {
					delta = d
				}
			}
		}
		Xk = &next

		if delta < lyapunovTol {
			return Xk, nil
		}

		var nextA mat.Dense
		nextA.Mul(Ak, Ak)
		Ak = &nextA
	}
	return nil, &LyapunovFailureError{Cause: errConvergence}
}

var errConvergence = &convergenceError{}

type convergenceError struct{}

func (e *convergenceError) Error() string {
	return "doubling iteration did not converge"
}
