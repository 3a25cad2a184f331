package ssm

import (
	"gonum.org/v1/gonum/mat"
)

// MatrixParam is a possibly time-varying matrix-valued parameter (Z, T, R).
// Slices holds one *mat.Dense per distinct value the parameter takes; Tau
// maps an observation index to the slice governing it. A time-invariant
// parameter carries a single slice and a nil Tau, so At is O(1) in both
// cases.
//
// Index convention: for observation-block parameters (Z, d, H), Tau has
// length n and Tau[i] governs the measurement at period i (0-based, i in
// [0,n)). For transition-block parameters (T, c, R, Q), Tau has length
// n+1 and Tau[i] governs the transition that produces the state at period
// i, i.e. the transition from period i-1 to period i; Tau[0] governs the
// initial transition from a0 (spec.md's "the initial transition uses
// slice 1"), and Tau[n] governs the one extra one-step-ahead prediction
// beyond the sample. This is spec.md section 3's tau_X convention with
// 1-based spec time t translated to 0-based Go index i = t-1, and it
// resolves the forward-vs-backward tau_R ambiguity the design notes flag:
// every consumer in this package reads Tau[i] to produce quantity i, and
// Tau[i+1] to advance from period i to period i+1 — never the reverse.
type MatrixParam struct {
	Slices []*mat.Dense
	Tau    []int
}

// NewConstMatrix builds a time-invariant matrix parameter from a single slice.
func NewConstMatrix(m *mat.Dense) *MatrixParam {
	return &MatrixParam{Slices: []*mat.Dense{m}}
}

// NewTimeVaryingMatrix builds a time-varying matrix parameter with the slice
// selector tau described above.
func NewTimeVaryingMatrix(slices []*mat.Dense, tau []int) *MatrixParam {
	return &MatrixParam{Slices: slices, Tau: tau}
}

// At returns the slice governing index i.
func (p *MatrixParam) At(i int) *mat.Dense {
	if p == nil {
		return nil
	}
	if len(p.Tau) == 0 {
		return p.Slices[0]
	}
	return p.Slices[p.Tau[i]]
}

// Dims returns the shape shared by every slice of p.
func (p *MatrixParam) Dims() (r, c int) {
	return p.Slices[0].Dims()
}

// VectorParam is a possibly time-varying vector-valued parameter (d, c).
type VectorParam struct {
	Slices []*mat.VecDense
	Tau    []int
}

// NewConstVector builds a time-invariant vector parameter.
func NewConstVector(v *mat.VecDense) *VectorParam {
	return &VectorParam{Slices: []*mat.VecDense{v}}
}

// NewTimeVaryingVector builds a time-varying vector parameter.
func NewTimeVaryingVector(slices []*mat.VecDense, tau []int) *VectorParam {
	return &VectorParam{Slices: slices, Tau: tau}
}

// At returns the slice governing index i.
func (p *VectorParam) At(i int) *mat.VecDense {
	if p == nil {
		return nil
	}
	if len(p.Tau) == 0 {
		return p.Slices[0]
	}
	return p.Slices[p.Tau[i]]
}

// Len returns the length shared by every slice of p.
func (p *VectorParam) Len() int {
	return p.Slices[0].Len()
}

// CovParam is a possibly time-varying symmetric PSD covariance parameter
// (H, Q).
type CovParam struct {
	Slices []*mat.SymDense
	Tau    []int
}

// NewConstCov builds a time-invariant covariance parameter.
func NewConstCov(m *mat.SymDense) *CovParam {
	return &CovParam{Slices: []*mat.SymDense{m}}
}

// NewTimeVaryingCov builds a time-varying covariance parameter.
func NewTimeVaryingCov(slices []*mat.SymDense, tau []int) *CovParam {
	return &CovParam{Slices: slices, Tau: tau}
}

// At returns the slice governing index i.
func (p *CovParam) At(i int) *mat.SymDense {
	if p == nil {
		return nil
	}
	if len(p.Tau) == 0 {
		return p.Slices[0]
	}
	return p.Slices[p.Tau[i]]
}

// Dim returns the dimension shared by every slice of p.
func (p *CovParam) Dim() int {
	return p.Slices[0].Symmetric()
}

// Params bundles every parameter tensor of the model (section 3's data
// model, C1). P is the number of observed series, M the state dimension,
// G the state-shock dimension; they are fixed once for the lifetime of a
// Params value and every slice of every tensor must agree with them
// (Validate enforces this).
type Params struct {
	Z *MatrixParam // p x m, measurement loading
	D *VectorParam // p, measurement intercept
	H *CovParam    // p x p, observation noise covariance

	T *MatrixParam // m x m, transition
	C *VectorParam // m, transition intercept
	R *MatrixParam // m x g, state-shock selector
	Q *CovParam    // g x g, state-shock covariance

	P, M, G int
}

// Init describes the initial state distribution (section 3's initial
// condition entities): a mean a0, and a partition of the state into a
// stationary block (selector Stationary, covariance Q0) and a diffuse
// block (selector NonStationary, infinite prior variance).
type Init struct {
	Mean0         *mat.VecDense // a0, length m
	Stationary    *mat.Dense    // R0, m x s
	NonStationary *mat.Dense    // A0, m x (m-s)
	Q0            *mat.SymDense // s x s, covariance on the stationary block
}

// PStar0 returns P* = R0 Q0 R0^T, the non-diffuse part of the initial
// covariance.
func (i *Init) PStar0() *mat.Dense {
	m, _ := i.Stationary.Dims()
	var rq mat.Dense
	rq.Mul(i.Stationary, i.Q0)
	var out mat.Dense
	out.Mul(&rq, i.Stationary.T())
	if r, c := out.Dims(); r != m || c != m {
		panic("ssm: PStar0 dimension mismatch")
	}
	return &out
}

// PInf0 returns P-infinity = A0 A0^T, the diffuse part of the initial
// covariance.
func (i *Init) PInf0() *mat.Dense {
	var out mat.Dense
	out.Mul(i.NonStationary, i.NonStationary.T())
	return &out
}
