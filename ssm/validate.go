package ssm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Validate enforces the dimensional consistency required by section 3's
// invariants 1-3 and section 4.2 (C2). It returns the number of time
// periods n, inferred from y's column count, and does not inspect any
// numerical value (NaN is a legitimate missing-data marker, not a shape
// error; see CheckFinite for the numeric check run at filter entry).
func Validate(p *Params, y *mat.Dense) (n int, err error) {
	if p == nil {
		return 0, fmt.Errorf("ssm: nil Params")
	}
	if y == nil {
		return 0, fmt.Errorf("ssm: nil observation matrix")
	}

	rows, cols := y.Dims()
	if rows != p.P {
		return 0, &ShapeMismatchError{Field: "y", Want: fmt.Sprintf("%d rows", p.P), Got: fmt.Sprintf("%d rows", rows)}
	}
	n = cols

	if err := checkMatrixParam("Z", p.Z, p.P, p.M, n); err != nil {
		return 0, err
	}
	if err := checkVectorParam("d", p.D, p.P, n); err != nil {
		return 0, err
	}
	if err := checkCovParam("H", p.H, p.P, n); err != nil {
		return 0, err
	}
	if err := checkMatrixParam("T", p.T, p.M, p.M, n+1); err != nil {
		return 0, err
	}
	if err := checkVectorParam("c", p.C, p.M, n+1); err != nil {
		return 0, err
	}
	if err := checkMatrixParam("R", p.R, p.M, p.G, n+1); err != nil {
		return 0, err
	}
	if err := checkCovParam("Q", p.Q, p.G, n+1); err != nil {
		return 0, err
	}

	return n, nil
}

func checkMatrixParam(name string, p *MatrixParam, wantRows, wantCols, n int) error {
	if p == nil || len(p.Slices) == 0 {
		return &ShapeMismatchError{Field: name, Want: fmt.Sprintf("%dx%d", wantRows, wantCols), Got: "nil"}
	}
	for i, s := range p.Slices {
		r, c := s.Dims()
		if r != wantRows || c != wantCols {
			return &ShapeMismatchError{
				Field: fmt.Sprintf("%s[slice %d]", name, i),
				Want:  fmt.Sprintf("%dx%d", wantRows, wantCols),
				Got:   fmt.Sprintf("%dx%d", r, c),
			}
		}
	}
	return checkTau(name, p.Tau, len(p.Slices), n)
}

func checkVectorParam(name string, p *VectorParam, wantLen, n int) error {
	if p == nil || len(p.Slices) == 0 {
		return &ShapeMismatchError{Field: name, Want: fmt.Sprintf("len %d", wantLen), Got: "nil"}
	}
	for i, s := range p.Slices {
		if l := s.Len(); l != wantLen {
			return &ShapeMismatchError{
				Field: fmt.Sprintf("%s[slice %d]", name, i),
				Want:  fmt.Sprintf("len %d", wantLen),
				Got:   fmt.Sprintf("len %d", l),
			}
		}
	}
	return checkTau(name, p.Tau, len(p.Slices), n)
}

func checkCovParam(name string, p *CovParam, wantDim, n int) error {
	if p == nil || len(p.Slices) == 0 {
		return &ShapeMismatchError{Field: name, Want: fmt.Sprintf("%dx%d", wantDim, wantDim), Got: "nil"}
	}
	for i, s := range p.Slices {
		if d := s.Symmetric(); d != wantDim {
			return &ShapeMismatchError{
				Field: fmt.Sprintf("%s[slice %d]", name, i),
				Want:  fmt.Sprintf("%dx%d", wantDim, wantDim),
				Got:   fmt.Sprintf("%dx%d", d, d),
			}
		}
	}
	return checkTau(name, p.Tau, len(p.Slices), n)
}

// checkTau enforces invariant 3: every tau_X value indexes a valid slice.
func checkTau(name string, tau []int, numSlices, n int) error {
	if len(tau) == 0 {
		return nil
	}
	if len(tau) != n {
		return &ShapeMismatchError{Field: name + ".Tau", Want: fmt.Sprintf("len %d", n), Got: fmt.Sprintf("len %d", len(tau))}
	}
	for i, idx := range tau {
		if idx < 0 || idx >= numSlices {
			return &ShapeMismatchError{
				Field: fmt.Sprintf("%s.Tau[%d]", name, i),
				Want:  fmt.Sprintf("index in [0,%d)", numSlices),
				Got:   fmt.Sprintf("%d", idx),
			}
		}
	}
	return nil
}

// CheckFinite enforces invariant 1: every parameter slice is finite.
// Missing y entries are marked NaN by convention and are exempt.
func CheckFinite(p *Params) error {
	scan := func(name string, vals []float64) error {
		for _, v := range vals {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return &UnknownParameterError{Field: name}
			}
		}
		return nil
	}

	for i, s := range p.Z.Slices {
		if err := scan(fmt.Sprintf("Z[%d]", i), s.RawMatrix().Data); err != nil {
			return err
		}
	}
	for i, s := range p.D.Slices {
		if err := scan(fmt.Sprintf("d[%d]", i), s.RawVector().Data); err != nil {
			return err
		}
	}
	for i, s := range p.H.Slices {
		if err := scan(fmt.Sprintf("H[%d]", i), symData(s)); err != nil {
			return err
		}
	}
	for i, s := range p.T.Slices {
		if err := scan(fmt.Sprintf("T[%d]", i), s.RawMatrix().Data); err != nil {
			return err
		}
	}
	for i, s := range p.C.Slices {
		if err := scan(fmt.Sprintf("c[%d]", i), s.RawVector().Data); err != nil {
			return err
		}
	}
	for i, s := range p.R.Slices {
		if err := scan(fmt.Sprintf("R[%d]", i), s.RawMatrix().Data); err != nil {
			return err
		}
	}
	for i, s := range p.Q.Slices {
		if err := scan(fmt.Sprintf("Q[%d]", i), symData(s)); err != nil {
			return err
		}
	}
	return nil
}

// symData extracts every stored entry of a SymDense for a finiteness scan
// (RawSymmetric only guarantees the upper triangle is meaningful, so walk
// that directly rather than assume a dense layout).
func symData(s *mat.SymDense) []float64 {
	n := s.Symmetric()
	out := make([]float64, 0, n*(n+1)/2)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out = append(out, s.At(i, j))
		}
	}
	return out
}
