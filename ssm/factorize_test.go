package ssm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// A diagonal H is already uncorrelated, so Factorize must be a no-op
// and return the same Params/y pointers it was given.
func TestFactorize_DiagonalNoOp(t *testing.T) {
	p := &Params{
		Z: NewConstMatrix(mat.NewDense(2, 1, []float64{1, 1})),
		D: NewConstVector(mat.NewVecDense(2, []float64{0, 0})),
		H: NewConstCov(mat.NewSymDense(2, []float64{1, 0, 0, 1})),
		T: NewConstMatrix(mat.NewDense(1, 1, []float64{0.5})),
		C: NewConstVector(mat.NewVecDense(1, []float64{0})),
		R: NewConstMatrix(mat.NewDense(1, 1, []float64{1})),
		Q: NewConstCov(mat.NewSymDense(1, []float64{1})),
		P: 2, M: 1, G: 1,
	}
	y := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	outP, outY, err := Factorize(p, y)
	require.NoError(t, err)
	require.Same(t, p, outP, "Factorize should return the same Params for a diagonal H")
	require.Same(t, y, outY, "Factorize should return the same y for a diagonal H")
}

// A correlated H must be transformed to a diagonal one: in the
// single-period, fully-observed case the transformed H has zero
// off-diagonal entries.
func TestFactorize_CorrelatedH_ProducesDiagonal(t *testing.T) {
	p := &Params{
		Z: NewConstMatrix(mat.NewDense(2, 1, []float64{1, 1})),
		D: NewConstVector(mat.NewVecDense(2, []float64{0, 0})),
		H: NewConstCov(mat.NewSymDense(2, []float64{1, 0.5, 0.5, 1})),
		T: NewConstMatrix(mat.NewDense(1, 1, []float64{0.5})),
		C: NewConstVector(mat.NewVecDense(1, []float64{0})),
		R: NewConstMatrix(mat.NewDense(1, 1, []float64{1})),
		Q: NewConstCov(mat.NewSymDense(1, []float64{1})),
		P: 2, M: 1, G: 1,
	}
	y := mat.NewDense(2, 1, []float64{1, 2})

	outP, _, err := Factorize(p, y)
	require.NoError(t, err)

	Ht := outP.H.At(0)
	require.True(t, almostEqual(Ht.At(0, 1), 0, 1e-9), "transformed H[0,1] = %v, want 0", Ht.At(0, 1))
	require.True(t, almostEqual(Ht.At(1, 0), 0, 1e-9), "transformed H[1,0] = %v, want 0", Ht.At(1, 0))
}
