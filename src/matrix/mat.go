package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

/*
Function Structure
- Assertions
- Calculation
- Handle Subsequent Errors
*/

/*
PrincipalAxes returns the first r right singular vectors of b as the columns
of a (cols x r) matrix together with the matching singular values. The rows
of b are observations, so the columns returned are the principal directions
once b has been centred.
*/
func PrincipalAxes(b mat.Matrix, r int) (*mat.Dense, *mat.DiagDense) {
	br, bc := b.Dims()
	if r < 1 || min(br, bc) < r {
		panic(fmt.Errorf("rank r must be positive and no larger than the dimensions of matrix"))
	}

	var svd mat.SVD
	if ok := svd.Factorize(b, mat.SVDThinV); !ok {
		panic(fmt.Errorf("svd factorisation failed to converge"))
	}

	var fullV, v mat.Dense
	svd.VTo(&fullV)
	n, _ := fullV.Dims()
	v.CloneFrom(fullV.Slice(0, n, 0, r))

	sData := svd.Values(nil)
	sigma := mat.NewDiagDense(r, sData[:r])

	return &v, sigma
}

/* Centre subtracts the column means of b and returns the centred copy */
func Centre(b mat.Matrix) *mat.Dense {
	br, bc := b.Dims()
	var c mat.Dense
	c.CloneFrom(b)

	col := make([]float64, br)
	for j := range bc {
		mat.Col(col, j, &c)
		floats.AddConst(-floats.Sum(col)/float64(br), col)
		c.SetCol(j, col)
	}
	return &c
}

/* NormalizeColumnsL1 scales every column of m in place to unit L1 norm */
func NormalizeColumnsL1(m *mat.Dense) {
	r, c := m.Dims()
	col := make([]float64, r)
	for j := range c {
		mat.Col(col, j, m)
		norm := floats.Norm(col, 1)
		if norm == 0 {
			panic(fmt.Errorf("column %d has zero L1 norm", j))
		}
		floats.Scale(1/norm, col)
		m.SetCol(j, col)
	}
}

/* SelectColumns copies the listed columns of b, in order, into a new matrix */
func SelectColumns(b mat.Matrix, idx []int) *mat.Dense {
	br, bc := b.Dims()
	if len(idx) == 0 {
		panic(fmt.Errorf("no columns selected"))
	}

	out := mat.NewDense(br, len(idx), nil)
	for j, c := range idx {
		if c < 0 || c >= bc {
			panic(fmt.Errorf("column index %d out of range [0,%d)", c, bc))
		}
		for i := range br {
			out.Set(i, j, b.At(i, c))
		}
	}
	return out
}

/* FromRows stacks equal-length rows into a dense matrix, oldest row first */
func FromRows(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		panic(fmt.Errorf("cannot build a matrix from zero rows"))
	}
	c := len(rows[0])

	/* Use of raw matrices to access slices */
	out := mat.NewDense(len(rows), c, nil)
	raw := out.RawMatrix()
	for i, row := range rows {
		if len(row) != c {
			panic(fmt.Errorf("row %d has length %d, expected %d", i, len(row), c))
		}
		copy(raw.Data[i*raw.Stride:i*raw.Stride+c], row)
	}
	return out
}

/* RowSums returns the sum of every row of m */
func RowSums(m mat.Matrix) []float64 {
	r, c := m.Dims()
	sums := make([]float64, r)
	for i := range r {
		for j := range c {
			sums[i] += m.At(i, j)
		}
	}
	return sums
}

/* AllFinite reports whether every element of x is neither NaN nor Inf */
func AllFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
