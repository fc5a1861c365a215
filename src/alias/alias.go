// Package alias draws from discrete distributions in O(1) per draw with
// Vose's alias method.
package alias

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Table draws index i with probability weights[i] / sum(weights).
type Table struct {
	cut   []float64
	other []int
}

func New(weights []float64) (*Table, error) {
	n := len(weights)
	if n == 0 {
		return nil, errors.New("alias: no weights")
	}
	if floats.Min(weights) < 0 {
		return nil, errors.New("alias: negative weight")
	}
	total := floats.Sum(weights)
	if !(total > 0) {
		return nil, fmt.Errorf("alias: weights sum to %g", total)
	}

	scaled := make([]float64, n)
	floats.ScaleTo(scaled, float64(n)/total, weights)

	t := &Table{cut: make([]float64, n), other: make([]int, n)}
	var under, over []int
	for i, p := range scaled {
		if p < 1 {
			under = append(under, i)
		} else {
			over = append(over, i)
		}
	}

	for len(under) > 0 && len(over) > 0 {
		lo := under[len(under)-1]
		under = under[:len(under)-1]
		hi := over[len(over)-1]

		t.cut[lo] = scaled[lo]
		t.other[lo] = hi
		scaled[hi] -= 1 - scaled[lo]
		if scaled[hi] < 1 {
			over = over[:len(over)-1]
			under = append(under, hi)
		}
	}
	// Whatever is left is within rounding of a full column.
	for _, i := range append(under, over...) {
		t.cut[i] = 1
		t.other[i] = i
	}
	return t, nil
}

// Rows builds one table per row of a row-stochastic matrix.
func Rows(m mat.Matrix) ([]*Table, error) {
	r, c := m.Dims()
	tables := make([]*Table, r)
	row := make([]float64, c)
	for i := range r {
		mat.Row(row, i, m)
		t, err := New(row)
		if err != nil {
			return nil, fmt.Errorf("alias: row %d: %w", i, err)
		}
		tables[i] = t
	}
	return tables, nil
}

func (t *Table) Sample(rng *rand.Rand) int {
	i := rng.IntN(len(t.cut))
	if rng.Float64() < t.cut[i] {
		return i
	}
	return t.other[i]
}

func (t *Table) Len() int { return len(t.cut) }
