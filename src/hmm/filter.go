package hmm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	mt "github.com/LucaChot/neurostate/src/matrix"
)

/*
Forward runs the log-domain forward pass.

	alpha[0,k] = log pi0[k] + ll[0,k]
	alpha[t,k] = ll[t,k] + log sum_j exp(alpha[t-1,j]) P_{t-1}[j,k]

The inner sum is taken after shifting by max_j alpha[t-1,j] so that it
never underflows.
*/
func Forward(pi0 []float64, ps []*mat.Dense, ll mat.Matrix) (*mat.Dense, error) {
	at, err := transitionsFor(pi0, ps, ll)
	if err != nil {
		return nil, err
	}
	return forward(pi0, at, ll), nil
}

func forward(pi0 []float64, at func(t int) *mat.Dense, ll mat.Matrix) *mat.Dense {
	T, K := ll.Dims()
	alphas := mat.NewDense(T, K, nil)
	for k := range K {
		alphas.Set(0, k, math.Log(pi0[k])+ll.At(0, k))
	}

	prev := make([]float64, K)
	var next mat.VecDense
	for t := 1; t < T; t++ {
		copy(prev, alphas.RawRowView(t-1))
		m := floats.Max(prev)
		for j := range prev {
			prev[j] = math.Exp(prev[j] - m)
		}
		next.MulVec(at(t-1).T(), mat.NewVecDense(K, prev))
		for k := range K {
			alphas.Set(t, k, math.Log(next.AtVec(k))+m+ll.At(t, k))
		}
	}
	return alphas
}

/*
Filter returns the T x K one-step-ahead predictive beliefs

	row 0   = pi0 / sum(pi0)
	row t+1 = P(z_t | x_0..t) . P_t

and checks that every row sums to one within SumTolerance. pi0 is always
renormalised before it is used as row 0; a replicated pi0 over expanded
states sums to R, not one.
*/
func Filter(pi0 []float64, ps []*mat.Dense, ll mat.Matrix) (*mat.Dense, error) {
	at, err := transitionsFor(pi0, ps, ll)
	if err != nil {
		return nil, err
	}
	T, K := ll.Dims()

	total := floats.Sum(pi0)
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("hmm: initial distribution sums to %g", total)
	}

	alphas := forward(pi0, at, ll)

	pred := mat.NewDense(T, K, nil)
	row := make([]float64, K)
	copy(row, pi0)
	floats.Scale(1/total, row)
	pred.SetRow(0, row)

	var next mat.VecDense
	for t := range T - 1 {
		copy(row, alphas.RawRowView(t))
		floats.AddConst(-floats.Max(row), row)
		for k := range row {
			row[k] = math.Exp(row[k])
		}
		floats.Scale(1/floats.Sum(row), row)

		next.MulVec(at(t).T(), mat.NewVecDense(K, row))
		pred.SetRow(t+1, next.RawVector().Data)
	}

	for t, sum := range mt.RowSums(pred) {
		if !(math.Abs(sum-1) < SumTolerance) {
			return nil, &NumericalInconsistencyError{Row: t, Sum: sum}
		}
	}
	return pred, nil
}

/*
transitionsFor validates shapes and returns the matrix to use for the step
from t to t+1: ps[t] when there are T-1 matrices, otherwise ps[0].
*/
func transitionsFor(pi0 []float64, ps []*mat.Dense, ll mat.Matrix) (func(int) *mat.Dense, error) {
	if ll == nil {
		return nil, errors.New("hmm: log-likelihoods are nil")
	}
	T, K := ll.Dims()
	if T < 1 {
		return nil, errors.New("hmm: observation window is empty")
	}
	if len(pi0) != K {
		return nil, fmt.Errorf("hmm: initial distribution has %d states, likelihoods have %d", len(pi0), K)
	}
	if T > 1 && len(ps) != 1 && len(ps) != T-1 {
		return nil, fmt.Errorf("hmm: %d transition matrices for %d observations", len(ps), T)
	}
	for i, p := range ps {
		if p == nil {
			return nil, fmt.Errorf("hmm: transition matrix %d is nil", i)
		}
		if r, c := p.Dims(); r != K || c != K {
			return nil, fmt.Errorf("hmm: transition matrix %d is %dx%d, want %dx%d", i, r, c, K, K)
		}
	}

	if len(ps) == T-1 {
		return func(t int) *mat.Dense { return ps[t] }, nil
	}
	return func(int) *mat.Dense { return ps[0] }, nil
}

// Collapse sums the expanded-state columns of pz into k macro-state columns.
func Collapse(pz mat.Matrix, stateMap []int, k int) *mat.Dense {
	r, c := pz.Dims()
	if c != len(stateMap) {
		panic(fmt.Errorf("hmm: state map has %d entries for %d columns", len(stateMap), c))
	}
	out := mat.NewDense(r, k, nil)
	for i := range r {
		for j, m := range stateMap {
			out.Set(i, m, out.At(i, m)+pz.At(i, j))
		}
	}
	return out
}

// Replicate expands a per-macro-state vector to the expanded space.
func Replicate(x []float64, stateMap []int) []float64 {
	out := make([]float64, len(stateMap))
	for i, m := range stateMap {
		out[i] = x[m]
	}
	return out
}

// ReplicateColumns expands a T x K matrix to T x len(stateMap).
func ReplicateColumns(x mat.Matrix, stateMap []int) *mat.Dense {
	r, _ := x.Dims()
	out := mat.NewDense(r, len(stateMap), nil)
	for i := range r {
		for j, m := range stateMap {
			out.Set(i, j, x.At(i, m))
		}
	}
	return out
}
