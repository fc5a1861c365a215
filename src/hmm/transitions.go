package hmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

/*
TransitionModel generates the transition matrices over the expanded state
space for an observation window. It returns either a single matrix shared
by every step or T-1 matrices, one per step.
*/
type TransitionModel interface {
	NumStates() int
	Matrices(obs mat.Matrix) []*mat.Dense
}

// Stationary uses one transition matrix for every step.
type Stationary struct {
	p *mat.Dense
}

func NewStationary(p *mat.Dense) (*Stationary, error) {
	if err := checkStochastic(p); err != nil {
		return nil, err
	}
	var c mat.Dense
	c.CloneFrom(p)
	return &Stationary{p: &c}, nil
}

func (s *Stationary) NumStates() int {
	r, _ := s.p.Dims()
	return r
}

func (s *Stationary) Matrices(mat.Matrix) []*mat.Dense {
	return []*mat.Dense{s.p}
}

// Matrix returns the transition matrix; callers must not modify it.
func (s *Stationary) Matrix() *mat.Dense { return s.p }

/*
NegativeBinomial expands K macro-states into K*R substates so that the
dwell time in macro-state k is a sum of R geometric stays, i.e. negative
binomial. Expanded index k*R+s is substate s of macro-state k.

  - substate s < R-1 stays with p_k and advances to s+1 with 1-p_k
  - substate R-1 stays with p_k and with 1-p_k leaves to substate 0 of
    macro-state j, chosen by the macro transition row A[k]
*/
type NegativeBinomial struct {
	macro    *mat.Dense
	stay     []float64
	r        int
	expanded *mat.Dense
}

func NewNegativeBinomial(macro *mat.Dense, stay []float64, r int) (*NegativeBinomial, error) {
	if r < 1 {
		return nil, &InvalidSubstateCountError{Substates: r}
	}
	if err := checkStochastic(macro); err != nil {
		return nil, err
	}
	k, _ := macro.Dims()
	if len(stay) != k {
		return nil, fmt.Errorf("hmm: %d stay probabilities for %d states", len(stay), k)
	}
	for i, p := range stay {
		if !(p >= 0 && p <= 1) {
			return nil, fmt.Errorf("hmm: stay probability %d is %g, outside [0,1]", i, p)
		}
	}

	var a mat.Dense
	a.CloneFrom(macro)
	nb := &NegativeBinomial{
		macro: &a,
		stay:  append([]float64(nil), stay...),
		r:     r,
	}
	nb.expanded = nb.expand()
	if err := checkStochastic(nb.expanded); err != nil {
		return nil, fmt.Errorf("hmm: expanded transitions: %w", err)
	}
	return nb, nil
}

func (nb *NegativeBinomial) expand() *mat.Dense {
	k, _ := nb.macro.Dims()
	n := k * nb.r
	p := mat.NewDense(n, n, nil)
	for m := range k {
		stay := nb.stay[m]
		for s := range nb.r {
			i := m*nb.r + s
			p.Set(i, i, stay)
			if s < nb.r-1 {
				p.Set(i, i+1, 1-stay)
				continue
			}
			for j := range k {
				to := j * nb.r
				p.Set(i, to, p.At(i, to)+(1-stay)*nb.macro.At(m, j))
			}
		}
	}
	return p
}

func (nb *NegativeBinomial) NumStates() int {
	r, _ := nb.expanded.Dims()
	return r
}

func (nb *NegativeBinomial) Matrices(mat.Matrix) []*mat.Dense {
	return []*mat.Dense{nb.expanded}
}

// Expanded returns the K*R transition matrix; callers must not modify it.
func (nb *NegativeBinomial) Expanded() *mat.Dense { return nb.expanded }

// MeanDuration is the expected number of steps spent in macro-state k
// per visit, ignoring self-jumps in the macro matrix.
func (nb *NegativeBinomial) MeanDuration(k int) float64 {
	return float64(nb.r) / (1 - nb.stay[k])
}

// checkStochastic holds transition rows to the same tolerance the filter
// applies to predictive rows, since each predictive row sum follows the row
// sums of the matrix it was pushed through.
func checkStochastic(p *mat.Dense) error {
	if p == nil {
		return fmt.Errorf("hmm: transition matrix is nil")
	}
	r, c := p.Dims()
	if r != c {
		return fmt.Errorf("hmm: transition matrix is %dx%d, not square", r, c)
	}
	for i := range r {
		var sum float64
		for j := range c {
			v := p.At(i, j)
			if v < 0 || math.IsNaN(v) {
				return fmt.Errorf("hmm: transition entry (%d,%d) is %g", i, j, v)
			}
			sum += v
		}
		if math.Abs(sum-1) > SumTolerance {
			return fmt.Errorf("hmm: transition row %d sums to %g", i, sum)
		}
	}
	return nil
}
