package hmm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

/*
Model is an immutable trained model over K macro-states. Both families go
through the same recursion: pi0 and the emission log-likelihoods are
replicated onto the K*R expanded states, filtered, and collapsed back
through the state map. It holds no per-call state and may be shared by any
number of goroutines.
*/
type Model struct {
	family      Family
	k, d        int
	pi0         []float64
	stateMap    []int
	transitions TransitionModel
	emissions   EmissionModel
}

// NewModel checks that the parts agree on K, R and D.
func NewModel(family Family, pi0 []float64, transitions TransitionModel, emissions EmissionModel) (*Model, error) {
	if err := family.Validate(); err != nil {
		return nil, err
	}
	if transitions == nil || emissions == nil {
		return nil, errors.New("hmm: model needs transitions and emissions")
	}

	k := emissions.NumStates()
	if k < 1 {
		return nil, fmt.Errorf("hmm: model has %d states", k)
	}
	if len(pi0) != k {
		return nil, fmt.Errorf("hmm: initial distribution has %d entries for %d states", len(pi0), k)
	}
	for i, p := range pi0 {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("hmm: initial probability %d is %g", i, p)
		}
	}
	if floats.Sum(pi0) <= 0 {
		return nil, errors.New("hmm: initial distribution has no mass")
	}
	if n := transitions.NumStates(); n != k*family.Substates {
		return nil, fmt.Errorf("hmm: transitions cover %d states, want %d x %d", n, k, family.Substates)
	}

	return &Model{
		family:      family,
		k:           k,
		d:           emissions.ObsDim(),
		pi0:         append([]float64(nil), pi0...),
		stateMap:    family.StateMap(k),
		transitions: transitions,
		emissions:   emissions,
	}, nil
}

func (m *Model) Family() Family               { return m.family }
func (m *Model) NumStates() int               { return m.k }
func (m *Model) NumSubstates() int            { return m.family.Substates }
func (m *Model) ObsDim() int                  { return m.d }
func (m *Model) ExpandedStates() int          { return len(m.stateMap) }
func (m *Model) StateMap() []int              { return append([]int(nil), m.stateMap...) }
func (m *Model) Transitions() TransitionModel { return m.transitions }
func (m *Model) Emissions() EmissionModel     { return m.emissions }

// InitialDistribution is pi0 replicated onto the expanded states. It is
// not renormalised; Filter does that.
func (m *Model) InitialDistribution() []float64 {
	return Replicate(m.pi0, m.stateMap)
}

// Predict returns the T x (K*R) predictive beliefs over expanded states.
func (m *Model) Predict(obs mat.Matrix) (*mat.Dense, error) {
	if err := m.checkObs(obs); err != nil {
		return nil, err
	}
	ll := ReplicateColumns(m.emissions.LogLikelihoods(obs), m.stateMap)
	return Filter(m.InitialDistribution(), m.transitions.Matrices(obs), ll)
}

func (m *Model) checkObs(obs mat.Matrix) error {
	if obs == nil {
		return errors.New("hmm: observations are nil")
	}
	t, d := obs.Dims()
	if t < 1 {
		return errors.New("hmm: observation window is empty")
	}
	if d != m.d {
		return fmt.Errorf("hmm: observations have dimension %d, model expects %d", d, m.d)
	}
	return nil
}

// Filter returns the T x K predictive beliefs collapsed to macro-states.
func (m *Model) Filter(obs mat.Matrix) (*mat.Dense, error) {
	pred, err := m.Predict(obs)
	if err != nil {
		return nil, err
	}
	return Collapse(pred, m.stateMap, m.k), nil
}

/*
CurrentBelief is the last row of Filter, P(z_T-1 | x_0..x_T-2): the filtered
belief at T-2 pushed through one more transition. It is not the filtered
estimate at the newest index and callers depend on that.
*/
func (m *Model) CurrentBelief(obs mat.Matrix) ([]float64, error) {
	collapsed, err := m.Filter(obs)
	if err != nil {
		return nil, err
	}
	t, _ := collapsed.Dims()
	return mat.Row(nil, t-1, collapsed), nil
}

// LogLikelihood is log p(obs) under the model, from the forward pass.
func (m *Model) LogLikelihood(obs mat.Matrix) (float64, error) {
	if err := m.checkObs(obs); err != nil {
		return 0, err
	}
	ll := ReplicateColumns(m.emissions.LogLikelihoods(obs), m.stateMap)
	pi0 := m.InitialDistribution()
	floats.Scale(1/floats.Sum(pi0), pi0)
	alphas, err := Forward(pi0, m.transitions.Matrices(obs), ll)
	if err != nil {
		return 0, err
	}
	t, _ := alphas.Dims()
	return floats.LogSumExp(alphas.RawRowView(t - 1)), nil
}
