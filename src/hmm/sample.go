package hmm

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/LucaChot/neurostate/src/alias"
)

/*
Sample draws a path of t macro-states and matching observations. It needs
a single stationary transition matrix and an emission model that
implements Sampler.
*/
func (m *Model) Sample(t int, rng *rand.Rand) ([]int, *mat.Dense, error) {
	if t < 1 {
		return nil, nil, fmt.Errorf("hmm: cannot sample %d steps", t)
	}
	sampler, ok := m.emissions.(Sampler)
	if !ok {
		return nil, nil, errors.New("hmm: emission model cannot sample")
	}
	ps := m.transitions.Matrices(nil)
	if len(ps) != 1 {
		return nil, nil, errors.New("hmm: sampling needs a stationary transition model")
	}

	init, err := alias.New(m.InitialDistribution())
	if err != nil {
		return nil, nil, fmt.Errorf("hmm: initial distribution: %w", err)
	}
	rows, err := alias.Rows(ps[0])
	if err != nil {
		return nil, nil, fmt.Errorf("hmm: transitions: %w", err)
	}

	states := make([]int, t)
	obs := mat.NewDense(t, m.d, nil)
	z := init.Sample(rng)
	for i := range t {
		if i > 0 {
			z = rows[z].Sample(rng)
		}
		states[i] = m.stateMap[z]
		obs.SetRow(i, sampler.Sample(states[i], rng))
	}
	return states, obs, nil
}
