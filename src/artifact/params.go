package artifact

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"gonum.org/v1/gonum/mat"

	"github.com/LucaChot/neurostate/src/hmm"
)

/*
Parameters are the fitted model parameters as exported by the offline
estimation step. Assemble joins them with a feature fit into an artifact.
*/
type Parameters struct {
	NumSubstates   int           `yaml:"num_substates"`
	Pi0            []float64     `yaml:"pi0"`
	Transition     [][]float64   `yaml:"transition"`
	Stay           []float64     `yaml:"stay,omitempty"`
	Means          [][]float64   `yaml:"means"`
	Covariances    [][][]float64 `yaml:"covariances"`
	LogLikelihoods []float64     `yaml:"log_likelihoods,omitempty"`
}

func LoadParameters(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", path, err)
	}
	var p Parameters
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("artifact: parse %s: %w", path, err)
	}
	return &p, nil
}

func rows(name string, data [][]float64) (*mat.Dense, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, fmt.Errorf("artifact: %s is empty", name)
	}
	c := len(data[0])
	m := mat.NewDense(len(data), c, nil)
	for i, row := range data {
		if len(row) != c {
			return nil, fmt.Errorf("artifact: %s row %d has %d values, want %d", name, i, len(row), c)
		}
		m.SetRow(i, row)
	}
	return m, nil
}

// Assemble builds and compiles an artifact from p and a feature fit.
func (p *Parameters) Assemble(f *Features) (*Artifact, error) {
	family, err := hmm.FamilyFor(p.NumSubstates)
	if err != nil {
		return nil, err
	}

	a := &Artifact{
		Version:        Version,
		Family:         family,
		Pi0:            p.Pi0,
		Stay:           p.Stay,
		Projection:     f.Projection,
		Stats:          f.Stats,
		LogLikelihoods: p.LogLikelihoods,
	}
	if a.Transition, err = rows("transition", p.Transition); err != nil {
		return nil, err
	}
	if a.Means, err = rows("means", p.Means); err != nil {
		return nil, err
	}
	for i, c := range p.Covariances {
		m, err := rows(fmt.Sprintf("covariance %d", i), c)
		if err != nil {
			return nil, err
		}
		cov := DenseMatrix{Rows: int64(len(c)), Cols: int64(len(c[0])), Data: m.RawMatrix().Data}
		sym, err := cov.symmetric()
		if err != nil {
			return nil, fmt.Errorf("artifact: covariance %d: %w", i, err)
		}
		a.Covariances = append(a.Covariances, sym)
	}

	if err := a.Compile(); err != nil {
		return nil, err
	}
	return a, nil
}
