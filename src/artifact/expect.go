package artifact

import (
	"fmt"

	"github.com/LucaChot/neurostate/src/hmm"
)

// Expectation is what the caller was configured for. An artifact that
// disagrees is rejected at load time, before any decode can run.
type Expectation struct {
	NumStates    int `yaml:"num_states"`
	NumSubstates int `yaml:"num_substates"`
	ObsDim       int `yaml:"obs_dim"`
}

// ConfigMismatchError reports the first of K, R or D that differs.
type ConfigMismatchError struct {
	Field string
	Want  int
	Got   int
}

func (e *ConfigMismatchError) Error() string {
	return fmt.Sprintf("artifact: %s does not match: configured = %d, artifact = %d", e.Field, e.Want, e.Got)
}

func (e Expectation) Validate() error {
	if e.NumSubstates < 1 {
		return &hmm.InvalidSubstateCountError{Substates: e.NumSubstates}
	}
	if e.NumStates < 1 {
		return fmt.Errorf("artifact: number of states must be positive, got %d", e.NumStates)
	}
	if e.ObsDim < 1 {
		return fmt.Errorf("artifact: observation dimension must be positive, got %d", e.ObsDim)
	}
	return nil
}

// Check compares a compiled artifact against the expectation.
func (e Expectation) Check(a *Artifact) error {
	if a.NumStates() != e.NumStates {
		return &ConfigMismatchError{Field: "number of states", Want: e.NumStates, Got: a.NumStates()}
	}
	if a.NumSubstates() != e.NumSubstates {
		return &ConfigMismatchError{Field: "number of substates", Want: e.NumSubstates, Got: a.NumSubstates()}
	}
	if a.ObsDim() != e.ObsDim {
		return &ConfigMismatchError{Field: "observation dimension", Want: e.ObsDim, Got: a.ObsDim()}
	}
	return nil
}
