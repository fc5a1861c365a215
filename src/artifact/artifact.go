package artifact

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/LucaChot/neurostate/src/feature"
	"github.com/LucaChot/neurostate/src/hmm"
)

// Version is the bundle layout written by Encode.
const Version = 1

var ErrUnsupportedVersion = errors.New("artifact: unsupported version")

/*
Artifact is one trained model together with the feature projection and
normalisation statistics it was trained against. After Compile it is
read-only; a reload installs a whole new Artifact.

Transition is the full K x K matrix for the plain family and the macro
jump matrix for the duration family, where Stay holds the per-state
probability of remaining in a substate.
*/
type Artifact struct {
	Version        int
	Family         hmm.Family
	Pi0            []float64
	Transition     *mat.Dense
	Stay           []float64
	Means          *mat.Dense
	Covariances    []*mat.SymDense
	Projection     *mat.Dense
	Stats          feature.NormalizationStats
	LogLikelihoods []float64

	model *hmm.Model
}

// Compile builds the decoding model once. It must be called before Model.
func (a *Artifact) Compile() error {
	if a.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.Version)
	}
	if err := a.Family.Validate(); err != nil {
		return err
	}

	var transitions hmm.TransitionModel
	var err error
	switch a.Family.Kind {
	case hmm.Plain:
		transitions, err = hmm.NewStationary(a.Transition)
	case hmm.DurationExpanded:
		transitions, err = hmm.NewNegativeBinomial(a.Transition, a.Stay, a.Family.Substates)
	}
	if err != nil {
		return fmt.Errorf("artifact: transitions: %w", err)
	}

	emissions, err := hmm.NewGaussian(a.Means, a.Covariances)
	if err != nil {
		return fmt.Errorf("artifact: emissions: %w", err)
	}

	model, err := hmm.NewModel(a.Family, a.Pi0, transitions, emissions)
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}

	if a.Projection == nil {
		return errors.New("artifact: projection is missing")
	}
	if _, c := a.Projection.Dims(); c != model.ObsDim() {
		return fmt.Errorf("artifact: projection has %d components, model has obs dim %d", c, model.ObsDim())
	}
	if len(a.Stats.Mean) == 0 || len(a.Stats.Mean) != len(a.Stats.Stdev) {
		return fmt.Errorf("artifact: stats have %d means and %d stdevs", len(a.Stats.Mean), len(a.Stats.Stdev))
	}

	a.model = model
	return nil
}

// Model returns the compiled model, or nil before Compile.
func (a *Artifact) Model() *hmm.Model { return a.model }

func (a *Artifact) NumStates() int {
	k, _ := a.Means.Dims()
	return k
}

func (a *Artifact) NumSubstates() int { return a.Family.Substates }

func (a *Artifact) ObsDim() int {
	_, d := a.Means.Dims()
	return d
}

// BufferSize is the raw buffer length the stats were computed over.
func (a *Artifact) BufferSize() int { return len(a.Stats.Mean) }

// Describe is a human readable one-liner of the model family.
func (a *Artifact) Describe() string {
	if a.Family.Kind == hmm.Plain {
		return fmt.Sprintf("HMM with %d states, obs dim %d", a.NumStates(), a.ObsDim())
	}
	return fmt.Sprintf("HSMM with %d states x %d substates, obs dim %d",
		a.NumStates(), a.Family.Substates, a.ObsDim())
}

// MeanDurations is the expected number of steps per visit to each
// macro-state, or nil before Compile.
func (a *Artifact) MeanDurations() []float64 {
	if a.model == nil {
		return nil
	}
	d := make([]float64, a.NumStates())
	switch t := a.model.Transitions().(type) {
	case *hmm.NegativeBinomial:
		for k := range d {
			d[k] = t.MeanDuration(k)
		}
	case *hmm.Stationary:
		for k := range d {
			d[k] = 1 / (1 - t.Matrix().At(k, k))
		}
	default:
		return nil
	}
	return d
}
