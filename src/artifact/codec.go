package artifact

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/LucaChot/neurostate/src/feature"
	"github.com/LucaChot/neurostate/src/hmm"
)

// DenseMatrix is the wire form of a matrix, row-major.
type DenseMatrix struct {
	Rows int64     `msgpack:"rows"`
	Cols int64     `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

func toWire(m mat.Matrix) DenseMatrix {
	if m == nil {
		return DenseMatrix{}
	}
	r, c := m.Dims()
	d := DenseMatrix{Rows: int64(r), Cols: int64(c), Data: make([]float64, 0, r*c)}
	for i := range r {
		for j := range c {
			d.Data = append(d.Data, m.At(i, j))
		}
	}
	return d
}

func (d DenseMatrix) dense() (*mat.Dense, error) {
	if d.Rows == 0 && d.Cols == 0 {
		return nil, nil
	}
	if d.Rows < 1 || d.Cols < 1 || int64(len(d.Data)) != d.Rows*d.Cols {
		return nil, fmt.Errorf("artifact: matrix %dx%d carries %d values", d.Rows, d.Cols, len(d.Data))
	}
	return mat.NewDense(int(d.Rows), int(d.Cols), d.Data), nil
}

func (d DenseMatrix) symmetric() (*mat.SymDense, error) {
	m, err := d.dense()
	if err != nil {
		return nil, err
	}
	if m == nil || d.Rows != d.Cols {
		return nil, fmt.Errorf("artifact: covariance is %dx%d", d.Rows, d.Cols)
	}
	if !mat.EqualApprox(m, m.T(), 1e-12) {
		return nil, fmt.Errorf("artifact: covariance is not symmetric")
	}
	return mat.NewSymDense(int(d.Rows), d.Data), nil
}

type wireModel struct {
	Family     string        `msgpack:"family"`
	Substates  int           `msgpack:"substates"`
	Pi0        []float64     `msgpack:"pi0"`
	Transition DenseMatrix   `msgpack:"transition"`
	Stay       []float64     `msgpack:"stay,omitempty"`
	Means      DenseMatrix   `msgpack:"means"`
	Covs       []DenseMatrix `msgpack:"covariances"`
}

type wireArtifact struct {
	Version        int                        `msgpack:"version"`
	Model          wireModel                  `msgpack:"model"`
	Projection     DenseMatrix                `msgpack:"projection"`
	Stats          feature.NormalizationStats `msgpack:"stats"`
	LogLikelihoods []float64                  `msgpack:"lls"`
}

// Encode writes a in the msgpack bundle layout.
func Encode(w io.Writer, a *Artifact) error {
	wire := wireArtifact{
		Version: a.Version,
		Model: wireModel{
			Family:     a.Family.Kind.String(),
			Substates:  a.Family.Substates,
			Pi0:        a.Pi0,
			Transition: toWire(a.Transition),
			Stay:       a.Stay,
			Means:      toWire(a.Means),
		},
		Projection:     toWire(a.Projection),
		Stats:          a.Stats,
		LogLikelihoods: a.LogLikelihoods,
	}
	for _, c := range a.Covariances {
		wire.Model.Covs = append(wire.Model.Covs, toWire(c))
	}

	if err := msgpack.NewEncoder(w).Encode(&wire); err != nil {
		return fmt.Errorf("artifact: encode: %w", err)
	}
	return nil
}

// Decode reads a bundle written by Encode. The result is not compiled.
func Decode(r io.Reader) (*Artifact, error) {
	var wire wireArtifact
	if err := msgpack.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("artifact: decode: %w", err)
	}
	if wire.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, wire.Version)
	}

	var family hmm.Family
	var err error
	switch wire.Model.Family {
	case hmm.Plain.String():
		family = hmm.PlainFamily()
	case hmm.DurationExpanded.String():
		family, err = hmm.DurationFamily(wire.Model.Substates)
	default:
		err = fmt.Errorf("artifact: unknown model family %q", wire.Model.Family)
	}
	if err != nil {
		return nil, err
	}

	a := &Artifact{
		Version:        wire.Version,
		Family:         family,
		Pi0:            wire.Model.Pi0,
		Stay:           wire.Model.Stay,
		Stats:          wire.Stats,
		LogLikelihoods: wire.LogLikelihoods,
	}
	if a.Transition, err = wire.Model.Transition.dense(); err != nil {
		return nil, err
	}
	if a.Means, err = wire.Model.Means.dense(); err != nil {
		return nil, err
	}
	if a.Means == nil {
		return nil, fmt.Errorf("artifact: emission means are missing")
	}
	if a.Projection, err = wire.Projection.dense(); err != nil {
		return nil, err
	}
	for i, c := range wire.Model.Covs {
		cov, err := c.symmetric()
		if err != nil {
			return nil, fmt.Errorf("artifact: covariance %d: %w", i, err)
		}
		a.Covariances = append(a.Covariances, cov)
	}
	return a, nil
}
