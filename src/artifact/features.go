package artifact

import (
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/LucaChot/neurostate/src/feature"
)

// Features is the output of the feature fit: what offline model estimation
// consumes and what an artifact later bundles with the model.
type Features struct {
	Band              feature.BandParams
	Projection        *mat.Dense
	Stats             feature.NormalizationStats
	Features          *mat.Dense
	ExplainedVariance []float64
}

type wireFeatures struct {
	Version           int                        `msgpack:"version"`
	Band              feature.BandParams         `msgpack:"band"`
	Projection        DenseMatrix                `msgpack:"projection"`
	Stats             feature.NormalizationStats `msgpack:"stats"`
	Features          DenseMatrix                `msgpack:"features"`
	ExplainedVariance []float64                  `msgpack:"explained_variance"`
}

func NewFeatures(band feature.BandParams, fit *feature.FitResult) *Features {
	return &Features{
		Band:              band,
		Projection:        fit.Projection,
		Stats:             fit.Stats,
		Features:          fit.Features,
		ExplainedVariance: fit.ExplainedVariance,
	}
}

func EncodeFeatures(w io.Writer, f *Features) error {
	wire := wireFeatures{
		Version:           Version,
		Band:              f.Band,
		Projection:        toWire(f.Projection),
		Stats:             f.Stats,
		Features:          toWire(f.Features),
		ExplainedVariance: f.ExplainedVariance,
	}
	if err := msgpack.NewEncoder(w).Encode(&wire); err != nil {
		return fmt.Errorf("artifact: encode features: %w", err)
	}
	return nil
}

func DecodeFeatures(r io.Reader) (*Features, error) {
	var wire wireFeatures
	if err := msgpack.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("artifact: decode features: %w", err)
	}
	if wire.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, wire.Version)
	}

	f := &Features{
		Band:              wire.Band,
		Stats:             wire.Stats,
		ExplainedVariance: wire.ExplainedVariance,
	}
	var err error
	if f.Projection, err = wire.Projection.dense(); err != nil {
		return nil, err
	}
	if f.Features, err = wire.Features.dense(); err != nil {
		return nil, err
	}
	if f.Projection == nil {
		return nil, fmt.Errorf("artifact: features carry no projection")
	}
	return f, nil
}

func SaveFeatures(path string, f *Features) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	if err := EncodeFeatures(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func LoadFeatures(path string) (*Features, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	defer in.Close()
	return DecodeFeatures(in)
}
