package feature

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	mt "github.com/LucaChot/neurostate/src/matrix"
)

var ErrNonFiniteFeature = errors.New("feature: extracted feature is not finite")

// Extractor turns one raw buffer into a feature vector. It is immutable
// after construction and safe for concurrent use.
type Extractor struct {
	band       BandParams
	stats      NormalizationStats
	idx        []int
	projection *mat.Dense
}

/*
NewExtractor validates the band, stats and projection against each other
once so that Extract never has to.
*/
func NewExtractor(band BandParams, projection *mat.Dense, stats NormalizationStats) (*Extractor, error) {
	if err := band.Validate(); err != nil {
		return nil, err
	}
	if err := stats.Validate(band.BufferSize); err != nil {
		return nil, err
	}
	if projection == nil {
		return nil, errors.New("feature: projection matrix is nil")
	}

	idx := MaskedIndices(band)
	if len(idx) == 0 {
		return nil, errors.New("feature: frequency band selects no indices")
	}
	pr, _ := projection.Dims()
	if pr != len(idx) {
		return nil, fmt.Errorf("feature: band selects %d indices but projection has %d rows", len(idx), pr)
	}

	return &Extractor{
		band:       band,
		stats:      stats,
		idx:        idx,
		projection: projection,
	}, nil
}

// ObsDim is the length of the vectors returned by Extract.
func (e *Extractor) ObsDim() int {
	_, c := e.projection.Dims()
	return c
}

func (e *Extractor) Band() BandParams { return e.band }

// Extract z-scores raw, keeps the band-limited indices and projects them
// onto the principal components.
func (e *Extractor) Extract(raw []float64) ([]float64, error) {
	if len(raw) != e.band.BufferSize {
		return nil, fmt.Errorf("feature: buffer has %d samples, expected %d", len(raw), e.band.BufferSize)
	}

	z := make([]float64, len(e.idx))
	for i, c := range e.idx {
		z[i] = (raw[c] - e.stats.Mean[c]) / e.stats.Stdev[c]
	}

	var out mat.VecDense
	out.MulVec(e.projection.T(), mat.NewVecDense(len(z), z))

	feature := make([]float64, out.Len())
	for i := range feature {
		feature[i] = out.AtVec(i)
	}
	if !mt.AllFinite(feature) {
		return nil, ErrNonFiniteFeature
	}
	return feature, nil
}

// ZScoreMasked z-scores every row of buffers with stats and keeps the
// columns selected by band.
func ZScoreMasked(buffers mat.Matrix, band BandParams, stats NormalizationStats) *mat.Dense {
	r, c := buffers.Dims()
	z := mat.NewDense(r, c, nil)
	z.Apply(func(_, j int, v float64) float64 {
		return (v - stats.Mean[j]) / stats.Stdev[j]
	}, buffers)
	return mt.SelectColumns(z, MaskedIndices(band))
}
