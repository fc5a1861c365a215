package feature

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	mt "github.com/LucaChot/neurostate/src/matrix"
)

// FitResult is everything the offline model fit needs from the feature
// stage, plus what the online Extractor replays.
type FitResult struct {
	Projection        *mat.Dense
	Stats             NormalizationStats
	Features          *mat.Dense
	ExplainedVariance []float64
}

/*
Fit learns the normalisation statistics and PCA projection from a training
matrix with one buffer per row.

  - z-score every column with its population mean/stdev
  - keep the band-limited columns
  - PCA for obsdim components
  - scale every component column to unit L1 norm
  - project the masked z-scores through the scaled components

The L1 scaling changes feature scale but not direction; Extract applies the
same projection so it must not be dropped.
*/
func Fit(train mat.Matrix, band BandParams, obsdim int) (*FitResult, error) {
	if err := band.Validate(); err != nil {
		return nil, err
	}
	n, c := train.Dims()
	if c != band.BufferSize {
		return nil, fmt.Errorf("feature: training rows have %d samples, expected %d", c, band.BufferSize)
	}

	stats := ComputeStats(train)
	if err := stats.Validate(band.BufferSize); err != nil {
		return nil, err
	}

	z := ZScoreMasked(train, band, stats)
	_, masked := z.Dims()
	if obsdim < 1 || obsdim > min(n, masked) {
		return nil, fmt.Errorf("feature: obsdim %d out of range [1,%d] for %d buffers and %d masked indices",
			obsdim, min(n, masked), n, masked)
	}

	components, sigma := mt.PrincipalAxes(mt.Centre(z), obsdim)
	mt.NormalizeColumnsL1(components)

	var features mat.Dense
	features.Mul(z, components)

	explained := make([]float64, obsdim)
	if n > 1 {
		for i := range explained {
			s := sigma.At(i, i)
			explained[i] = s * s / float64(n-1)
		}
	}

	log.WithFields(log.Fields{
		"buffers": n,
		"masked":  masked,
		"obsdim":  obsdim,
	}).Info("FEATURE: FIT PROJECTION")

	return &FitResult{
		Projection:        components,
		Stats:             stats,
		Features:          &features,
		ExplainedVariance: explained,
	}, nil
}
