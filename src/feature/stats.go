package feature

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MinStdev is the smallest per-channel standard deviation accepted for
// z-scoring. Anything at or below it would blow features up to Inf/NaN.
const MinStdev = 1e-10

// NormalizationStats holds the per-channel training mean and population
// standard deviation.
type NormalizationStats struct {
	Mean  []float64 `msgpack:"mean"`
	Stdev []float64 `msgpack:"stdev"`
}

// DegenerateStatisticsError reports a channel whose standard deviation is
// too small (or not finite) to z-score against.
type DegenerateStatisticsError struct {
	Channel int
	Stdev   float64
}

func (e *DegenerateStatisticsError) Error() string {
	return fmt.Sprintf("feature: degenerate statistics: channel %d has stdev %g", e.Channel, e.Stdev)
}

// Validate checks that the stats cover size channels and that no stdev is
// degenerate.
func (s NormalizationStats) Validate(size int) error {
	if len(s.Mean) != size || len(s.Stdev) != size {
		return fmt.Errorf("feature: stats cover %d/%d channels, buffer size is %d",
			len(s.Mean), len(s.Stdev), size)
	}
	for i, sd := range s.Stdev {
		if !(sd > MinStdev) || math.IsInf(sd, 0) {
			return &DegenerateStatisticsError{Channel: i, Stdev: sd}
		}
		if math.IsNaN(s.Mean[i]) || math.IsInf(s.Mean[i], 0) {
			return fmt.Errorf("feature: channel %d has non-finite mean %g", i, s.Mean[i])
		}
	}
	return nil
}

// ComputeStats returns the column means and population (ddof=0) standard
// deviations of train.
func ComputeStats(train mat.Matrix) NormalizationStats {
	r, c := train.Dims()
	s := NormalizationStats{
		Mean:  make([]float64, c),
		Stdev: make([]float64, c),
	}
	col := make([]float64, r)
	for j := range c {
		mat.Col(col, j, train)
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Mean[j] = mean
		s.Stdev[j] = math.Sqrt(variance)
	}
	return s
}
