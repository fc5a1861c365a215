package feature

import (
	"errors"
	"fmt"
)

// BandParams describes how FFT bin indices map to frequencies and which
// band of those frequencies is kept.
type BandParams struct {
	LowFreqBound  float64 `yaml:"low_freq_bound" msgpack:"low_freq_bound"`
	HighFreqBound float64 `yaml:"high_freq_bound" msgpack:"high_freq_bound"`
	FFTLowerBound float64 `yaml:"fft_lower_bound" msgpack:"fft_lower_bound"`
	FFTUpperBound float64 `yaml:"fft_upper_bound" msgpack:"fft_upper_bound"`
	BufferSize    int     `yaml:"buffer_size" msgpack:"buffer_size"`
}

// ScalingFactor converts an FFT vector index into a frequency.
func (b BandParams) ScalingFactor() float64 {
	return (b.FFTUpperBound - b.FFTLowerBound) / float64(b.BufferSize-1)
}

func (b BandParams) Validate() error {
	if b.BufferSize < 2 {
		return fmt.Errorf("feature: buffer size must be at least 2, got %d", b.BufferSize)
	}
	if b.FFTUpperBound <= b.FFTLowerBound {
		return errors.New("feature: fft upper bound must exceed fft lower bound")
	}
	if b.HighFreqBound < b.LowFreqBound {
		return errors.New("feature: high frequency bound is below low frequency bound")
	}
	return nil
}

/*
Mask selects index i iff low <= i*scale <= high. The index is scaled but
not offset by FFTLowerBound; models were fit with this mask and the
extractor must select the same columns.
*/
func Mask(b BandParams) []bool {
	scale := b.ScalingFactor()
	mask := make([]bool, b.BufferSize)
	for i := range mask {
		f := float64(i) * scale
		mask[i] = f >= b.LowFreqBound && f <= b.HighFreqBound
	}
	return mask
}

// MaskedIndices returns the indices selected by Mask in ascending order.
func MaskedIndices(b BandParams) []int {
	var idx []int
	for i, keep := range Mask(b) {
		if keep {
			idx = append(idx, i)
		}
	}
	return idx
}
