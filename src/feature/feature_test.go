package feature

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func testBand() BandParams {
	return BandParams{
		LowFreqBound:  2,
		HighFreqBound: 12,
		FFTLowerBound: 0,
		FFTUpperBound: 19,
		BufferSize:    20,
	}
}

func randomTraining(n, size int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	data := make([]float64, n*size)
	for i := range data {
		data[i] = rng.NormFloat64()*float64(1+i%size) + float64(i%size)
	}
	return mat.NewDense(n, size, data)
}

func TestMaskExample(t *testing.T) {
	band := BandParams{
		LowFreqBound:  10,
		HighFreqBound: 20,
		FFTLowerBound: 0,
		FFTUpperBound: 50,
		BufferSize:    100,
	}
	if got := band.ScalingFactor(); math.Abs(got-50.0/99.0) > 1e-15 {
		t.Fatalf("scaling factor = %v", got)
	}

	idx := MaskedIndices(band)
	if len(idx) != 20 {
		t.Fatalf("selected %d indices, want 20: %v", len(idx), idx)
	}
	for i, v := range idx {
		if v != 20+i {
			t.Fatalf("idx[%d] = %d, want %d", i, v, 20+i)
		}
	}

	mask := Mask(band)
	if mask[19] || !mask[20] || !mask[39] || mask[40] {
		t.Errorf("mask edges wrong: 19=%v 20=%v 39=%v 40=%v", mask[19], mask[20], mask[39], mask[40])
	}
}

func TestBandValidate(t *testing.T) {
	tests := []struct {
		name string
		band BandParams
	}{
		{"small buffer", BandParams{FFTUpperBound: 1, BufferSize: 1}},
		{"inverted fft", BandParams{FFTLowerBound: 5, FFTUpperBound: 1, BufferSize: 10}},
		{"inverted band", BandParams{LowFreqBound: 5, HighFreqBound: 1, FFTUpperBound: 10, BufferSize: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.band.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFitProjectionIsL1Normalized(t *testing.T) {
	res, err := Fit(randomTraining(60, 20, 7), testBand(), 3)
	if err != nil {
		t.Fatal(err)
	}

	r, c := res.Projection.Dims()
	if r != 11 || c != 3 {
		t.Fatalf("projection dims = %dx%d, want 11x3", r, c)
	}
	col := make([]float64, r)
	for j := range c {
		mat.Col(col, j, res.Projection)
		if n := floats.Norm(col, 1); math.Abs(n-1) > 1e-12 {
			t.Errorf("component %d L1 norm = %v", j, n)
		}
	}
	if fr, fc := res.Features.Dims(); fr != 60 || fc != 3 {
		t.Errorf("features dims = %dx%d, want 60x3", fr, fc)
	}
	if res.ExplainedVariance[0] < res.ExplainedVariance[2] {
		t.Errorf("explained variance not descending: %v", res.ExplainedVariance)
	}
}

func TestExtractReplaysFit(t *testing.T) {
	train := randomTraining(40, 20, 11)
	res, err := Fit(train, testBand(), 2)
	if err != nil {
		t.Fatal(err)
	}
	ex, err := NewExtractor(testBand(), res.Projection, res.Stats)
	if err != nil {
		t.Fatal(err)
	}

	for i := range 40 {
		got, err := ex.Extract(train.RawRowView(i))
		if err != nil {
			t.Fatal(err)
		}
		if !floats.EqualApprox(got, res.Features.RawRowView(i), 1e-10) {
			t.Fatalf("row %d: extract = %v, fit = %v", i, got, res.Features.RawRowView(i))
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	train := randomTraining(30, 20, 3)
	res, err := Fit(train, testBand(), 2)
	if err != nil {
		t.Fatal(err)
	}
	ex, err := NewExtractor(testBand(), res.Projection, res.Stats)
	if err != nil {
		t.Fatal(err)
	}

	buf := train.RawRowView(5)
	a, err := ex.Extract(buf)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ex.Extract(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(a, b) {
		t.Errorf("extract not deterministic: %v != %v", a, b)
	}
	if ex.ObsDim() != 2 {
		t.Errorf("obsdim = %d", ex.ObsDim())
	}
}

func TestExtractWrongLength(t *testing.T) {
	res, err := Fit(randomTraining(30, 20, 5), testBand(), 2)
	if err != nil {
		t.Fatal(err)
	}
	ex, err := NewExtractor(testBand(), res.Projection, res.Stats)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ex.Extract(make([]float64, 19)); err == nil {
		t.Error("expected length error")
	}
	buf := make([]float64, 20)
	buf[4] = math.NaN()
	if _, err := ex.Extract(buf); !errors.Is(err, ErrNonFiniteFeature) {
		t.Errorf("err = %v, want ErrNonFiniteFeature", err)
	}
}

func TestDegenerateStatistics(t *testing.T) {
	band := testBand()
	stats := NormalizationStats{
		Mean:  make([]float64, 20),
		Stdev: make([]float64, 20),
	}
	for i := range stats.Stdev {
		stats.Stdev[i] = 1
	}
	stats.Stdev[7] = 1e-14

	_, err := NewExtractor(band, mat.NewDense(11, 2, nil), stats)
	var degenerate *DegenerateStatisticsError
	if !errors.As(err, &degenerate) {
		t.Fatalf("err = %v, want DegenerateStatisticsError", err)
	}
	if degenerate.Channel != 7 {
		t.Errorf("channel = %d, want 7", degenerate.Channel)
	}

	train := randomTraining(30, 20, 9)
	for i := range 30 {
		train.Set(i, 3, 4.2)
	}
	if _, err := Fit(train, band, 2); !errors.As(err, &degenerate) {
		t.Errorf("fit err = %v, want DegenerateStatisticsError", err)
	}
}

func TestNewExtractorProjectionMismatch(t *testing.T) {
	res, err := Fit(randomTraining(30, 20, 13), testBand(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewExtractor(testBand(), mat.NewDense(10, 2, nil), res.Stats); err == nil {
		t.Error("expected projection row mismatch")
	}
	if _, err := NewExtractor(testBand(), nil, res.Stats); err == nil {
		t.Error("expected nil projection error")
	}
}

func TestComputeStatsPopulation(t *testing.T) {
	s := ComputeStats(mat.NewDense(4, 1, []float64{1, 2, 3, 4}))
	if s.Mean[0] != 2.5 {
		t.Errorf("mean = %v", s.Mean[0])
	}
	if want := math.Sqrt(1.25); math.Abs(s.Stdev[0]-want) > 1e-15 {
		t.Errorf("stdev = %v, want %v", s.Stdev[0], want)
	}
}
