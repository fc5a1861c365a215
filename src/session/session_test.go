package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/LucaChot/neurostate/src/artifact"
	"github.com/LucaChot/neurostate/src/feature"
	"github.com/LucaChot/neurostate/src/hmm"
	mt "github.com/LucaChot/neurostate/src/matrix"
	"github.com/LucaChot/neurostate/src/metrics"
)

func testBand() feature.BandParams {
	return feature.BandParams{
		LowFreqBound:  2,
		HighFreqBound: 9,
		FFTLowerBound: 0,
		FFTUpperBound: 15,
		BufferSize:    16,
	}
}

func testArtifact(t *testing.T, pi0 []float64, r int) *artifact.Artifact {
	t.Helper()
	k := len(pi0)
	family, err := hmm.FamilyFor(r)
	if err != nil {
		t.Fatal(err)
	}

	trans := mat.NewDense(k, k, nil)
	stay := make([]float64, k)
	means := mat.NewDense(k, 2, nil)
	covs := make([]*mat.SymDense, k)
	for i := range k {
		stay[i] = 0.6
		for j := range k {
			switch {
			case r > 1 && i == j:
			case r > 1:
				trans.Set(i, j, 1/float64(k-1))
			case i == j:
				trans.Set(i, j, 0.8)
			default:
				trans.Set(i, j, 0.2/float64(k-1))
			}
		}
		means.Set(i, 0, float64(2*i-k))
		means.Set(i, 1, float64(k-2*i))
		covs[i] = mat.NewSymDense(2, []float64{1, 0.2, 0.2, 1})
	}

	projection := mat.NewDense(8, 2, nil)
	for i := range 8 {
		projection.Set(i, 0, 1.0/8)
		projection.Set(i, 1, float64(i+1)/36)
	}

	stats := feature.NormalizationStats{
		Mean:  make([]float64, 16),
		Stdev: make([]float64, 16),
	}
	for i := range 16 {
		stats.Mean[i] = 0.1 * float64(i)
		stats.Stdev[i] = 1 + 0.05*float64(i)
	}

	a := &artifact.Artifact{
		Version:     artifact.Version,
		Family:      family,
		Pi0:         pi0,
		Transition:  trans,
		Means:       means,
		Covariances: covs,
		Projection:  projection,
		Stats:       stats,
	}
	if r > 1 {
		a.Stay = stay
	}
	if err := a.Compile(); err != nil {
		t.Fatal(err)
	}
	return a
}

func rawBuffers(n int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, 7))
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, 16)
		for j := range out[i] {
			out[i][j] = rng.NormFloat64() * 2
		}
	}
	return out
}

func extractAll(t *testing.T, a *artifact.Artifact, raw [][]float64) [][]float64 {
	t.Helper()
	ex, err := feature.NewExtractor(testBand(), a.Projection, a.Stats)
	if err != nil {
		t.Fatal(err)
	}
	out := make([][]float64, len(raw))
	for i, r := range raw {
		if out[i], err = ex.Extract(r); err != nil {
			t.Fatal(err)
		}
	}
	return out
}

func TestFirstDecodeIsInitialDistribution(t *testing.T) {
	a := testArtifact(t, []float64{5, 3, 2}, 1)
	s, err := New(testBand(), a)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Decode(rawBuffers(1, 1)[0])
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0.5, 0.3, 0.2}; !floats.EqualApprox(got, want, 1e-12) {
		t.Errorf("belief = %v, want %v", got, want)
	}
}

func TestDecodeMatchesModelOverWindow(t *testing.T) {
	for _, r := range []int{1, 3} {
		a := testArtifact(t, []float64{0.25, 0.25, 0.5}, r)
		s, err := New(testBand(), a, WithSequenceLength(5))
		if err != nil {
			t.Fatal(err)
		}

		raw := rawBuffers(9, 2)
		features := extractAll(t, a, raw)
		for i, buf := range raw {
			got, err := s.Decode(buf)
			if err != nil {
				t.Fatalf("r=%d decode %d: %v", r, i, err)
			}
			if len(got) != 3 {
				t.Fatalf("belief has %d entries", len(got))
			}
			if sum := floats.Sum(got); sum < 1-1e-8 || sum > 1+1e-8 {
				t.Errorf("r=%d decode %d: belief sums to %v", r, i, sum)
			}

			start := max(0, i+1-5)
			want, err := a.Model().CurrentBelief(mt.FromRows(features[start : i+1]))
			if err != nil {
				t.Fatal(err)
			}
			if !floats.EqualApprox(got, want, 1e-12) {
				t.Errorf("r=%d decode %d: belief = %v, want %v", r, i, got, want)
			}
		}
	}
}

func TestDecodeRejectsBadBuffer(t *testing.T) {
	s, err := New(testBand(), testArtifact(t, []float64{1, 1}, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Decode(make([]float64, 10)); err == nil {
		t.Error("short buffer decoded")
	}
	if err := s.Err(); err != nil {
		t.Errorf("bad input poisoned the session: %v", err)
	}
}

func TestNumericalInconsistencyPoisons(t *testing.T) {
	a := testArtifact(t, []float64{0.5, 0.5}, 1)
	s, err := New(testBand(), a)
	if err != nil {
		t.Fatal(err)
	}

	huge := make([]float64, 16)
	for i := range huge {
		huge[i] = 1e200
	}
	if _, err := s.Decode(huge); err != nil {
		t.Fatalf("first decode only reads pi0: %v", err)
	}

	numerical := metrics.DecodeErrors.WithLabelValues("numerical")
	before := testutil.ToFloat64(numerical)

	good := rawBuffers(1, 3)[0]
	_, err = s.Decode(good)
	var inconsistent *hmm.NumericalInconsistencyError
	if !errors.As(err, &inconsistent) {
		t.Fatalf("err = %v, want NumericalInconsistencyError", err)
	}

	if got := testutil.ToFloat64(numerical) - before; got != 1 {
		t.Errorf("numerical error counter moved by %v", got)
	}

	_, err = s.Decode(good)
	if !errors.Is(err, ErrPoisoned) || !errors.As(err, &inconsistent) {
		t.Errorf("err = %v, want ErrPoisoned wrapping the inconsistency", err)
	}

	if err := s.Swap(a); err != nil {
		t.Fatal(err)
	}
	got, err := s.Decode(good)
	if err != nil {
		t.Fatalf("decode after swap: %v", err)
	}
	if !floats.EqualApprox(got, []float64{0.5, 0.5}, 1e-12) {
		t.Errorf("history survived swap: belief = %v", got)
	}
}

func TestStaleFailureDoesNotPoisonReplacement(t *testing.T) {
	a := testArtifact(t, []float64{0.5, 0.5}, 1)
	s, err := New(testBand(), a)
	if err != nil {
		t.Fatal(err)
	}

	old := s.current.Load()
	if err := s.Swap(testArtifact(t, []float64{0.5, 0.5}, 2)); err != nil {
		t.Fatal(err)
	}
	failure := &hmm.NumericalInconsistencyError{Row: 1, Sum: 0.9}
	s.poison(old, failure)
	if err := s.Err(); err != nil {
		t.Fatalf("failure from replaced artifact poisoned the session: %v", err)
	}
	if _, err := s.Decode(rawBuffers(1, 3)[0]); err != nil {
		t.Fatalf("decode after stale failure: %v", err)
	}

	s.poison(s.current.Load(), failure)
	if err := s.Err(); !errors.Is(err, ErrPoisoned) {
		t.Errorf("err = %v, want ErrPoisoned", err)
	}
}

func TestReloadFromFile(t *testing.T) {
	first := testArtifact(t, []float64{0.5, 0.3, 0.2}, 1)
	s, err := New(testBand(), first, WithSequenceLength(4))
	if err != nil {
		t.Fatal(err)
	}
	for _, buf := range rawBuffers(3, 4) {
		if _, err := s.Decode(buf); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "next.msgpack")
	if err := artifact.Save(path, testArtifact(t, []float64{0.1, 0.1, 0.8}, 2)); err != nil {
		t.Fatal(err)
	}

	err = s.Reload(context.Background(), artifact.FileSource(path),
		artifact.Expectation{NumStates: 3, NumSubstates: 1, ObsDim: 2})
	var mismatch *artifact.ConfigMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want ConfigMismatchError", err)
	}
	if s.Artifact() != first {
		t.Fatal("failed reload replaced the artifact")
	}

	if err := s.Reload(context.Background(), artifact.FileSource(path),
		artifact.Expectation{NumStates: 3, NumSubstates: 2, ObsDim: 2}); err != nil {
		t.Fatal(err)
	}
	if s.Artifact().NumSubstates() != 2 {
		t.Errorf("substates = %d", s.Artifact().NumSubstates())
	}
	got, err := s.Decode(rawBuffers(1, 5)[0])
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(got, []float64{0.1, 0.1, 0.8}, 1e-12) {
		t.Errorf("belief after reload = %v, want new pi0", got)
	}
}

func TestWindowDropsStaleGeneration(t *testing.T) {
	b := &binding{generation: 2}
	obs := []observation{
		{generation: 1, feature: []float64{1}},
		{generation: 2, feature: []float64{2}},
		{generation: 2, feature: []float64{3}},
	}
	got := b.window(obs)
	if len(got) != 2 || got[0][0] != 2 || got[1][0] != 3 {
		t.Errorf("window = %v", got)
	}
}

type recordingSink struct {
	mu   sync.Mutex
	seqs []uint64
	ids  []string
}

func (r *recordingSink) Publish(session string, seq uint64, belief []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, session)
	r.seqs = append(r.seqs, seq)
}

func TestSinkReceivesBeliefs(t *testing.T) {
	sink := &recordingSink{}
	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	s, err := New(testBand(), testArtifact(t, []float64{1, 1, 1}, 1), WithSink(sink), WithID(id))
	if err != nil {
		t.Fatal(err)
	}
	for _, buf := range rawBuffers(3, 6) {
		if _, err := s.Decode(buf); err != nil {
			t.Fatal(err)
		}
	}
	if len(sink.seqs) != 3 || sink.seqs[0] != 1 || sink.seqs[2] != 3 {
		t.Errorf("seqs = %v", sink.seqs)
	}
	if sink.ids[0] != id.String() {
		t.Errorf("session id = %s", sink.ids[0])
	}
}

func TestConcurrentSessionsShareArtifact(t *testing.T) {
	a := testArtifact(t, []float64{0.2, 0.3, 0.5}, 2)
	raw := rawBuffers(30, 8)

	ref, err := New(testBand(), a, WithSequenceLength(6))
	if err != nil {
		t.Fatal(err)
	}
	want := make([][]float64, len(raw))
	for i, buf := range raw {
		if want[i], err = ref.Decode(buf); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := New(testBand(), a, WithSequenceLength(6))
			if err != nil {
				errs <- err
				return
			}
			for i, buf := range raw {
				got, err := s.Decode(buf)
				if err != nil {
					errs <- err
					return
				}
				if !floats.Equal(got, want[i]) {
					errs <- errors.New("concurrent session diverged")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	a := testArtifact(t, []float64{1, 1}, 1)
	if _, err := New(testBand(), a, WithSequenceLength(0)); err == nil {
		t.Error("zero sequence length accepted")
	}
	band := testBand()
	band.HighFreqBound = 12
	if _, err := New(band, a); err == nil {
		t.Error("band that disagrees with the projection accepted")
	}
	if _, err := New(testBand(), &artifact.Artifact{}); err == nil {
		t.Error("uncompiled artifact accepted")
	}
}
