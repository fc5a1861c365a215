package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/LucaChot/neurostate/src/artifact"
	"github.com/LucaChot/neurostate/src/feature"
	"github.com/LucaChot/neurostate/src/history"
	"github.com/LucaChot/neurostate/src/hmm"
	mt "github.com/LucaChot/neurostate/src/matrix"
	"github.com/LucaChot/neurostate/src/metrics"
)

// ErrPoisoned is returned by Decode after a numerical inconsistency until
// the session is reloaded.
var ErrPoisoned = errors.New("session: poisoned")

// Sink receives every belief a session produces. Publish must not block.
type Sink interface {
	Publish(session string, seq uint64, belief []float64)
}

type binding struct {
	artifact   *artifact.Artifact
	extractor  *feature.Extractor
	generation uint64
}

type observation struct {
	generation uint64
	feature    []float64
}

type Session struct {
	id      uuid.UUID
	band    feature.BandParams
	history *history.Ring[observation]
	current atomic.Pointer[binding]
	seq     atomic.Uint64
	sink    Sink

	mu       sync.Mutex
	poisoned error
}

type sessionOptions struct {
	id             uuid.UUID
	sequenceLength int
	sink           Sink
}

// Option configures a Session.
type Option func(*sessionOptions)

// WithSequenceLength sets how many past observations are filtered on every
// call. Default is 20.
func WithSequenceLength(n int) Option {
	return func(o *sessionOptions) {
		o.sequenceLength = n
	}
}

func WithSink(sink Sink) Option {
	return func(o *sessionOptions) {
		o.sink = sink
	}
}

// WithID fixes the session id instead of generating a random one.
func WithID(id uuid.UUID) Option {
	return func(o *sessionOptions) {
		o.id = id
	}
}

var defaultSessionOptions = sessionOptions{
	sequenceLength: 20,
}

// New binds a compiled artifact to a fresh history.
func New(band feature.BandParams, a *artifact.Artifact, opts ...Option) (*Session, error) {
	options := defaultSessionOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.sequenceLength < 1 {
		return nil, fmt.Errorf("session: sequence length must be positive, got %d", options.sequenceLength)
	}
	if options.id == uuid.Nil {
		options.id = uuid.New()
	}

	s := &Session{
		id:      options.id,
		band:    band,
		history: history.New[observation](options.sequenceLength),
		sink:    options.sink,
	}
	b, err := s.bind(a, 0)
	if err != nil {
		return nil, err
	}
	s.current.Store(b)

	log.WithFields(log.Fields{
		"session":        s.id,
		"sequenceLength": options.sequenceLength,
		"model":          a.Describe(),
	}).Info("SESSION: STARTED")

	return s, nil
}

func (s *Session) bind(a *artifact.Artifact, generation uint64) (*binding, error) {
	if a == nil || a.Model() == nil {
		return nil, errors.New("session: artifact is not compiled")
	}
	ex, err := feature.NewExtractor(s.band, a.Projection, a.Stats)
	if err != nil {
		return nil, err
	}
	return &binding{artifact: a, extractor: ex, generation: generation}, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

// Artifact is the artifact currently used by Decode.
func (s *Session) Artifact() *artifact.Artifact { return s.current.Load().artifact }

// Err reports whether the session has been poisoned.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPoisoned, s.poisoned)
}

// poison records err unless b has already been swapped out; a decode that
// started on an older artifact must not poison its replacement.
func (s *Session) poison(b *binding, err error) {
	s.mu.Lock()
	if s.current.Load() != b {
		s.mu.Unlock()
		log.WithFields(log.Fields{
			"session":    s.id,
			"generation": b.generation,
			"error":      err,
		}).Warn("SESSION: STALE FAILURE IGNORED")
		return
	}
	s.poisoned = err
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"session": s.id,
		"error":   err,
	}).Error("SESSION: POISONED")
}

/*
Decode extracts a feature from raw, appends it to the history and returns the
macro-state belief for the newest step of the window. A numerical
inconsistency poisons the session.
*/
func (s *Session) Decode(raw []float64) ([]float64, error) {
	start := time.Now()
	if err := s.Err(); err != nil {
		metrics.DecodeErrors.WithLabelValues("poisoned").Inc()
		return nil, err
	}

	b := s.current.Load()
	x, err := b.extractor.Extract(raw)
	if err != nil {
		metrics.DecodeErrors.WithLabelValues("input").Inc()
		return nil, err
	}
	s.history.Push(observation{generation: b.generation, feature: x})

	window := b.window(s.history.Snapshot())
	belief, err := b.artifact.Model().CurrentBelief(mt.FromRows(window))
	if err != nil {
		var inconsistent *hmm.NumericalInconsistencyError
		if errors.As(err, &inconsistent) {
			metrics.DecodeErrors.WithLabelValues("numerical").Inc()
			s.poison(b, err)
		}
		return nil, err
	}

	seq := s.seq.Add(1)
	log.WithFields(log.Fields{
		"session": s.id,
		"seq":     seq,
		"window":  len(window),
	}).Debug("SESSION: DECODED")

	if s.sink != nil {
		s.sink.Publish(s.id.String(), seq, belief)
	}
	metrics.WindowLength.Observe(float64(len(window)))
	metrics.DecodeDuration.Observe(time.Since(start).Seconds())
	return belief, nil
}

// window keeps the trailing observations extracted under this binding.
func (b *binding) window(obs []observation) [][]float64 {
	start := len(obs)
	for start > 0 && obs[start-1].generation == b.generation {
		start--
	}
	rows := make([][]float64, 0, len(obs)-start)
	for _, o := range obs[start:] {
		rows = append(rows, o.feature)
	}
	return rows
}

// Reload loads an artifact from src and swaps it in.
func (s *Session) Reload(ctx context.Context, src artifact.Source, expect artifact.Expectation) error {
	a, err := artifact.Load(ctx, src, expect)
	if err == nil {
		err = s.Swap(a)
	}
	if err != nil {
		metrics.Reloads.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.Reloads.WithLabelValues("ok").Inc()
	return nil
}

/*
Swap installs a compiled artifact. The history is cleared, since features
projected by the previous artifact cannot be filtered by the new one, and a
poisoned session becomes usable again.
*/
func (s *Session) Swap(a *artifact.Artifact) error {
	s.mu.Lock()
	next, err := s.bind(a, s.current.Load().generation+1)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.current.Store(next)
	s.history.Reset()
	s.poisoned = nil
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"session":    s.id,
		"generation": next.generation,
		"model":      a.Describe(),
	}).Info("SESSION: RELOADED")
	return nil
}
