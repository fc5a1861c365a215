package publish

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/LucaChot/neurostate/src/metrics"
)

type subscriber struct {
	session string
	ch      chan *Belief
}

/*
Broadcaster fans decoded beliefs out to gRPC subscribers. Publish never
blocks: a subscriber whose buffer is full misses the belief.
*/
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[uint64]*subscriber
	next    uint64
	server  *grpc.Server
	stopped bool
	dropped atomic.Uint64

	buffer     int
	serverOpts []grpc.ServerOption
	now        func() time.Time
}

type broadcastOptions struct {
	buffer     int
	serverOpts []grpc.ServerOption
	now        func() time.Time
}

// Option configures a Broadcaster.
type Option func(*broadcastOptions)

// WithBuffer sets how many beliefs may queue per subscriber. Default is 64.
func WithBuffer(n int) Option {
	return func(o *broadcastOptions) {
		o.buffer = n
	}
}

func WithServerOption(opt grpc.ServerOption) Option {
	return func(o *broadcastOptions) {
		o.serverOpts = append(o.serverOpts, opt)
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *broadcastOptions) {
		o.now = now
	}
}

var defaultBroadcastOptions = broadcastOptions{
	buffer: 64,
	now:    time.Now,
}

func NewBroadcaster(opts ...Option) *Broadcaster {
	options := defaultBroadcastOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.buffer < 1 {
		options.buffer = 1
	}
	return &Broadcaster{
		subs:       make(map[uint64]*subscriber),
		buffer:     options.buffer,
		serverOpts: options.serverOpts,
		now:        options.now,
	}
}

// Publish hands a belief to every matching subscriber without waiting.
func (b *Broadcaster) Publish(session string, seq uint64, probs []float64) {
	msg := &Belief{
		Session: session,
		Seq:     seq,
		Time:    b.now(),
		Probs:   append([]float64(nil), probs...),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.session != "" && sub.session != session {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.dropped.Add(1)
			metrics.BeliefsDropped.Inc()
		}
	}
}

// Dropped counts beliefs not delivered because a subscriber was behind.
func (b *Broadcaster) Dropped() uint64 { return b.dropped.Load() }

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) add(session string) (uint64, <-chan *Belief) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	sub := &subscriber{session: session, ch: make(chan *Belief, b.buffer)}
	b.subs[id] = sub
	return id, sub.ch
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Subscribe streams beliefs to one client until it goes away.
func (b *Broadcaster) Subscribe(req *SubscribeRequest, stream grpc.ServerStream) error {
	id, ch := b.add(req.Session)
	defer b.remove(id)

	log.WithFields(log.Fields{
		"subscriber": id,
		"session":    req.Session,
	}).Info("PUBLISH: SUBSCRIBER JOINED")

	for {
		select {
		case <-stream.Context().Done():
			log.WithFields(log.Fields{
				"subscriber": id,
			}).Info("PUBLISH: SUBSCRIBER LEFT")
			return nil
		case msg := <-ch:
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// Serve registers the belief service and blocks serving lis.
func (b *Broadcaster) Serve(lis net.Listener) error {
	b.mu.Lock()
	if b.server != nil || b.stopped {
		b.mu.Unlock()
		return errors.New("publish: server already started or stopped")
	}
	s := grpc.NewServer(b.serverOpts...)
	s.RegisterService(&serviceDesc, b)
	b.server = s
	b.mu.Unlock()

	log.WithFields(log.Fields{
		"ADDRESS": lis.Addr(),
	}).Info("PUBLISH: STARTED BELIEF SERVER")

	return s.Serve(lis)
}

func (b *Broadcaster) Stop() {
	b.mu.Lock()
	s := b.server
	b.stopped = true
	b.mu.Unlock()
	if s != nil {
		s.Stop()
	}
}
