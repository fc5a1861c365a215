// Package metrics holds the Prometheus collectors for the decoding path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecodeDuration is the wall time of one Session.Decode call
	DecodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "neurostate_decode_duration_seconds",
		Help:    "Time to extract, filter and publish one buffer",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~80ms
	})

	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurostate_decode_errors_total",
		Help: "Decode failures by kind",
	}, []string{"kind"}) // "input", "numerical" or "poisoned"

	WindowLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "neurostate_window_length",
		Help:    "Observations filtered per decode",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})

	Reloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurostate_artifact_reloads_total",
		Help: "Artifact swaps by result",
	}, []string{"result"}) // "ok" or "rejected"

	BeliefsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neurostate_beliefs_dropped_total",
		Help: "Beliefs not delivered to a subscriber that fell behind",
	})
)
