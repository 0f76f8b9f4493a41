package checksync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("checksync")

// Engines are created per session, so collectors live at package level.
var (
	mMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checksync_mutations_total", Help: "Optimistic mutations by operation and outcome",
	}, []string{"op", "result"})
	mMutationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checksync_mutation_duration_seconds",
		Help:    "Time from optimistic apply to settlement",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	mRemoteWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checksync_remote_writes_total", Help: "Physical write requests sent to the store",
	}, []string{"kind"})
	mFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checksync_coalescer_flushes_total", Help: "Coalescer flushes by outcome",
	}, []string{"result"})
	mCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checksync_coalescer_calls_total", Help: "Debounced folder assignments accepted",
	})
	mDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checksync_deliveries_total", Help: "Authoritative snapshots installed",
	}, []string{"source"})
	mStatusChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checksync_status_changes_total", Help: "Status transitions observed in deliveries",
	})
	mState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "checksync_lifecycle_state", Help: "1 for the current lifecycle state",
	}, []string{"state"})
)
