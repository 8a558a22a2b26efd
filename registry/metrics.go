package registry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trufnetwork/wageproof/canonical"
)

// Outcome labels recorded for registry calls.
const (
	OutcomeConsumed = "consumed"
	OutcomeRejected = "rejected"
	OutcomeUsed     = "used"
	OutcomeUnused   = "unused"
	OutcomeError    = "error"
)

// Recorder receives registry call outcomes. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordConsume(ctx context.Context, outcome string, duration time.Duration)
	RecordLookup(ctx context.Context, outcome string)
}

// NoOpRecorder discards everything.
type NoOpRecorder struct{}

func (NoOpRecorder) RecordConsume(context.Context, string, time.Duration) {}
func (NoOpRecorder) RecordLookup(context.Context, string)                 {}

// PrometheusRecorder exports registry outcomes as prometheus metrics.
type PrometheusRecorder struct {
	consumeTotal    *prometheus.CounterVec
	consumeDuration prometheus.Histogram
	lookupTotal     *prometheus.CounterVec
}

// NewPrometheusRecorder registers the registry metrics with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		consumeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wageproof_nullifier_consume_total",
			Help: "Nullifier consumption attempts by result",
		}, []string{"result"}),
		consumeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wageproof_nullifier_consume_duration_seconds",
			Help:    "Latency of nullifier consumption attempts",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		lookupTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wageproof_nullifier_lookup_total",
			Help: "Nullifier lookups by result",
		}, []string{"result"}),
	}
}

func (p *PrometheusRecorder) RecordConsume(_ context.Context, outcome string, duration time.Duration) {
	p.consumeTotal.WithLabelValues(outcome).Inc()
	p.consumeDuration.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) RecordLookup(_ context.Context, outcome string) {
	p.lookupTotal.WithLabelValues(outcome).Inc()
}

// Instrumented wraps a Registry and reports every call to a Recorder. It adds
// no synchronization; linearizability is that of the wrapped registry.
type Instrumented struct {
	next     Registry
	recorder Recorder
}

// NewInstrumented wraps next. A nil recorder disables recording.
func NewInstrumented(next Registry, recorder Recorder) *Instrumented {
	if recorder == nil {
		recorder = NoOpRecorder{}
	}
	return &Instrumented{next: next, recorder: recorder}
}

func (i *Instrumented) TryConsume(ctx context.Context, nullifier canonical.Digest) (bool, error) {
	start := time.Now()
	ok, err := i.next.TryConsume(ctx, nullifier)
	outcome := OutcomeRejected
	switch {
	case err != nil:
		outcome = OutcomeError
	case ok:
		outcome = OutcomeConsumed
	}
	i.recorder.RecordConsume(ctx, outcome, time.Since(start))
	return ok, err
}

func (i *Instrumented) IsUsed(ctx context.Context, nullifier canonical.Digest) (bool, error) {
	used, err := i.next.IsUsed(ctx, nullifier)
	i.recorder.RecordLookup(ctx, lookupOutcome(used, err))
	return used, err
}

func (i *Instrumented) ConsumedAt(ctx context.Context, nullifier canonical.Digest) (time.Time, bool, error) {
	at, used, err := i.next.ConsumedAt(ctx, nullifier)
	i.recorder.RecordLookup(ctx, lookupOutcome(used, err))
	return at, used, err
}

func lookupOutcome(used bool, err error) string {
	switch {
	case err != nil:
		return OutcomeError
	case used:
		return OutcomeUsed
	default:
		return OutcomeUnused
	}
}
