package services

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/llm"
)

// AI operations counted by the usage tracker.
const (
	OpEvaluateWriting    = "evaluate_writing"
	OpGenerateInsights   = "generate_insights"
	OpIntegrityNarrative = "integrity_narrative"
)

type UsageSnapshot struct {
	TotalRequests int64            `json:"total_requests"`
	Failed        int64            `json:"failed"`
	RateLimited   int64            `json:"rate_limited"`
	ByOperation   map[string]int64 `json:"by_operation"`
	LastRequestAt *time.Time       `json:"last_request_at,omitempty"`
	Since         time.Time        `json:"since"`
}

// UsageTracker counts AI calls. It is owned by the service manager and
// exported to Prometheus.
type UsageTracker struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	upstream *prometheus.CounterVec

	mu       sync.Mutex
	snapshot UsageSnapshot
	now      func() time.Time
}

func NewUsageTracker(reg prometheus.Registerer) *UsageTracker {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	t := &UsageTracker{
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hirescribe_ai_requests_total",
			Help: "AI requests by operation and outcome.",
		}, []string{"operation", "outcome"}),

		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hirescribe_ai_request_duration_seconds",
			Help:    "Latency of AI requests.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),

		upstream: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hirescribe_ai_upstream_calls_total",
			Help: "Calls that reached the AI provider, by outcome.",
		}, []string{"outcome"}),

		now: time.Now,
	}
	t.Init()
	return t
}

// Init starts a fresh counting window.
func (t *UsageTracker) Init() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snapshot = UsageSnapshot{
		ByOperation: map[string]int64{},
		Since:       t.now(),
	}
}

// Dispose clears the in-memory counters. Prometheus series are kept.
func (t *UsageTracker) Dispose() {
	t.Init()
}

// Record counts one AI operation.
func (t *UsageTracker) Record(operation string, elapsed time.Duration, err error) {
	outcome := outcomeOf(err)
	t.requests.WithLabelValues(operation, outcome).Inc()
	t.duration.WithLabelValues(operation).Observe(elapsed.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.snapshot.TotalRequests++
	t.snapshot.ByOperation[operation]++
	t.snapshot.LastRequestAt = &now
	switch outcome {
	case "rate_limited":
		t.snapshot.RateLimited++
		t.snapshot.Failed++
	case "error":
		t.snapshot.Failed++
	}
}

// RecordUpstream counts one provider call. It is the hook of llm.ReliableClient.
func (t *UsageTracker) RecordUpstream(err error) {
	t.upstream.WithLabelValues(outcomeOf(err)).Inc()
}

func (t *UsageTracker) Snapshot() UsageSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.snapshot
	s.ByOperation = make(map[string]int64, len(t.snapshot.ByOperation))
	for k, v := range t.snapshot.ByOperation {
		s.ByOperation[k] = v
	}
	if t.snapshot.LastRequestAt != nil {
		at := *t.snapshot.LastRequestAt
		s.LastRequestAt = &at
	}
	return s
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case llm.IsRateLimit(err):
		return "rate_limited"
	}
	return "error"
}
