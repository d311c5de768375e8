package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons recorded on ItemsDropped.
const (
	ReasonNotCandidate = "not_candidate"
	ReasonDuplicate    = "duplicate"
	ReasonUnknownType  = "unknown_type"
)

// Metrics holds the pipeline and query counters.
type Metrics struct {
	ItemsReceived    *prometheus.CounterVec
	ItemsDropped     *prometheus.CounterVec
	ExtractionFailed prometheus.Counter
	DocumentsIndexed *prometheus.CounterVec
	IndexErrors      *prometheus.CounterVec
	SourceErrors     *prometheus.CounterVec
	NotifyErrors     prometheus.Counter
	Answers          *prometheus.CounterVec
	AnswerDuration   prometheus.Histogram
	SeenKeys         prometheus.GaugeFunc
}

// New registers all collectors on reg. seenLen feeds the seen-set size gauge
// and may be nil.
func New(reg prometheus.Registerer, seenLen func() int) *Metrics {
	m := &Metrics{
		ItemsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disasterwatch",
			Name:      "items_received_total",
			Help:      "Raw items emitted by source connectors",
		}, []string{"source"}),
		ItemsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disasterwatch",
			Name:      "items_dropped_total",
			Help:      "Raw items not forwarded to the index",
		}, []string{"source", "reason"}),
		ExtractionFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disasterwatch",
			Name:      "extraction_failures_total",
			Help:      "Extraction calls that fell back to the unknown record",
		}),
		DocumentsIndexed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disasterwatch",
			Name:      "documents_indexed_total",
			Help:      "Narrative documents handed to the index",
		}, []string{"source", "disaster_type"}),
		IndexErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disasterwatch",
			Name:      "index_errors_total",
			Help:      "Failed index upserts",
		}, []string{"source"}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disasterwatch",
			Name:      "source_errors_total",
			Help:      "Failed polls and skipped articles",
		}, []string{"source", "kind"}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disasterwatch",
			Name:      "notify_errors_total",
			Help:      "Failed alert publications",
		}),
		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disasterwatch",
			Name:      "answers_total",
			Help:      "Questions answered by outcome",
		}, []string{"outcome"}),
		AnswerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "disasterwatch",
			Name:      "answer_duration_seconds",
			Help:      "Time spent retrieving and generating an answer",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if seenLen == nil {
		seenLen = func() int { return 0 }
	}
	m.SeenKeys = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "disasterwatch",
		Name:      "seen_keys",
		Help:      "Source keys admitted during this process run",
	}, func() float64 { return float64(seenLen()) })

	reg.MustRegister(
		m.ItemsReceived, m.ItemsDropped, m.ExtractionFailed, m.DocumentsIndexed,
		m.IndexErrors, m.SourceErrors, m.NotifyErrors, m.Answers, m.AnswerDuration, m.SeenKeys,
	)
	return m
}

// NewNop returns metrics registered on a private registry, for tests and tools.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry(), nil)
}
