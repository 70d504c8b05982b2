package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upload outcomes recorded on invoice_uploads_total.
const (
	OutcomeAccepted    = "accepted"
	OutcomeDuplicate   = "duplicate"
	OutcomeIncomplete  = "incomplete"
	OutcomeMalformed   = "malformed"
	OutcomeUnreadable  = "unreadable"
	OutcomeUnavailable = "unavailable"
	OutcomeTooLarge    = "too_large"
	OutcomeFailed      = "failed"
)

type InvoiceMetrics struct {
	uploads            *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	qualityScore       prometheus.Histogram
	transitions        *prometheus.CounterVec
}

// New registers the invoice collectors on registerer. A nil registerer means
// prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer) *InvoiceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	uploads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_uploads_total",
			Help: "Invoice uploads by division and pipeline outcome.",
		},
		[]string{"division", "outcome"},
	)

	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoice_extraction_duration_seconds",
			Help:    "Time spent in the generative model call.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"result"}, // success | failed
	)

	qualityScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invoice_ocr_quality_score",
			Help:    "Self-reported extraction confidence of accepted invoices.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_transitions_total",
			Help: "Workflow transitions by target status.",
		},
		[]string{"status"},
	)

	registerer.MustRegister(uploads, extractionDuration, qualityScore, transitions)

	return &InvoiceMetrics{
		uploads:            uploads,
		extractionDuration: extractionDuration,
		qualityScore:       qualityScore,
		transitions:        transitions,
	}
}

func (m *InvoiceMetrics) IncUpload(division, outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(division, outcome).Inc()
}

func (m *InvoiceMetrics) ObserveExtraction(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failed"
	}
	m.extractionDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *InvoiceMetrics) ObserveQualityScore(score float64) {
	if m == nil {
		return
	}
	m.qualityScore.Observe(score)
}

func (m *InvoiceMetrics) IncTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}
