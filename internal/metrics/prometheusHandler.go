package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var uploadedDocumentsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "uploaded_documents_total",
	Help: "Number of documents accepted by the upload endpoint",
})

var answerCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "answer_cache_lookups_total",
	Help: "Semantic answer cache lookups labelled by outcome",
}, []string{"outcome"})

// HttpStatusRecorder remembers the status code written through it so
// the request counter can label responses correctly.
type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementUploadedDocuments() {
	uploadedDocumentsTotal.Inc()
}

func RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	answerCacheHitsTotal.WithLabelValues(outcome).Inc()
}

var fillDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "form_fill_duration_seconds",
	Help:    "Total time spent filling a form end to end.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
}, []string{"form_type"})

var stepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pipeline_step_latency_seconds",
	Help:    "Latency of individual form-fill pipeline steps.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"step"})

func CaptureStepDuration(label string, timeElapsed time.Duration) {
	stepLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureFillDuration(formType string, timeElapsed time.Duration) {
	fillDuration.WithLabelValues(formType).Observe(timeElapsed.Seconds())
}
