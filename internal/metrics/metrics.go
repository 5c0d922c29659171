package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "course",
			Subsystem: "media",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "course",
			Subsystem: "media",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 120},
		},
		[]string{"method", "endpoint"},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "course",
			Subsystem: "media",
			Name:      "uploads_total",
			Help:      "Stored uploads by source (upload context or chunked kind) and result",
		},
		[]string{"source", "status"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "course",
			Subsystem: "media",
			Name:      "upload_bytes_total",
			Help:      "Total bytes stored",
		},
		[]string{"provider"},
	)

	TypeFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "course",
			Subsystem: "media",
			Name:      "type_fallback_total",
			Help:      "Uploads accepted on the declared content type because sniffing was inconclusive",
		},
		[]string{"context"},
	)

	ChunkPartsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "course",
			Subsystem: "media",
			Name:      "chunk_parts_total",
			Help:      "Upload parts staged",
		},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "course",
			Subsystem: "media",
			Name:      "upload_sessions_total",
			Help:      "Upload session transitions",
		},
		[]string{"event"},
	)

	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "course",
			Subsystem: "media",
			Name:      "streams_total",
			Help:      "Stream requests by delivery mode",
		},
		[]string{"mode"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordUpload records a stored (or rejected) upload
func RecordUpload(source, provider, status string, bytes int64) {
	UploadsTotal.WithLabelValues(source, status).Inc()
	if status == "success" {
		UploadBytesTotal.WithLabelValues(provider).Add(float64(bytes))
	}
}

func RecordTypeFallback(context string) {
	TypeFallbacksTotal.WithLabelValues(context).Inc()
}

func RecordPart() {
	ChunkPartsTotal.Inc()
}

// RecordSession counts a session lifecycle event: init, complete, finalize, abort, reap.
func RecordSession(event string) {
	SessionsTotal.WithLabelValues(event).Inc()
}

// RecordStream counts a delivery by mode: partial, full, redirect_url, external.
func RecordStream(mode string) {
	StreamsTotal.WithLabelValues(mode).Inc()
}
