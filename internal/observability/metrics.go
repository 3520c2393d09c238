package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "torrentctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "torrentctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	decodeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "torrentctl",
			Subsystem: "decode",
			Name:      "total",
			Help:      "Bencode decodes by target and result.",
		},
		[]string{"target", "result"},
	)
	decodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "torrentctl",
			Subsystem: "decode",
			Name:      "duration_seconds",
			Help:      "Bencode decode duration in seconds.",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		},
		[]string{"target"},
	)
	decodeBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "torrentctl",
			Subsystem: "decode",
			Name:      "bytes_total",
			Help:      "Bencode input bytes consumed by target.",
		},
		[]string{"target"},
	)
	trackerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "torrentctl",
			Subsystem: "tracker",
			Name:      "requests_total",
			Help:      "Tracker requests by kind and outcome.",
		},
		[]string{"kind", "status", "success"},
	)
	trackerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "torrentctl",
			Subsystem: "tracker",
			Name:      "request_duration_seconds",
			Help:      "Tracker request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "status", "success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			decodeTotal, decodeDuration, decodeBytes,
			trackerRequests, trackerDuration,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// RecordDecode counts one decode of size input bytes into target.
func RecordDecode(target string, size int, duration time.Duration, err error) {
	RegisterMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	}
	decodeTotal.WithLabelValues(target, result).Inc()
	decodeDuration.WithLabelValues(target).Observe(duration.Seconds())
	decodeBytes.WithLabelValues(target).Add(float64(size))
}

// RecordTrackerRequest counts one tracker round trip. status is 0 when no
// HTTP response arrived.
func RecordTrackerRequest(kind string, status int, duration time.Duration, success bool) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	successLabel := strconv.FormatBool(success)
	trackerRequests.WithLabelValues(kind, statusLabel, successLabel).Inc()
	trackerDuration.WithLabelValues(kind, statusLabel, successLabel).Observe(duration.Seconds())
}
