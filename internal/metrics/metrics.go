package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	replies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medbot_replies_total",
		Help: "Replies sent, by kind (greeting, clarify, empty, not_ready, answer, fallback, error)",
	}, []string{"kind"})

	answerSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medbot_answer_seconds",
		Help:    "Time spent retrieving and generating an answer",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"outcome"})

	upstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "medbot_upstream_errors_total",
		Help: "Failed calls to the vector index or the model, by operation",
	}, []string{"op"})

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "medbot_answer_cache_hits_total",
		Help: "Answers served from the cache",
	})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(replies, answerSeconds, upstreamErrors, cacheHits)
	})
}

// IncReply counts a reply of the given kind.
func IncReply(kind string) {
	ensureRegistered()
	replies.WithLabelValues(kind).Inc()
}

// ObserveAnswer records how long an answer took.
func ObserveAnswer(outcome string, start time.Time) {
	ensureRegistered()
	answerSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// IncUpstreamError counts a failed retrieval or generation call.
func IncUpstreamError(op string) {
	ensureRegistered()
	upstreamErrors.WithLabelValues(op).Inc()
}

func IncCacheHit() {
	ensureRegistered()
	cacheHits.Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	ensureRegistered()
	return promhttp.Handler()
}
