package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rental", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rental", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	ImageAnalyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental", Name: "image_analyses_total", Help: "Per-image vision analyses."},
		[]string{"outcome"}, // ok|failed
	)
	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental", Name: "moderation_evaluations_total", Help: "Listing evaluations by recommendation."},
		[]string{"recommendation"},
	)
	EvaluationScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rental", Name: "moderation_score",
			Help:    "Total score of listing evaluations.",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)
	Reviews = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental", Name: "moderation_reviews_total", Help: "Admin reviews by action."},
		[]string{"action"},
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rental", Name: "notifications_total", Help: "Moderation notifications."},
		[]string{"outcome"}, // sent|failed|skipped
	)
)

// Serve exposes reg on a dedicated listener when addr is set.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		ImageAnalyses, Evaluations, EvaluationScore, Reviews, Notifications,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveImageAnalysis(outcome string) {
	ImageAnalyses.WithLabelValues(outcome).Inc()
}

func ObserveEvaluation(recommendation string, score int) {
	Evaluations.WithLabelValues(recommendation).Inc()
	EvaluationScore.Observe(float64(score))
}

func ObserveReview(action string) {
	Reviews.WithLabelValues(action).Inc()
}

func ObserveNotification(outcome string) {
	Notifications.WithLabelValues(outcome).Inc()
}
