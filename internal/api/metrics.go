package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts action calls and their latency.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the action collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxon",
			Name:      "action_calls_total",
			Help:      "Action calls by action name and HTTP status.",
		}, []string{"action", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taxon",
			Name:      "action_duration_seconds",
			Help:      "Action latency by action name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
	reg.MustRegister(m.calls, m.duration)
	return m
}

// instrument records every call that reaches next. Names that are not
// registered actions are counted as "unknown".
func (h *Handler) instrument(next http.Handler) http.Handler {
	if h.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		name := chi.URLParam(r, "name")
		if _, ok := h.actions[name]; !ok {
			name = "unknown"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.calls.WithLabelValues(name, strconv.Itoa(status)).Inc()
		h.metrics.duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	})
}
