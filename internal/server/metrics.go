package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/document-locker/locker/internal/logging"
)

// metrics are registered on a per-server registry so several servers can
// live in one process.
type metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	uploads        *prometheus.CounterVec
	downloads      *prometheus.CounterVec
	bytesUploaded  prometheus.Counter
	bytesDownload  prometheus.Counter
	authAttempts   *prometheus.CounterVec
	registeredUser prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "locker_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_uploads_total",
			Help: "Uploads by result",
		}, []string{"status"}),
		downloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_downloads_total",
			Help: "Downloads by result",
		}, []string{"status"}),
		bytesUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "locker_bytes_uploaded_total",
			Help: "Bytes received on /upload",
		}),
		bytesDownload: f.NewCounter(prometheus.CounterOpts{
			Name: "locker_bytes_downloaded_total",
			Help: "Bytes served on /download",
		}),
		authAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "locker_auth_attempts_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		registeredUser: f.NewGauge(prometheus.GaugeOpts{
			Name: "locker_registered_users",
			Help: "Accounts created through /register",
		}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// instrument records metrics and logs one line per request. The route
// label is the chi pattern so keys do not blow up cardinality.
func (m *metrics) instrument(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)

			m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

			ev := logger.Info()
			if status >= 500 {
				ev = logger.Error()
			} else if status >= 400 {
				ev = logger.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", elapsed).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
