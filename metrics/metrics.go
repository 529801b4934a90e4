// Package metrics owns the Prometheus collectors exported on /metrics:
// HTTP request counters and latencies plus account flow outcomes.
package metrics

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tech-arch1tect/backyard/apierror"
)

const namespace = "backyard"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Account flow label values.
const (
	FlowSignUp        = "signup"
	FlowVerifyOTP     = "verify_otp"
	FlowResendOTP     = "resend_otp"
	FlowLogin         = "login"
	FlowLoginOTP      = "login_otp_challenge"
	FlowLogout        = "logout"
	FlowRefresh       = "refresh"
	FlowPasswordReset = "password_reset"
	FlowResetConfirm  = "password_reset_confirm"
	FlowProfile       = "profile_update"
)

// Metrics is safe to use as a nil pointer; every recording method is then a
// no-op.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	accountFlows    *prometheus.CounterVec
	sessionsIssued  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		accountFlows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_flows_total",
				Help:      "Total number of account flow attempts, by flow and result.",
			},
			[]string{"flow", "result"},
		),
		sessionsIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_issued_total",
				Help:      "Total number of access sessions minted.",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.accountFlows,
		m.sessionsIssued,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WatchDB exports connection pool statistics for db.
func (m *Metrics) WatchDB(db *sql.DB, name string) error {
	return m.registry.Register(collectors.NewDBStatsCollector(db, name))
}

// Flow records the outcome of an account flow.
func (m *Metrics) Flow(flow string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.accountFlows.WithLabelValues(flow, result).Inc()
}

func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.sessionsIssued.Inc()
}

// Middleware counts and times every request by its route pattern, so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware(skipPaths ...string) echo.MiddlewareFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil || skip[c.Request().URL.Path] {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else if apiErr, ok := apierror.As(err); ok {
					status = apiErr.Status
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
