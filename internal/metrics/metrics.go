package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	// Registry holds the ledger's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "investment_ledger",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "investment_ledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "investment_ledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	accrualTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "investment_ledger",
			Subsystem: "accrual",
			Name:      "ticks_total",
			Help:      "Total number of accrual ticks, by outcome.",
		},
		[]string{"outcome"},
	)

	accrualDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "investment_ledger",
			Subsystem: "accrual",
			Name:      "tick_duration_seconds",
			Help:      "Duration of accrual ticks.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	accrualCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "investment_ledger",
			Subsystem: "accrual",
			Name:      "cycles_total",
			Help:      "Accrual cycles processed, credited or forfeited.",
		},
		[]string{"result"},
	)

	accrualCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "investment_ledger",
			Subsystem: "accrual",
			Name:      "credited_total",
			Help:      "Sum of earnings credited by accrual.",
		},
	)

	accrualFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "investment_ledger",
			Subsystem: "accrual",
			Name:      "investment_failures_total",
			Help:      "Investments whose accrual failed within a tick.",
		},
	)

	maturedInvestments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "investment_ledger",
			Subsystem: "accrual",
			Name:      "matured_total",
			Help:      "Investments that reached maturity.",
		},
	)

	operationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "investment_ledger",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Rejected ledger operations, by error code.",
		},
		[]string{"code"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		accrualTicks,
		accrualDuration,
		accrualCycles,
		accrualCredited,
		accrualFailures,
		maturedInvestments,
		operationErrors,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler is a mux middleware recording request counts and latency
// per route template.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routeTemplate(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// TickResult summarises one accrual tick for RecordAccrualTick
type TickResult struct {
	Processed int
	Failed    int
	Cycles    int
	Forfeited int
	Matured   int
	Credited  decimal.Decimal
	TimedOut  bool
}

// RecordAccrualTick records the outcome of one accrual tick.
func RecordAccrualTick(result TickResult, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	outcome := "ok"
	switch {
	case result.TimedOut:
		outcome = "timeout"
	case result.Failed > 0:
		outcome = "partial"
	}
	accrualTicks.WithLabelValues(outcome).Inc()
	accrualDuration.Observe(duration.Seconds())
	accrualCycles.WithLabelValues("credited").Add(float64(result.Cycles))
	accrualCycles.WithLabelValues("forfeited").Add(float64(result.Forfeited))
	accrualFailures.Add(float64(result.Failed))
	maturedInvestments.Add(float64(result.Matured))
	if credited, _ := result.Credited.Float64(); credited > 0 {
		accrualCredited.Add(credited)
	}
}

// RecordOperationError counts a rejected operation by its API error code.
func RecordOperationError(code string) {
	if code == "" {
		code = "UNKNOWN"
	}
	operationErrors.WithLabelValues(code).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// routeTemplate keeps label cardinality bounded by using the matched mux
// template instead of the raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
