package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cylroute/internal/opt"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlansTotal counts planning requests by outcome (ok, invalid, error)
	PlansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planner_plans_total", Help: "Plans computed by outcome."},
		[]string{"status"},
	)
	PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "planner_plan_duration_seconds", Help: "Time spent planning one map.", Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10}},
	)
	RefinePasses = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "planner_refine_passes", Help: "2-opt passes per plan.", Buckets: prometheus.LinearBuckets(1, 1, 10)},
	)
	RouteCalls = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "planner_route_calls", Help: "Router invocations per plan.", Buckets: prometheus.ExponentialBuckets(10, 4, 8)},
	)
	// TuneTrials counts finished tuning trials by status (ok, failed)
	TuneTrials = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "planner_tune_trials_total", Help: "Tuning trials by status."},
		[]string{"status"},
	)
	TuneRunsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "planner_tune_runs_active", Help: "Tuning runs in progress."},
	)
)

// ObservePlan records the counters of a successful plan.
func ObservePlan(st opt.Stats) {
	PlansTotal.WithLabelValues("ok").Inc()
	PlanDuration.Observe(st.TotalDur.Seconds())
	RefinePasses.Observe(float64(st.RefinePasses))
	RouteCalls.Observe(float64(st.RouteCalls))
}

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(PlansTotal, PlanDuration, RefinePasses, RouteCalls)
		Registry.MustRegister(TuneTrials, TuneRunsActive)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
