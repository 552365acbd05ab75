// Package metrics exposes job and dispatch counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"payflow_billing/internal/app"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped" // another instance held the job lock
)

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	outcomes    *prometheus.CounterVec
	overdue     prometheus.Counter
	generated   prometheus.Counter
	unsent      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payflow_job_runs_total",
			Help: "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payflow_job_duration_seconds",
			Help:    "Scheduled job latency.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		}, []string{"job"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payflow_notifications_total",
			Help: "Per-cycle dispatch outcomes by notification kind.",
		}, []string{"kind", "outcome"}),
		overdue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payflow_cycles_overdue_total",
			Help: "Cycles moved from PENDING to OVERDUE.",
		}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payflow_cycles_generated_total",
			Help: "PENDING cycles created by the refill job.",
		}),
		unsent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "payflow_notifications_unsent",
			Help: "Notification rows whose delivery was never confirmed.",
		}),
	}
	reg.MustRegister(m.jobRuns, m.jobDuration, m.outcomes, m.overdue, m.generated, m.unsent)
	return m
}

// ObserveJob records one job run.
func (m *Metrics) ObserveJob(job, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
	m.jobDuration.WithLabelValues(job).Observe(took.Seconds())
}

// ObserveReport counts every per-cycle result of a finished job.
func (m *Metrics) ObserveReport(r app.Report) {
	if m == nil {
		return
	}
	for _, res := range r.Results {
		m.outcomes.WithLabelValues(string(res.Kind), string(res.Outcome)).Inc()
		if res.Overdue {
			m.overdue.Inc()
		}
	}
}

func (m *Metrics) AddGenerated(n int) {
	if m == nil {
		return
	}
	m.generated.Add(float64(n))
}

func (m *Metrics) SetUnsent(n int) {
	if m == nil {
		return
	}
	m.unsent.Set(float64(n))
}

// Serve runs the /metrics endpoint until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *logrus.Entry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", addr).Info("Metrics endpoint listening.")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
