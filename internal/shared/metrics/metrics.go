package metrics

import (
	"database/sql"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "billrun_"

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Worker message outcomes.
const (
	MessageReceived      = "received"
	MessageCompleted     = "completed"
	MessageFailed        = "failed"
	MessageUnrecoverable = "deleted_unrecoverable"
)

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	blockingChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "blocking_checks_total",
			Help: "Blocking checks by requested batch type and resulting engine trigger",
		},
		[]string{"batch_type", "trigger"},
	)
	engineRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "engine_requests_total",
			Help: "Billing engine start requests by engine and result",
		},
		[]string{"engine", "result"},
	)
	jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "jobs_total",
			Help: "Current engine jobs processed by final bill run status",
		},
		[]string{"result"},
	)
	workerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "worker_messages_total",
			Help: "Queue messages handled by the worker by outcome",
		},
		[]string{"outcome"},
	)
	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "job_duration_seconds",
			Help:    "Current engine job duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		blockingChecks,
		engineRequests,
		jobs,
		jobDuration,
		workerMessages,
	)
}

// ObserveBlockingCheck counts one blocking determination.
func ObserveBlockingCheck(batchType, trigger string) {
	blockingChecks.WithLabelValues(batchType, trigger).Inc()
}

// IncEngineRequest counts one engine start request.
func IncEngineRequest(engine, result string) {
	engineRequests.WithLabelValues(engine, result).Inc()
}

// ObserveJob records a finished current engine job.
func ObserveJob(result string, elapsed time.Duration) {
	jobs.WithLabelValues(result).Inc()
	jobDuration.Observe(elapsed.Seconds())
}

// IncWorkerMessage counts one queue message outcome.
func IncWorkerMessage(outcome string) {
	workerMessages.WithLabelValues(outcome).Inc()
}

// RegisterDB exposes connection pool stats for db under dbName. Registering
// the same name twice is a no-op.
func RegisterDB(db *sql.DB, dbName string) error {
	err := Registry.Register(collectors.NewDBStatsCollector(db, dbName))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
