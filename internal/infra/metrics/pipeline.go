package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		batchesProcessedTotal,
		jobsAnalyzedTotal,
		jobsRequeuedTotal,
		securityIncidentsTotal,
		schedulerState,
	)
}

var (
	batchesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_batches_processed_total",
			Help: "Total analysis batches processed, labeled by tier and outcome.",
		},
		[]string{"tier", "outcome"}, // 'completed', 'partial', 'failed'
	)

	jobsAnalyzedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_analyzed_total",
			Help: "Jobs with a persisted tier result, labeled by tier.",
		},
		[]string{"tier"},
	)

	jobsRequeuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_requeued_total",
			Help: "Jobs returned to pending after truncation or failure.",
		},
		[]string{"tier"},
	)

	securityIncidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_security_incidents_total",
			Help: "Template tamper and token mismatch detections.",
		},
		[]string{"kind"},
	)

	schedulerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_scheduler_state",
			Help: "Current scheduler state (0 idle, 1 awaiting window, 2/3/4 running tier 1/2/3).",
		},
	)
)

func IncBatch(tier, outcome string) {
	batchesProcessedTotal.WithLabelValues(norm(tier), norm(outcome)).Inc()
}

func AddJobsAnalyzed(tier string, n int) {
	jobsAnalyzedTotal.WithLabelValues(norm(tier)).Add(float64(n))
}

func AddJobsRequeued(tier string, n int) {
	jobsRequeuedTotal.WithLabelValues(norm(tier)).Add(float64(n))
}

func IncSecurityIncident(kind string) {
	securityIncidentsTotal.WithLabelValues(norm(kind)).Inc()
}

func SetSchedulerState(v int) { schedulerState.Set(float64(v)) }
