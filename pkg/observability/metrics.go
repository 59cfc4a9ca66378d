package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Execution metrics
	ToolExecutions    *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	OutputTruncated   prometheus.Counter

	// Normalization metrics
	FindingsNormalized *prometheus.CounterVec
	ParseWarnings      *prometheus.CounterVec

	// Triage metrics
	TriageDecisions *prometheus.CounterVec

	// Intel service metrics
	IntelRequests  *prometheus.CounterVec
	IntelCacheHits prometheus.Counter

	// Audit metrics
	AuditsTotal  prometheus.Counter
	AuditsFailed prometheus.Counter
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			// Execution metrics
			ToolExecutions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "solaudit_tool_executions_total",
					Help: "Total number of tool executions by tool and status",
				},
				[]string{"tool", "status"},
			),
			ExecutionDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "solaudit_execution_duration_seconds",
					Help:    "Duration of tool executions in seconds",
					Buckets: prometheus.ExponentialBuckets(1, 2, 11), // 1s to ~34min
				},
				[]string{"tool"},
			),
			OutputTruncated: promauto.NewCounter(prometheus.CounterOpts{
				Name: "solaudit_output_truncated_total",
				Help: "Total number of captured streams that hit the size cap",
			}),

			// Normalization metrics
			FindingsNormalized: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "solaudit_findings_normalized_total",
					Help: "Total number of normalized findings by severity",
				},
				[]string{"severity"},
			),
			ParseWarnings: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "solaudit_parse_warnings_total",
					Help: "Total number of parse warnings by tool",
				},
				[]string{"tool"},
			),

			// Triage metrics
			TriageDecisions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "solaudit_triage_decisions_total",
					Help: "Total number of triage decisions by resulting state",
				},
				[]string{"state"},
			),

			// Intel service metrics
			IntelRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "solaudit_intel_requests_total",
					Help: "Total number of external analysis service requests by service and outcome",
				},
				[]string{"service", "outcome"},
			),
			IntelCacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "solaudit_intel_cache_hits_total",
				Help: "Total number of intel responses served from cache",
			}),

			// Audit metrics
			AuditsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "solaudit_audits_total",
				Help: "Total number of audit pipeline runs",
			}),
			AuditsFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "solaudit_audits_failed_total",
				Help: "Total number of audit pipeline runs that aborted",
			}),
		}
	})
	return metricsInstance
}
