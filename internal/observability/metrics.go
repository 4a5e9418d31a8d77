package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the intent workflow service.
// Metrics are organized by subsystem: gates, approvals, queuing, and linking.
// All counters and histograms are registered via promauto for automatic
// registration with the default Prometheus registry.
type Metrics struct {
	// GateChecks counts gate enforcement checks, labeled by gate and outcome
	// (allowed, blocked, error).
	GateChecks *prometheus.CounterVec

	// ApprovalsRecorded counts approval decisions, labeled by approval type
	// and decision.
	ApprovalsRecorded *prometheus.CounterVec

	// WorkflowStageAdvances counts stage-pointer moves, labeled by target stage.
	WorkflowStageAdvances *prometheus.CounterVec

	// WorkflowResets counts human-rejection resets to an earlier stage.
	WorkflowResets prometheus.Counter

	// ArticlesQueued counts article work-items created or reused by queuing.
	ArticlesQueued prometheus.Counter

	// ArticleDispatchFailures counts Planner Agent trigger dispatch failures.
	ArticleDispatchFailures prometheus.Counter

	// QueueBatchDuration observes the duration of a queuing batch in seconds.
	QueueBatchDuration prometheus.Histogram

	// ArticlesLinked counts articles linked to their workflow.
	ArticlesLinked prometheus.Counter

	// ArticleLinkFailures counts per-article linking failures.
	ArticleLinkFailures prometheus.Counter

	// LinkBatchDuration observes the duration of a linking batch in seconds.
	LinkBatchDuration prometheus.Histogram

	// WorkflowsCompleted counts workflows that reached the terminal stage.
	WorkflowsCompleted prometheus.Counter

	// AuditPublishFailures counts dropped audit events. Audit publishing is
	// best-effort, so this counter is the only signal that events were lost.
	AuditPublishFailures prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		GateChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_checks_total",
			Help:      "Total number of gate enforcement checks by gate and outcome",
		}, []string{"gate", "outcome"}),
		ApprovalsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approvals_recorded_total",
			Help:      "Total number of approval decisions recorded by type and decision",
		}, []string{"approval_type", "decision"}),
		WorkflowStageAdvances: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_stage_advances_total",
			Help:      "Total number of workflow stage advances by target stage",
		}, []string{"stage"}),
		WorkflowResets: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_resets_total",
			Help:      "Total number of workflow resets to an earlier stage",
		}),
		ArticlesQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_queued_total",
			Help:      "Total number of article work-items created or reused by queuing",
		}),
		ArticleDispatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "article_dispatch_failures_total",
			Help:      "Total number of Planner Agent trigger dispatch failures",
		}),
		QueueBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_batch_duration_seconds",
			Help:      "Duration of article queuing batches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		ArticlesLinked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_linked_total",
			Help:      "Total number of articles linked to their workflow",
		}),
		ArticleLinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "article_link_failures_total",
			Help:      "Total number of per-article linking failures",
		}),
		LinkBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_batch_duration_seconds",
			Help:      "Duration of article linking batches in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		WorkflowsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_completed_total",
			Help:      "Total number of workflows that reached the terminal stage",
		}),
		AuditPublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_publish_failures_total",
			Help:      "Total number of audit events dropped due to publish failures",
		}),
	}
}
