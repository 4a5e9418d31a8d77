package domain

// Audit action constants. Gate enforcement follows
// workflow.gate.<domain>_{allowed|blocked|error}; approvals follow
// workflow.<domain>.{approved|rejected}; batch processors follow
// workflow.<domain>.{started|completed|failed}.
const (
	ActionCompetitorGateAllowed = "workflow.gate.competitor_allowed"
	ActionCompetitorGateBlocked = "workflow.gate.competitor_blocked"
	ActionCompetitorGateError   = "workflow.gate.competitor_error"

	ActionLongtailGateAllowed = "workflow.gate.longtail_clustering_allowed"
	ActionLongtailGateBlocked = "workflow.gate.longtail_clustering_blocked"
	ActionLongtailGateError   = "workflow.gate.longtail_clustering_error"

	ActionSubtopicGateAllowed = "workflow.gate.subtopic_approval_allowed"
	ActionSubtopicGateBlocked = "workflow.gate.subtopic_approval_blocked"
	ActionSubtopicGateError   = "workflow.gate.subtopic_approval_error"

	ActionSeedApproved = "workflow.seed.approved"
	ActionSeedRejected = "workflow.seed.rejected"

	ActionSubtopicApproved = "workflow.subtopic.approved"
	ActionSubtopicRejected = "workflow.subtopic.rejected"

	ActionHumanApproved = "workflow.human_review.approved"
	ActionHumanRejected = "workflow.human_review.rejected"

	ActionQueuingStarted   = "workflow.queuing.started"
	ActionQueuingCompleted = "workflow.queuing.completed"
	ActionQueuingFailed    = "workflow.queuing.failed"

	ActionLinkingStarted   = "workflow.linking.started"
	ActionLinkingCompleted = "workflow.linking.completed"
	ActionLinkingFailed    = "workflow.linking.failed"
)

// EntityTypeWorkflow is the audit entity type for workflow-scoped events.
const EntityTypeWorkflow = "workflow"
