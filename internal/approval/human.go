package approval

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvernon0786/Infin8Content-sub005/internal/audit"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"
)

// HumanApprovalProcessor records the whole-workflow review verdict and is the
// only processor that moves the umbrella workflow stage. Approval advances to
// article queuing; rejection resets the workflow to the caller-chosen earlier
// stage. A rejection without a reset target is an error so the workflow is
// never left without a next step.
type HumanApprovalProcessor struct {
	core
}

var _ Processor = (*HumanApprovalProcessor)(nil)

func NewHumanApprovalProcessor(
	workflows repository.WorkflowRepository,
	approvals repository.ApprovalRepository,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *HumanApprovalProcessor {
	return &HumanApprovalProcessor{
		core: core{
			approvalType:  domain.ApprovalTypeHuman,
			expectedStage: domain.StageSubtopicApproval,
			requireAdmin:  true,
			actions: auditActions{
				approved: domain.ActionHumanApproved,
				rejected: domain.ActionHumanRejected,
			},
			workflows: workflows,
			approvals: approvals,
			recorder:  recorder,
			metrics:   metrics,
			logger:    logger.With().Str("component", "human_approval").Logger(),
		},
	}
}

// Process implements Processor.
func (p *HumanApprovalProcessor) Process(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, req Request) (*Result, error) {
	if err := p.authorize(actor); err != nil {
		return nil, err
	}

	workflow, err := p.loadAtStage(ctx, actor, workflowID)
	if err != nil {
		return nil, err
	}

	if err := p.validateDecision(req.Decision); err != nil {
		return nil, err
	}

	var next domain.WorkflowStage
	switch req.Decision {
	case domain.DecisionApproved:
		next = workflow.Status.Next()
	case domain.DecisionRejected:
		if req.ResetToStep == nil {
			return nil, domain.NewValidationError("reset_to_step", "is required when rejecting")
		}
		if !domain.IsValidStage(*req.ResetToStep) || !req.ResetToStep.Before(workflow.Status) {
			return nil, domain.NewValidationError("reset_to_step", "must be an earlier workflow stage")
		}
		next = *req.ResetToStep
	}

	approval, err := p.upsert(ctx, actor, workflowID, req, nil)
	if err != nil {
		return nil, err
	}

	if err := p.workflows.AdvanceStage(ctx, actor.OrgID, workflowID, workflow.Status, next); err != nil {
		return nil, err
	}
	if req.Decision == domain.DecisionApproved {
		p.metrics.WorkflowStageAdvances.WithLabelValues(string(next)).Inc()
	} else {
		p.metrics.WorkflowResets.Inc()
	}

	p.recordAudit(ctx, actor, workflowID, req, map[string]interface{}{
		"new_workflow_status": string(next),
	})

	p.logger.Info().
		Str("workflow_id", workflowID.String()).
		Str("decision", string(req.Decision)).
		Str("new_status", string(next)).
		Msg("human review recorded")

	return &Result{
		Success:           true,
		ApprovalID:        approval.ID,
		WorkflowID:        workflowID,
		ApprovalType:      domain.ApprovalTypeHuman,
		Decision:          req.Decision,
		NewWorkflowStatus: next,
	}, nil
}
