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

// SubtopicApprovalProcessor records the reviewer's verdict on one keyword
// unit's generated subtopics. Approval makes the unit queueable; rejection
// sends it back for regeneration. The umbrella workflow stage stays at
// subtopic_approval either way, only the human approval moves it.
type SubtopicApprovalProcessor struct {
	core
	keywords repository.KeywordUnitRepository
}

var _ Processor = (*SubtopicApprovalProcessor)(nil)

func NewSubtopicApprovalProcessor(
	workflows repository.WorkflowRepository,
	approvals repository.ApprovalRepository,
	keywords repository.KeywordUnitRepository,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *SubtopicApprovalProcessor {
	return &SubtopicApprovalProcessor{
		core: core{
			approvalType:  domain.ApprovalTypeSubtopic,
			expectedStage: domain.StageSubtopicApproval,
			requireAdmin:  false,
			actions: auditActions{
				approved: domain.ActionSubtopicApproved,
				rejected: domain.ActionSubtopicRejected,
			},
			workflows: workflows,
			approvals: approvals,
			recorder:  recorder,
			metrics:   metrics,
			logger:    logger.With().Str("component", "subtopic_approval").Logger(),
		},
		keywords: keywords,
	}
}

// Process implements Processor.
func (p *SubtopicApprovalProcessor) Process(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, req Request) (*Result, error) {
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
	if req.KeywordUnitID == uuid.Nil {
		return nil, domain.NewValidationError("keyword_unit_id", "is required")
	}

	unit, err := p.keywords.Get(ctx, req.KeywordUnitID)
	if err != nil {
		return nil, err
	}
	if unit.WorkflowID != workflowID {
		return nil, domain.NewNotFoundError("keyword unit", req.KeywordUnitID.String())
	}
	if req.Decision == domain.DecisionApproved && !unit.EligibleForApproval() {
		return nil, domain.NewValidationError("keyword_unit_id", "subtopics have not finished generating for this unit")
	}

	approval, err := p.upsert(ctx, actor, workflowID, req, []uuid.UUID{req.KeywordUnitID})
	if err != nil {
		return nil, err
	}

	// Approved units become queueable, rejected units go back to the start of
	// subtopic generation.
	nextStatus := domain.SubtopicStatusNotStarted
	if req.Decision == domain.DecisionApproved {
		nextStatus = domain.SubtopicStatusReady
	}
	updated, err := p.keywords.SetSubtopicStatus(ctx, workflowID, []uuid.UUID{req.KeywordUnitID}, nextStatus)
	if err != nil {
		return nil, err
	}

	p.recordAudit(ctx, actor, workflowID, req, map[string]interface{}{
		"keyword_unit_id": req.KeywordUnitID.String(),
		"subtopic_status": string(nextStatus),
	})

	p.logger.Info().
		Str("workflow_id", workflowID.String()).
		Str("keyword_unit_id", req.KeywordUnitID.String()).
		Str("decision", string(req.Decision)).
		Msg("subtopic approval recorded")

	return &Result{
		Success:           true,
		ApprovalID:        approval.ID,
		WorkflowID:        workflowID,
		ApprovalType:      domain.ApprovalTypeSubtopic,
		Decision:          req.Decision,
		NewWorkflowStatus: workflow.Status,
		UpdatedUnits:      updated,
	}, nil
}
