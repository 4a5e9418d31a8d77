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

// SeedApprovalProcessor records the admin's selection of seed keywords. It
// marks the chosen keyword units approved and leaves the workflow stage
// untouched; the seed stage completes through the normal advance path once
// expansion starts.
type SeedApprovalProcessor struct {
	core
	keywords repository.KeywordUnitRepository
}

var _ Processor = (*SeedApprovalProcessor)(nil)

func NewSeedApprovalProcessor(
	workflows repository.WorkflowRepository,
	approvals repository.ApprovalRepository,
	keywords repository.KeywordUnitRepository,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *SeedApprovalProcessor {
	return &SeedApprovalProcessor{
		core: core{
			approvalType:  domain.ApprovalTypeSeed,
			expectedStage: domain.StageSeedKeywords,
			requireAdmin:  true,
			actions: auditActions{
				approved: domain.ActionSeedApproved,
				rejected: domain.ActionSeedRejected,
			},
			workflows: workflows,
			approvals: approvals,
			recorder:  recorder,
			metrics:   metrics,
			logger:    logger.With().Str("component", "seed_approval").Logger(),
		},
		keywords: keywords,
	}
}

// Process implements Processor.
func (p *SeedApprovalProcessor) Process(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, req Request) (*Result, error) {
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
	if req.Decision == domain.DecisionApproved && len(req.ApprovedKeywordIDs) == 0 {
		return nil, domain.NewValidationError("approved_keyword_ids", "at least one keyword must be selected when approving")
	}

	approval, err := p.upsert(ctx, actor, workflowID, req, req.ApprovedKeywordIDs)
	if err != nil {
		return nil, err
	}

	var updated int
	if req.Decision == domain.DecisionApproved {
		updated, err = p.keywords.MarkApproved(ctx, workflowID, req.ApprovedKeywordIDs)
		if err != nil {
			return nil, err
		}
	}

	p.recordAudit(ctx, actor, workflowID, req, map[string]interface{}{
		"approved_keyword_count": len(req.ApprovedKeywordIDs),
	})

	p.logger.Info().
		Str("workflow_id", workflowID.String()).
		Str("decision", string(req.Decision)).
		Int("updated_units", updated).
		Msg("seed approval recorded")

	return &Result{
		Success:           true,
		ApprovalID:        approval.ID,
		WorkflowID:        workflowID,
		ApprovalType:      domain.ApprovalTypeSeed,
		Decision:          req.Decision,
		NewWorkflowStatus: workflow.Status,
		UpdatedUnits:      updated,
	}, nil
}
