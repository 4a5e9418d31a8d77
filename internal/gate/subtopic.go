package gate

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvernon0786/Infin8Content-sub005/internal/audit"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"
)

// SubtopicApprovalGate guards entry into article queuing. Unlike the other
// gates it is not purely positional: when the workflow sits exactly at the
// subtopic_approval stage the gate consults the recorded approval decision.
type SubtopicApprovalGate struct {
	gateBase
	approvals repository.ApprovalRepository
}

var _ Validator = (*SubtopicApprovalGate)(nil)

func NewSubtopicApprovalGate(
	workflows repository.WorkflowRepository,
	approvals repository.ApprovalRepository,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *SubtopicApprovalGate {
	return &SubtopicApprovalGate{
		gateBase: newGateBase(
			"subtopic_approval",
			domain.StageArticleQueuing,
			actionSet{
				allowed: domain.ActionSubtopicGateAllowed,
				blocked: domain.ActionSubtopicGateBlocked,
				errored: domain.ActionSubtopicGateError,
			},
			workflows, recorder, metrics, logger,
		),
		approvals: approvals,
	}
}

// Validate implements Validator.
func (g *SubtopicApprovalGate) Validate(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) Result {
	workflow, result, ok := g.loadWorkflow(ctx, actor, workflowID)
	if !ok {
		g.logEnforcement(ctx, actor, workflowID, result)
		return result
	}

	switch {
	case workflow.Status.Before(domain.StageSubtopicApproval):
		result = Result{
			Outcome:              OutcomeDenied,
			Status:               StatusNotReady,
			Reason:               "workflow has not reached subtopic approval",
			RequiredAction:       "complete keyword validation and subtopic generation first",
			WorkflowStatus:       workflow.Status,
			MissingPrerequisites: []string{string(domain.StageSubtopicApproval)},
		}
	case workflow.Status == domain.StageSubtopicApproval:
		result = g.checkDecision(ctx, workflow)
	default:
		// Already past the approval stage, nothing left to enforce.
		result = Result{
			Outcome:        OutcomeAllowed,
			Status:         StatusNotRequired,
			WorkflowStatus: workflow.Status,
		}
	}

	g.logEnforcement(ctx, actor, workflowID, result)
	return result
}

func (g *SubtopicApprovalGate) checkDecision(ctx context.Context, workflow *domain.Workflow) Result {
	approval, err := g.approvals.GetByType(ctx, workflow.ID, domain.ApprovalTypeSubtopic)
	if err != nil {
		if isNotFound(err) {
			return Result{
				Outcome:        OutcomeDenied,
				Status:         StatusNotApproved,
				Reason:         "subtopics have not been approved",
				RequiredAction: "approve the generated subtopics before queuing articles",
				WorkflowStatus: workflow.Status,
			}
		}

		g.logger.Error().Err(err).
			Str("workflow_id", workflow.ID.String()).
			Msg("gate check failed to read approval, failing open")

		return Result{
			Outcome:        OutcomeAllowedDueToError,
			Status:         StatusError,
			Reason:         "gate check could not read approval state: " + err.Error(),
			WorkflowStatus: workflow.Status,
		}
	}

	if !approval.IsApproved() {
		return Result{
			Outcome:        OutcomeDenied,
			Status:         StatusRejected,
			Reason:         "subtopics were rejected",
			RequiredAction: "regenerate and re-approve the rejected subtopics",
			WorkflowStatus: workflow.Status,
		}
	}

	return Result{
		Outcome:        OutcomeAllowed,
		Status:         StatusApproved,
		WorkflowStatus: workflow.Status,
	}
}
