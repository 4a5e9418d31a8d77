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

// CompetitorGate guards entry into seed keyword generation. It passes once
// the workflow has progressed to or beyond the seed_keywords stage, which is
// only reachable after competitor analysis has completed.
type CompetitorGate struct {
	gateBase
}

var _ Validator = (*CompetitorGate)(nil)

func NewCompetitorGate(
	workflows repository.WorkflowRepository,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *CompetitorGate {
	return &CompetitorGate{
		gateBase: newGateBase(
			"competitor",
			domain.StageSeedKeywords,
			actionSet{
				allowed: domain.ActionCompetitorGateAllowed,
				blocked: domain.ActionCompetitorGateBlocked,
				errored: domain.ActionCompetitorGateError,
			},
			workflows, recorder, metrics, logger,
		),
	}
}

// Validate implements Validator.
func (g *CompetitorGate) Validate(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) Result {
	workflow, result, ok := g.loadWorkflow(ctx, actor, workflowID)
	if !ok {
		g.logEnforcement(ctx, actor, workflowID, result)
		return result
	}

	if workflow.Status.AtOrPast(domain.StageSeedKeywords) {
		result = Result{
			Outcome:        OutcomeAllowed,
			Status:         StatusAllowed,
			WorkflowStatus: workflow.Status,
		}
	} else {
		result = Result{
			Outcome:              OutcomeDenied,
			Status:               StatusBlocked,
			Reason:               "competitor analysis has not completed",
			RequiredAction:       "complete competitor analysis before generating seed keywords",
			WorkflowStatus:       workflow.Status,
			MissingPrerequisites: []string{string(domain.StageCompetitorAnalysis)},
		}
	}

	g.logEnforcement(ctx, actor, workflowID, result)
	return result
}
