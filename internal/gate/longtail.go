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

// LongtailClusteringGate guards entry into keyword validation. Validation
// needs both the long-tail expansion and clustering stages behind it, and the
// gate enumerates whichever of the two the workflow still has ahead.
type LongtailClusteringGate struct {
	gateBase
}

var _ Validator = (*LongtailClusteringGate)(nil)

func NewLongtailClusteringGate(
	workflows repository.WorkflowRepository,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *LongtailClusteringGate {
	return &LongtailClusteringGate{
		gateBase: newGateBase(
			"longtail_clustering",
			domain.StageValidation,
			actionSet{
				allowed: domain.ActionLongtailGateAllowed,
				blocked: domain.ActionLongtailGateBlocked,
				errored: domain.ActionLongtailGateError,
			},
			workflows, recorder, metrics, logger,
		),
	}
}

// Validate implements Validator.
func (g *LongtailClusteringGate) Validate(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) Result {
	workflow, result, ok := g.loadWorkflow(ctx, actor, workflowID)
	if !ok {
		g.logEnforcement(ctx, actor, workflowID, result)
		return result
	}

	switch {
	case workflow.Status.AtOrPast(domain.StageValidation):
		result = Result{
			Outcome:        OutcomeAllowed,
			Status:         StatusAllowed,
			WorkflowStatus: workflow.Status,
		}
	default:
		missing := []string{string(domain.StageClustering)}
		if !workflow.Status.AtOrPast(domain.StageFiltering) {
			missing = []string{string(domain.StageLongtailExpansion), string(domain.StageClustering)}
		}
		result = Result{
			Outcome:              OutcomeDenied,
			Status:               StatusBlocked,
			Reason:               "keyword expansion and clustering have not completed",
			RequiredAction:       "complete long-tail expansion and clustering before validation",
			WorkflowStatus:       workflow.Status,
			MissingPrerequisites: missing,
		}
	}

	g.logEnforcement(ctx, actor, workflowID, result)
	return result
}
