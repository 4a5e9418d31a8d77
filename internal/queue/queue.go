// Package queue implements the article fan-out: one article work-item per
// approved, ready keyword unit, each dispatched to the external planner for
// generation.
//
// The fan-out is idempotent under retries. Articles are keyed by
// (workflow_id, keyword_unit_id); a re-run reuses existing articles without
// re-dispatching them. Units are processed sequentially so every failure is
// attributable to exactly one unit.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvernon0786/Infin8Content-sub005/internal/audit"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"
)

// GenerationTrigger dispatches the asynchronous "start generation" call for a
// newly queued article.
type GenerationTrigger interface {
	TriggerGeneration(ctx context.Context, article *domain.Article) error
}

// QueuedArticle describes one article in the fan-out result.
type QueuedArticle struct {
	ArticleID     uuid.UUID `json:"article_id"`
	KeywordUnitID uuid.UUID `json:"keyword_unit_id"`
	Keyword       string    `json:"keyword"`

	// Existing marks articles that were already queued by an earlier run.
	Existing bool `json:"existing,omitempty"`
}

// Result aggregates the fan-out outcome. Errors holds one message per unit
// whose dispatch failed; those units are excluded from ArticlesCreated and
// Articles but do not fail the call.
type Result struct {
	WorkflowID      uuid.UUID            `json:"workflow_id"`
	NewStatus       domain.WorkflowStage `json:"new_status"`
	ArticlesCreated int                  `json:"articles_created"`
	Articles        []QueuedArticle      `json:"articles"`
	Errors          []string             `json:"errors,omitempty"`
}

// Processor queues articles for every approved, ready keyword unit of a
// workflow and advances the workflow to article linking.
type Processor struct {
	maxUnits int

	workflows repository.WorkflowRepository
	keywords  repository.KeywordUnitRepository
	articles  repository.ArticleRepository
	trigger   GenerationTrigger
	recorder  audit.Recorder
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewProcessor(
	maxUnits int,
	workflows repository.WorkflowRepository,
	keywords repository.KeywordUnitRepository,
	articles repository.ArticleRepository,
	trigger GenerationTrigger,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		maxUnits:  maxUnits,
		workflows: workflows,
		keywords:  keywords,
		articles:  articles,
		trigger:   trigger,
		recorder:  recorder,
		metrics:   metrics,
		logger:    logger.With().Str("component", "queuing").Logger(),
	}
}

// Queue runs the fan-out for one workflow.
//
// Structural failures (workflow missing, wrong stage, more ready units than
// the per-call ceiling) return an error before any article is touched.
// Dispatch failures after that point are per-unit: the unit's article is
// marked planner_failed and reported in Result.Errors while the remaining
// units continue. The workflow advances to article linking once every unit
// has been attempted, regardless of dispatch failures.
func (p *Processor) Queue(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) (*Result, error) {
	started := time.Now()

	workflow, err := p.workflows.Get(ctx, actor.OrgID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow for queuing: %w", err)
	}
	if workflow.Status != domain.StageArticleQueuing {
		return nil, domain.NewInvalidStateError("article queuing", workflow.Status, domain.StageArticleQueuing)
	}

	// Fetch one past the ceiling so an oversized batch is detectable.
	units, err := p.keywords.ListQueueable(ctx, workflowID, p.maxUnits+1)
	if err != nil {
		return nil, fmt.Errorf("list queueable units: %w", err)
	}
	if len(units) > p.maxUnits {
		return nil, domain.NewValidationError("keyword_units",
			fmt.Sprintf("workflow has more than %d ready units, queuing refused to bound fan-out", p.maxUnits))
	}

	p.recordAudit(ctx, actor, workflowID, domain.ActionQueuingStarted, map[string]interface{}{
		"unit_count": len(units),
	})

	result := &Result{WorkflowID: workflowID}
	for _, unit := range units {
		queued, errMsg, err := p.queueUnit(ctx, workflow, unit)
		if err != nil {
			p.recordAudit(ctx, actor, workflowID, domain.ActionQueuingFailed, map[string]interface{}{
				"keyword_unit_id": unit.ID.String(),
				"error_message":   err.Error(),
			})
			return nil, err
		}
		if errMsg != "" {
			result.Errors = append(result.Errors, errMsg)
			continue
		}
		result.ArticlesCreated++
		result.Articles = append(result.Articles, *queued)
	}

	next := domain.StageArticleLinking
	if err := p.workflows.AdvanceStage(ctx, actor.OrgID, workflowID, domain.StageArticleQueuing, next); err != nil {
		p.recordAudit(ctx, actor, workflowID, domain.ActionQueuingFailed, map[string]interface{}{
			"error_message": err.Error(),
		})
		return nil, fmt.Errorf("advance workflow after queuing: %w", err)
	}
	result.NewStatus = next
	p.metrics.WorkflowStageAdvances.WithLabelValues(string(next)).Inc()
	p.metrics.QueueBatchDuration.Observe(time.Since(started).Seconds())

	p.recordAudit(ctx, actor, workflowID, domain.ActionQueuingCompleted, map[string]interface{}{
		"articles_created": result.ArticlesCreated,
		"dispatch_errors":  len(result.Errors),
	})

	p.logger.Info().
		Str("workflow_id", workflowID.String()).
		Int("articles_created", result.ArticlesCreated).
		Int("dispatch_errors", len(result.Errors)).
		Msg("article queuing completed")

	return result, nil
}

// queueUnit processes one keyword unit. It returns the queued article on
// success, a per-unit error message on dispatch failure, and a non-nil error
// only for store failures that must abort the batch.
func (p *Processor) queueUnit(ctx context.Context, workflow *domain.Workflow, unit *domain.KeywordUnit) (*QueuedArticle, string, error) {
	existing, err := p.articles.GetByUnit(ctx, workflow.ID, unit.ID)
	if err == nil {
		// Already queued by an earlier run; reuse without re-dispatching.
		return &QueuedArticle{
			ArticleID:     existing.ID,
			KeywordUnitID: unit.ID,
			Keyword:       unit.Keyword,
			Existing:      true,
		}, "", nil
	}
	if !isNotFound(err) {
		return nil, "", fmt.Errorf("check existing article for unit %s: %w", unit.ID, err)
	}

	now := time.Now().UTC()
	article := &domain.Article{
		ID:            uuid.New(),
		WorkflowID:    workflow.ID,
		KeywordUnitID: unit.ID,
		OrgID:         workflow.OrgID,
		Keyword:       unit.Keyword,
		Subtopics:     unit.Subtopics,
		// Context is frozen at queue time, never re-fetched later.
		ICPContext:        workflow.ICPContext,
		CompetitorContext: workflow.CompetitorContext,
		Status:            domain.ArticleStatusQueued,
		LinkStatus:        domain.LinkStatusNotLinked,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	inserted, err := p.articles.CreateIfAbsent(ctx, article)
	if err != nil {
		return nil, "", fmt.Errorf("create article for unit %s: %w", unit.ID, err)
	}
	if !inserted {
		// Lost a race with a concurrent queuing call; the other caller owns
		// the dispatch. Report the stored row, not the id we never persisted.
		winner, err := p.articles.GetByUnit(ctx, workflow.ID, unit.ID)
		if err != nil {
			return nil, "", fmt.Errorf("load concurrently queued article for unit %s: %w", unit.ID, err)
		}
		return &QueuedArticle{
			ArticleID:     winner.ID,
			KeywordUnitID: unit.ID,
			Keyword:       unit.Keyword,
			Existing:      true,
		}, "", nil
	}

	if err := p.trigger.TriggerGeneration(ctx, article); err != nil {
		p.metrics.ArticleDispatchFailures.Inc()
		p.logger.Warn().Err(err).
			Str("article_id", article.ID.String()).
			Str("keyword_unit_id", unit.ID.String()).
			Msg("planner dispatch failed")

		if markErr := p.articles.UpdateStatus(ctx, article.ID, domain.ArticleStatusPlannerFailed, err.Error()); markErr != nil {
			return nil, "", fmt.Errorf("mark article planner_failed for unit %s: %w", unit.ID, markErr)
		}
		return nil, fmt.Sprintf("Failed to trigger Planner Agent: %v", err), nil
	}

	p.metrics.ArticlesQueued.Inc()
	return &QueuedArticle{
		ArticleID:     article.ID,
		KeywordUnitID: unit.ID,
		Keyword:       unit.Keyword,
	}, "", nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func (p *Processor) recordAudit(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, action string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["attempted_step"] = string(domain.StageArticleQueuing)

	p.recorder.Record(ctx, audit.Event{
		OrgID:      actor.OrgID,
		ActorID:    actor.ID,
		Action:     action,
		EntityType: domain.EntityTypeWorkflow,
		EntityID:   workflowID.String(),
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Details:    details,
	})
}
