// Package linking implements the article fan-in: once article generation has
// finished, every completed article is linked back to its workflow, and the
// workflow reaches its terminal stage when nothing is left unlinked.
//
// Linking is idempotent and partial-failure tolerant. Each article goes
// through a two-phase claim (linking, then linked) so concurrent runs never
// double-link a row, already-linked articles are counted but untouched, and
// one article's failure never aborts the batch.
package linking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvernon0786/Infin8Content-sub005/internal/audit"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"
)

// Batch linking statuses.
const (
	StatusCompleted             = "completed"
	StatusCompletedWithFailures = "completed_with_failures"
)

// Details lists the per-article outcomes of one linking run.
type Details struct {
	LinkedIDs  []uuid.UUID `json:"linked_ids"`
	FailedIDs  []uuid.UUID `json:"failed_ids"`
	SkippedIDs []uuid.UUID `json:"skipped_ids"`
}

// Result aggregates one linking run. LinkedArticles counts links made by this
// run; AlreadyLinked counts articles a previous run linked. The workflow
// reaches the terminal stage only when the two together cover every article.
type Result struct {
	WorkflowID            uuid.UUID            `json:"workflow_id"`
	LinkingStatus         string               `json:"linking_status"`
	TotalArticles         int                  `json:"total_articles"`
	LinkedArticles        int                  `json:"linked_articles"`
	AlreadyLinked         int                  `json:"already_linked"`
	FailedArticles        int                  `json:"failed_articles"`
	WorkflowStatus        domain.WorkflowStage `json:"workflow_status"`
	ProcessingTimeSeconds float64              `json:"processing_time_seconds"`
	Details               Details              `json:"details"`
}

// Processor links a workflow's generated articles back to the workflow and
// completes the workflow when the fan-in is done.
type Processor struct {
	workflows repository.WorkflowRepository
	articles  repository.ArticleRepository
	recorder  audit.Recorder
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewProcessor(
	workflows repository.WorkflowRepository,
	articles repository.ArticleRepository,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		workflows: workflows,
		articles:  articles,
		recorder:  recorder,
		metrics:   metrics,
		logger:    logger.With().Str("component", "linking").Logger(),
	}
}

// Link runs the fan-in for one workflow.
func (p *Processor) Link(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) (*Result, error) {
	started := time.Now()

	workflow, err := p.workflows.Get(ctx, actor.OrgID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow for linking: %w", err)
	}
	if workflow.Status != domain.StageArticleLinking {
		return nil, domain.NewInvalidStateError("article linking", workflow.Status, domain.StageArticleLinking)
	}

	articles, err := p.articles.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list articles for linking: %w", err)
	}

	p.recordAudit(ctx, actor, workflowID, domain.ActionLinkingStarted, map[string]interface{}{
		"total_articles": len(articles),
	})

	result := &Result{
		WorkflowID:     workflowID,
		TotalArticles:  len(articles),
		WorkflowStatus: workflow.Status,
	}

	for _, article := range articles {
		switch {
		case article.LinkStatus == domain.LinkStatusLinked:
			result.AlreadyLinked++
		case article.Linkable():
			p.linkOne(ctx, article, result)
		default:
			// Generation has not finished (or planner dispatch failed); a
			// later run picks these up.
			result.Details.SkippedIDs = append(result.Details.SkippedIDs, article.ID)
		}
	}

	result.LinkingStatus = StatusCompleted
	if result.FailedArticles > 0 {
		result.LinkingStatus = StatusCompletedWithFailures
	}

	if err := p.maybeComplete(ctx, actor, workflowID, result); err != nil {
		p.recordAudit(ctx, actor, workflowID, domain.ActionLinkingFailed, map[string]interface{}{
			"error_message": err.Error(),
		})
		return nil, err
	}

	result.ProcessingTimeSeconds = time.Since(started).Seconds()
	p.metrics.LinkBatchDuration.Observe(result.ProcessingTimeSeconds)

	p.recordAudit(ctx, actor, workflowID, domain.ActionLinkingCompleted, map[string]interface{}{
		"linking_status":  result.LinkingStatus,
		"linked_articles": result.LinkedArticles,
		"already_linked":  result.AlreadyLinked,
		"failed_articles": result.FailedArticles,
		"workflow_status": string(result.WorkflowStatus),
	})

	p.logger.Info().
		Str("workflow_id", workflowID.String()).
		Str("linking_status", result.LinkingStatus).
		Int("linked", result.LinkedArticles).
		Int("already_linked", result.AlreadyLinked).
		Int("failed", result.FailedArticles).
		Msg("article linking completed")

	return result, nil
}

// linkOne runs the two-phase update for one article. Failures are recorded on
// the article and in the result, never returned.
func (p *Processor) linkOne(ctx context.Context, article *domain.Article, result *Result) {
	claimed, err := p.articles.BeginLinking(ctx, article.ID)
	if err != nil {
		p.failOne(ctx, article, result, err)
		return
	}
	if !claimed {
		// A concurrent run holds the claim; count it as skipped, the claimer
		// reports the outcome.
		result.Details.SkippedIDs = append(result.Details.SkippedIDs, article.ID)
		return
	}

	if err := p.articles.MarkLinked(ctx, article.ID); err != nil {
		p.failOne(ctx, article, result, err)
		return
	}

	result.LinkedArticles++
	result.Details.LinkedIDs = append(result.Details.LinkedIDs, article.ID)
	p.metrics.ArticlesLinked.Inc()
}

func (p *Processor) failOne(ctx context.Context, article *domain.Article, result *Result, cause error) {
	result.FailedArticles++
	result.Details.FailedIDs = append(result.Details.FailedIDs, article.ID)
	p.metrics.ArticleLinkFailures.Inc()

	p.logger.Warn().Err(cause).
		Str("article_id", article.ID.String()).
		Msg("article linking failed")

	if err := p.articles.MarkLinkFailed(ctx, article.ID, cause.Error()); err != nil {
		p.logger.Error().Err(err).
			Str("article_id", article.ID.String()).
			Msg("could not record linking failure on article")
	}
}

// maybeComplete advances the workflow to its terminal stage when every
// article is linked. On partial runs the stage stays at article_linking for a
// future retry.
func (p *Processor) maybeComplete(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, result *Result) error {
	if result.LinkedArticles+result.AlreadyLinked != result.TotalArticles {
		return nil
	}

	unlinked, err := p.articles.CountUnlinked(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("count unlinked articles: %w", err)
	}
	if unlinked > 0 {
		return nil
	}

	if err := p.workflows.AdvanceStage(ctx, actor.OrgID, workflowID, domain.StageArticleLinking, domain.StageCompleted); err != nil {
		return fmt.Errorf("complete workflow after linking: %w", err)
	}
	result.WorkflowStatus = domain.StageCompleted
	p.metrics.WorkflowStageAdvances.WithLabelValues(string(domain.StageCompleted)).Inc()
	p.metrics.WorkflowsCompleted.Inc()
	return nil
}

func (p *Processor) recordAudit(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, action string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["attempted_step"] = string(domain.StageArticleLinking)

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
