package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

// ArticleRepository handles article work-item persistence.
//
// Idempotency contract: at most one article exists per
// (workflow_id, keyword_unit_id), enforced by a unique index. CreateIfAbsent
// is the idempotency primitive for queuing: re-running the fan-out for a
// workflow creates only the articles that do not exist yet.
type ArticleRepository interface {
	// CreateIfAbsent inserts a new article work-item unless one already exists
	// for the same (workflow_id, keyword_unit_id) pair. Returns true when a
	// row was inserted, false when the pair already existed.
	// Returns domain.ErrInvalidInput if required fields are missing.
	CreateIfAbsent(ctx context.Context, article *domain.Article) (bool, error)

	// Get retrieves an article by its ID.
	// Returns domain.ErrNotFound if no matching article exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.Article, error)

	// GetByUnit retrieves the article keyed to a (workflow_id, keyword_unit_id)
	// pair. Returns domain.ErrNotFound if the unit has not been queued yet.
	GetByUnit(ctx context.Context, workflowID, keywordUnitID uuid.UUID) (*domain.Article, error)

	// ListByWorkflow retrieves all article work-items belonging to a workflow,
	// ordered by creation time.
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]*domain.Article, error)

	// ListLinkable retrieves the workflow's articles whose generation has
	// finished (completed or published) and which are not yet linked,
	// ordered by creation time.
	ListLinkable(ctx context.Context, workflowID uuid.UUID) ([]*domain.Article, error)

	// BeginLinking claims an article for linking by moving its link status to
	// "linking". The claim succeeds only when the article is currently
	// linkable; returns false when another worker already claimed it or the
	// article is not eligible.
	BeginLinking(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkLinked completes the linking of a claimed article.
	// Returns domain.ErrNotFound if no matching article exists.
	MarkLinked(ctx context.Context, id uuid.UUID) error

	// MarkLinkFailed records a linking failure on a claimed article. The
	// article returns to a retryable state.
	// Returns domain.ErrNotFound if no matching article exists.
	MarkLinkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error

	// UpdateStatus sets the generation status on an article, with an optional
	// error message for failure states.
	// Returns domain.ErrNotFound if no matching article exists.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ArticleStatus, errorMsg string) error

	// CountUnlinked returns how many of the workflow's articles are not yet
	// linked. Zero means the fan-in is complete and the workflow may advance
	// to its terminal stage.
	CountUnlinked(ctx context.Context, workflowID uuid.UUID) (int, error)
}
