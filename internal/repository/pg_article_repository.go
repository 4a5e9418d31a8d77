package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

// Compile-time interface verification.
var _ ArticleRepository = (*PgArticleRepository)(nil)

// PgArticleRepository is a PostgreSQL implementation of ArticleRepository.
type PgArticleRepository struct {
	db DBTX
}

// NewPgArticleRepository creates a new PostgreSQL article repository.
func NewPgArticleRepository(db DBTX) *PgArticleRepository {
	return &PgArticleRepository{db: db}
}

// CreateIfAbsent inserts a new article work-item unless one already exists for
// the same (workflow_id, keyword_unit_id) pair. The unique index on that pair
// carries the queuing idempotency: ON CONFLICT DO NOTHING means a retried
// fan-out silently skips units that already have an article.
func (r *PgArticleRepository) CreateIfAbsent(ctx context.Context, article *domain.Article) (bool, error) {
	if article == nil {
		return false, domain.NewValidationError("article", "article cannot be nil")
	}
	if article.ID == uuid.Nil {
		return false, domain.NewValidationError("id", "article ID is required")
	}
	if article.WorkflowID == uuid.Nil {
		return false, domain.NewValidationError("workflow_id", "workflow ID is required")
	}
	if article.KeywordUnitID == uuid.Nil {
		return false, domain.NewValidationError("keyword_unit_id", "keyword unit ID is required")
	}
	if article.OrgID == "" {
		return false, domain.NewValidationError("org_id", "organization ID is required")
	}

	subtopicsJSON, err := json.Marshal(article.Subtopics)
	if err != nil {
		return false, fmt.Errorf("failed to marshal subtopics: %w", err)
	}

	icpJSON, err := json.Marshal(article.ICPContext)
	if err != nil {
		return false, fmt.Errorf("failed to marshal ICP context: %w", err)
	}

	competitorJSON, err := json.Marshal(article.CompetitorContext)
	if err != nil {
		return false, fmt.Errorf("failed to marshal competitor context: %w", err)
	}

	query := `
		INSERT INTO articles (
			id, workflow_id, keyword_unit_id, org_id,
			keyword, subtopics, icp_context, competitor_context,
			status, workflow_link_status, error_message,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13
		)
		ON CONFLICT (workflow_id, keyword_unit_id) DO NOTHING`

	result, err := r.db.Exec(ctx, query,
		article.ID, article.WorkflowID, article.KeywordUnitID, article.OrgID,
		article.Keyword, subtopicsJSON, icpJSON, competitorJSON,
		article.Status, article.LinkStatus, nullString(article.ErrorMessage),
		article.CreatedAt, article.UpdatedAt,
	)

	if err != nil {
		return false, fmt.Errorf("failed to create article: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Get retrieves an article by its ID.
func (r *PgArticleRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	query := `
		SELECT id, workflow_id, keyword_unit_id, org_id,
			keyword, subtopics, icp_context, competitor_context,
			status, workflow_link_status, error_message,
			created_at, updated_at
		FROM articles
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("article", id.String())
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

// GetByUnit retrieves the article keyed to a (workflow_id, keyword_unit_id) pair.
func (r *PgArticleRepository) GetByUnit(ctx context.Context, workflowID, keywordUnitID uuid.UUID) (*domain.Article, error) {
	query := `
		SELECT id, workflow_id, keyword_unit_id, org_id,
			keyword, subtopics, icp_context, competitor_context,
			status, workflow_link_status, error_message,
			created_at, updated_at
		FROM articles
		WHERE workflow_id = $1 AND keyword_unit_id = $2`

	row := r.db.QueryRow(ctx, query, workflowID, keywordUnitID)
	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("article", keywordUnitID.String())
		}
		return nil, fmt.Errorf("failed to get article by unit: %w", err)
	}

	return article, nil
}

// ListByWorkflow retrieves all article work-items belonging to a workflow.
func (r *PgArticleRepository) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]*domain.Article, error) {
	query := `
		SELECT id, workflow_id, keyword_unit_id, org_id,
			keyword, subtopics, icp_context, competitor_context,
			status, workflow_link_status, error_message,
			created_at, updated_at
		FROM articles
		WHERE workflow_id = $1
		ORDER BY created_at ASC`

	return r.queryArticles(ctx, query, workflowID)
}

// ListLinkable retrieves the workflow's articles whose generation has finished
// and which are not yet linked.
func (r *PgArticleRepository) ListLinkable(ctx context.Context, workflowID uuid.UUID) ([]*domain.Article, error) {
	query := `
		SELECT id, workflow_id, keyword_unit_id, org_id,
			keyword, subtopics, icp_context, competitor_context,
			status, workflow_link_status, error_message,
			created_at, updated_at
		FROM articles
		WHERE workflow_id = $1
		  AND status IN ($2, $3)
		  AND workflow_link_status != $4
		ORDER BY created_at ASC`

	return r.queryArticles(ctx, query, workflowID,
		domain.ArticleStatusCompleted, domain.ArticleStatusPublished, domain.LinkStatusLinked)
}

// BeginLinking claims an article for linking. The guarded UPDATE is the first
// half of the two-phase link: only an unclaimed, finished article moves to
// "linking", so concurrent link runs cannot double-claim a row.
func (r *PgArticleRepository) BeginLinking(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE articles
		SET workflow_link_status = $1, updated_at = $2
		WHERE id = $3
		  AND status IN ($4, $5)
		  AND workflow_link_status IN ($6, $7)`

	result, err := r.db.Exec(ctx, query,
		domain.LinkStatusLinking, time.Now().UTC(), id,
		domain.ArticleStatusCompleted, domain.ArticleStatusPublished,
		domain.LinkStatusNotLinked, domain.LinkStatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim article for linking: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkLinked completes the linking of a claimed article.
func (r *PgArticleRepository) MarkLinked(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE articles
		SET workflow_link_status = $1, error_message = NULL, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, domain.LinkStatusLinked, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark article linked: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("article", id.String())
	}

	return nil
}

// MarkLinkFailed records a linking failure on a claimed article.
func (r *PgArticleRepository) MarkLinkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE articles
		SET workflow_link_status = $1, error_message = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(ctx, query, domain.LinkStatusFailed, nullString(errorMsg), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark article link failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("article", id.String())
	}

	return nil
}

// UpdateStatus sets the generation status on an article.
func (r *PgArticleRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ArticleStatus, errorMsg string) error {
	query := `
		UPDATE articles
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(ctx, query, status, nullString(errorMsg), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update article status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("article", id.String())
	}

	return nil
}

// CountUnlinked returns how many of the workflow's articles are not yet linked.
func (r *PgArticleRepository) CountUnlinked(ctx context.Context, workflowID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM articles
		WHERE workflow_id = $1 AND workflow_link_status != $2`

	var count int
	if err := r.db.QueryRow(ctx, query, workflowID, domain.LinkStatusLinked).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unlinked articles: %w", err)
	}

	return count, nil
}

// queryArticles runs an article select query and scans all rows.
func (r *PgArticleRepository) queryArticles(ctx context.Context, query string, args ...interface{}) ([]*domain.Article, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []*domain.Article
	for rows.Next() {
		article, err := scanArticleFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}

	return articles, nil
}

// articleScanDest holds the destination pointers for scanning an Article row.
type articleScanDest struct {
	article        domain.Article
	subtopicsJSON  []byte
	icpJSON        []byte
	competitorJSON []byte
	errorMessage   *string
}

// destinations returns the slice of pointers for Scan operations.
func (d *articleScanDest) destinations() []interface{} {
	return []interface{}{
		&d.article.ID, &d.article.WorkflowID, &d.article.KeywordUnitID, &d.article.OrgID,
		&d.article.Keyword, &d.subtopicsJSON, &d.icpJSON, &d.competitorJSON,
		&d.article.Status, &d.article.LinkStatus, &d.errorMessage,
		&d.article.CreatedAt, &d.article.UpdatedAt,
	}
}

// finalize performs post-scan processing: sets nullable fields and unmarshals JSON.
func (d *articleScanDest) finalize() (*domain.Article, error) {
	if d.errorMessage != nil {
		d.article.ErrorMessage = *d.errorMessage
	}

	if len(d.subtopicsJSON) > 0 {
		if err := json.Unmarshal(d.subtopicsJSON, &d.article.Subtopics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subtopics: %w", err)
		}
	}

	if len(d.icpJSON) > 0 {
		if err := json.Unmarshal(d.icpJSON, &d.article.ICPContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ICP context: %w", err)
		}
	}

	if len(d.competitorJSON) > 0 {
		if err := json.Unmarshal(d.competitorJSON, &d.article.CompetitorContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal competitor context: %w", err)
		}
	}

	return &d.article, nil
}

// scanArticle scans a single row into an Article.
func scanArticle(row pgx.Row) (*domain.Article, error) {
	var dest articleScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanArticleFromRows scans the current row from pgx.Rows into an Article.
func scanArticleFromRows(rows pgx.Rows) (*domain.Article, error) {
	var dest articleScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
