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
var _ KeywordUnitRepository = (*PgKeywordUnitRepository)(nil)

// PgKeywordUnitRepository is a PostgreSQL implementation of KeywordUnitRepository.
type PgKeywordUnitRepository struct {
	db DBTX
}

// NewPgKeywordUnitRepository creates a new PostgreSQL keyword unit repository.
func NewPgKeywordUnitRepository(db DBTX) *PgKeywordUnitRepository {
	return &PgKeywordUnitRepository{db: db}
}

// Create inserts a new keyword unit.
func (r *PgKeywordUnitRepository) Create(ctx context.Context, unit *domain.KeywordUnit) error {
	if unit == nil {
		return domain.NewValidationError("unit", "keyword unit cannot be nil")
	}
	if unit.ID == uuid.Nil {
		return domain.NewValidationError("id", "keyword unit ID is required")
	}
	if unit.WorkflowID == uuid.Nil {
		return domain.NewValidationError("workflow_id", "workflow ID is required")
	}
	if unit.Keyword == "" {
		return domain.NewValidationError("keyword", "keyword is required")
	}

	subtopicsJSON, err := json.Marshal(unit.Subtopics)
	if err != nil {
		return fmt.Errorf("failed to marshal subtopics: %w", err)
	}

	query := `
		INSERT INTO keyword_units (
			id, workflow_id, keyword, approved, subtopic_status, subtopics,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8
		)`

	_, err = r.db.Exec(ctx, query,
		unit.ID, unit.WorkflowID, unit.Keyword, unit.Approved, unit.SubtopicStatus, subtopicsJSON,
		unit.CreatedAt, unit.UpdatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("keyword unit", unit.ID.String())
		}
		return fmt.Errorf("failed to create keyword unit: %w", err)
	}

	return nil
}

// Get retrieves a keyword unit by its ID.
func (r *PgKeywordUnitRepository) Get(ctx context.Context, id uuid.UUID) (*domain.KeywordUnit, error) {
	query := `
		SELECT id, workflow_id, keyword, approved, subtopic_status, subtopics,
			created_at, updated_at
		FROM keyword_units
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	unit, err := scanKeywordUnit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("keyword unit", id.String())
		}
		return nil, fmt.Errorf("failed to get keyword unit: %w", err)
	}

	return unit, nil
}

// ListByWorkflow retrieves all keyword units belonging to a workflow.
func (r *PgKeywordUnitRepository) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]*domain.KeywordUnit, error) {
	query := `
		SELECT id, workflow_id, keyword, approved, subtopic_status, subtopics,
			created_at, updated_at
		FROM keyword_units
		WHERE workflow_id = $1
		ORDER BY created_at ASC`

	return r.queryUnits(ctx, query, workflowID)
}

// ListQueueable retrieves up to limit approved units in subtopic status "ready".
// The stable creation-time ordering keeps repeated fan-out runs deterministic.
func (r *PgKeywordUnitRepository) ListQueueable(ctx context.Context, workflowID uuid.UUID, limit int) ([]*domain.KeywordUnit, error) {
	if limit <= 0 {
		limit = defaultFilterLimit
	}

	query := `
		SELECT id, workflow_id, keyword, approved, subtopic_status, subtopics,
			created_at, updated_at
		FROM keyword_units
		WHERE workflow_id = $1
		  AND approved = TRUE
		  AND subtopic_status = $2
		ORDER BY created_at ASC
		LIMIT $3`

	return r.queryUnits(ctx, query, workflowID, domain.SubtopicStatusReady, limit)
}

// MarkApproved marks the given units as selected during seed approval.
func (r *PgKeywordUnitRepository) MarkApproved(ctx context.Context, workflowID uuid.UUID, unitIDs []uuid.UUID) (int, error) {
	if len(unitIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE keyword_units
		SET approved = TRUE, updated_at = $1
		WHERE workflow_id = $2 AND id = ANY($3)`

	result, err := r.db.Exec(ctx, query, time.Now().UTC(), workflowID, unitIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to mark units approved: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// SetSubtopicStatus sets the subtopic sub-status on the given units.
// An empty unitIDs slice updates every unit in the workflow.
func (r *PgKeywordUnitRepository) SetSubtopicStatus(ctx context.Context, workflowID uuid.UUID, unitIDs []uuid.UUID, status domain.SubtopicStatus) (int, error) {
	now := time.Now().UTC()

	if len(unitIDs) == 0 {
		query := `
			UPDATE keyword_units
			SET subtopic_status = $1, updated_at = $2
			WHERE workflow_id = $3`

		result, err := r.db.Exec(ctx, query, status, now, workflowID)
		if err != nil {
			return 0, fmt.Errorf("failed to set subtopic status: %w", err)
		}
		return int(result.RowsAffected()), nil
	}

	query := `
		UPDATE keyword_units
		SET subtopic_status = $1, updated_at = $2
		WHERE workflow_id = $3 AND id = ANY($4)`

	result, err := r.db.Exec(ctx, query, status, now, workflowID, unitIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to set subtopic status: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// SetSubtopics stores generated subtopics on a unit and moves it to
// subtopic status "complete".
func (r *PgKeywordUnitRepository) SetSubtopics(ctx context.Context, id uuid.UUID, subtopics []domain.Subtopic) error {
	subtopicsJSON, err := json.Marshal(subtopics)
	if err != nil {
		return fmt.Errorf("failed to marshal subtopics: %w", err)
	}

	query := `
		UPDATE keyword_units
		SET subtopics = $1, subtopic_status = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(ctx, query, subtopicsJSON, domain.SubtopicStatusComplete, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set subtopics: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("keyword unit", id.String())
	}

	return nil
}

// CountByStatus returns how many units in the workflow are in each subtopic sub-status.
func (r *PgKeywordUnitRepository) CountByStatus(ctx context.Context, workflowID uuid.UUID) (map[domain.SubtopicStatus]int, error) {
	query := `
		SELECT subtopic_status, COUNT(*)
		FROM keyword_units
		WHERE workflow_id = $1
		GROUP BY subtopic_status`

	rows, err := r.db.Query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to count units by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SubtopicStatus]int)
	for rows.Next() {
		var status domain.SubtopicStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

// queryUnits runs a unit select query and scans all rows.
func (r *PgKeywordUnitRepository) queryUnits(ctx context.Context, query string, args ...interface{}) ([]*domain.KeywordUnit, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query keyword units: %w", err)
	}
	defer rows.Close()

	var units []*domain.KeywordUnit
	for rows.Next() {
		unit, err := scanKeywordUnitFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan keyword unit: %w", err)
		}
		units = append(units, unit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keyword units: %w", err)
	}

	return units, nil
}

// keywordUnitScanDest holds the destination pointers for scanning a KeywordUnit row.
type keywordUnitScanDest struct {
	unit          domain.KeywordUnit
	subtopicsJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *keywordUnitScanDest) destinations() []interface{} {
	return []interface{}{
		&d.unit.ID, &d.unit.WorkflowID, &d.unit.Keyword, &d.unit.Approved, &d.unit.SubtopicStatus, &d.subtopicsJSON,
		&d.unit.CreatedAt, &d.unit.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals the subtopics.
func (d *keywordUnitScanDest) finalize() (*domain.KeywordUnit, error) {
	if len(d.subtopicsJSON) > 0 {
		if err := json.Unmarshal(d.subtopicsJSON, &d.unit.Subtopics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subtopics: %w", err)
		}
	}
	return &d.unit, nil
}

// scanKeywordUnit scans a single row into a KeywordUnit.
func scanKeywordUnit(row pgx.Row) (*domain.KeywordUnit, error) {
	var dest keywordUnitScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanKeywordUnitFromRows scans the current row from pgx.Rows into a KeywordUnit.
func scanKeywordUnitFromRows(rows pgx.Rows) (*domain.KeywordUnit, error) {
	var dest keywordUnitScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
