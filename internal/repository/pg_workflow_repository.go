package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

// txBeginner is an interface for types that can begin a transaction (e.g., *pgxpool.Pool, *database.DB).
// Used by Update to automatically wrap SELECT FOR UPDATE + UPDATE in a transaction
// when the underlying DBTX is a pool rather than an existing transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Compile-time interface verification.
var _ WorkflowRepository = (*PgWorkflowRepository)(nil)

// PgWorkflowRepository is a PostgreSQL implementation of WorkflowRepository.
type PgWorkflowRepository struct {
	db DBTX
}

// NewPgWorkflowRepository creates a new PostgreSQL workflow repository.
func NewPgWorkflowRepository(db DBTX) *PgWorkflowRepository {
	return &PgWorkflowRepository{db: db}
}

// Create inserts a new intent workflow.
func (r *PgWorkflowRepository) Create(ctx context.Context, workflow *domain.Workflow) error {
	if workflow == nil {
		return domain.NewValidationError("workflow", "workflow cannot be nil")
	}
	if workflow.ID == uuid.Nil {
		return domain.NewValidationError("id", "workflow ID is required")
	}
	if workflow.OrgID == "" {
		return domain.NewValidationError("org_id", "organization ID is required")
	}
	if workflow.CreatedBy == "" {
		return domain.NewValidationError("created_by", "creating user ID is required")
	}
	if !domain.IsValidStage(workflow.Status) {
		return domain.NewValidationError("status", "unknown workflow stage")
	}

	icpJSON, err := json.Marshal(workflow.ICPContext)
	if err != nil {
		return fmt.Errorf("failed to marshal ICP context: %w", err)
	}

	competitorJSON, err := json.Marshal(workflow.CompetitorContext)
	if err != nil {
		return fmt.Errorf("failed to marshal competitor context: %w", err)
	}

	query := `
		INSERT INTO intent_workflows (
			id, org_id, created_by, title, status,
			icp_context, competitor_context,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7,
			$8, $9
		)`

	_, err = r.db.Exec(ctx, query,
		workflow.ID, workflow.OrgID, workflow.CreatedBy, workflow.Title, workflow.Status,
		icpJSON, competitorJSON,
		workflow.CreatedAt, workflow.UpdatedAt,
	)

	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("workflow", workflow.ID.String())
		}
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	return nil
}

// Get retrieves an intent workflow by its ID within a tenant context.
func (r *PgWorkflowRepository) Get(ctx context.Context, orgID string, id uuid.UUID) (*domain.Workflow, error) {
	query := `
		SELECT id, org_id, created_by, title, status,
			icp_context, competitor_context,
			created_at, updated_at
		FROM intent_workflows
		WHERE id = $1 AND org_id = $2`

	row := r.db.QueryRow(ctx, query, id, orgID)
	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("workflow", id.String())
		}
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	return workflow, nil
}

// Update performs an optimistic update on a workflow using SELECT FOR UPDATE.
//
// Transaction Management:
// This method uses SELECT FOR UPDATE which requires a transaction for correct locking.
// If the underlying DBTX is a connection pool (supports Begin), the method automatically
// wraps the SELECT FOR UPDATE + UPDATE in an explicit transaction. If the underlying
// DBTX is already a transaction, it executes within that existing transaction.
func (r *PgWorkflowRepository) Update(ctx context.Context, orgID string, id uuid.UUID, fn func(*domain.Workflow) error) error {
	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for update: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgWorkflowRepository{db: tx}
		if err := txRepo.updateInTx(ctx, orgID, id, fn); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	// Already running within a transaction, execute directly.
	return r.updateInTx(ctx, orgID, id, fn)
}

// updateInTx performs the actual SELECT FOR UPDATE + UPDATE within the current DBTX.
// This must be called within a transaction for correct row-level locking.
func (r *PgWorkflowRepository) updateInTx(ctx context.Context, orgID string, id uuid.UUID, fn func(*domain.Workflow) error) error {
	selectQuery := `
		SELECT id, org_id, created_by, title, status,
			icp_context, competitor_context,
			created_at, updated_at
		FROM intent_workflows
		WHERE id = $1 AND org_id = $2
		FOR UPDATE`

	rows, err := r.db.Query(ctx, selectQuery, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to query workflow for update: %w", err)
	}

	workflow, err := scanWorkflowRows(rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("workflow", id.String())
		}
		return fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := fn(workflow); err != nil {
		return err
	}

	workflow.UpdatedAt = time.Now().UTC()

	icpJSON, err := json.Marshal(workflow.ICPContext)
	if err != nil {
		return fmt.Errorf("failed to marshal ICP context: %w", err)
	}

	competitorJSON, err := json.Marshal(workflow.CompetitorContext)
	if err != nil {
		return fmt.Errorf("failed to marshal competitor context: %w", err)
	}

	updateQuery := `
		UPDATE intent_workflows SET
			title = $1,
			status = $2,
			icp_context = $3,
			competitor_context = $4,
			updated_at = $5
		WHERE id = $6 AND org_id = $7`

	_, err = r.db.Exec(ctx, updateQuery,
		workflow.Title,
		workflow.Status,
		icpJSON,
		competitorJSON,
		workflow.UpdatedAt,
		id, orgID,
	)

	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	return nil
}

// AdvanceStage moves the workflow from the expected current stage to the given
// next stage. Forward moves must be a single step; backward moves (resets after
// a human rejection) may target any earlier stage.
func (r *PgWorkflowRepository) AdvanceStage(ctx context.Context, orgID string, id uuid.UUID, expectedCurrent, next domain.WorkflowStage) error {
	if !domain.IsValidStage(expectedCurrent) || !domain.IsValidStage(next) {
		return domain.NewValidationError("stage", "unknown workflow stage")
	}

	return r.Update(ctx, orgID, id, func(workflow *domain.Workflow) error {
		if workflow.Status != expectedCurrent {
			return domain.NewInvalidStateError("stage advance", workflow.Status, expectedCurrent)
		}
		if !isValidStageTransition(workflow.Status, next) {
			return fmt.Errorf("invalid stage transition from %s to %s: %w",
				workflow.Status, next, domain.ErrInvalidInput)
		}
		workflow.Status = next
		return nil
	})
}

// List retrieves intent workflows matching the filter criteria.
func (r *PgWorkflowRepository) List(ctx context.Context, filter WorkflowFilter) ([]*domain.Workflow, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	// Build dynamic WHERE clause
	conditions := []string{"org_id = $1"}
	args := []interface{}{filter.OrgID}
	argIndex := 2

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, s)
			argIndex++
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}

	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", argIndex))
		args = append(args, filter.CreatedBy)
		argIndex++
	}

	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argIndex))
		args = append(args, *filter.CreatedAfter)
		argIndex++
	}

	if filter.CreatedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIndex))
		args = append(args, *filter.CreatedBefore)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	// Count total matching records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM intent_workflows WHERE %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count workflows: %w", err)
	}

	// Query with pagination
	selectQuery := fmt.Sprintf(`
		SELECT id, org_id, created_by, title, status,
			icp_context, competitor_context,
			created_at, updated_at
		FROM intent_workflows
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]*domain.Workflow, 0, filter.Limit)
	for rows.Next() {
		workflow, err := scanWorkflowFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, totalCount, nil
}

// isValidStageTransition validates that a stage transition is allowed:
// one forward step, or a reset to any earlier stage.
func isValidStageTransition(from, to domain.WorkflowStage) bool {
	// Terminal stage cannot transition to anything.
	if from.IsTerminal() {
		return false
	}
	if to == from.Next() {
		return true
	}
	return to.Before(from)
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// workflowScanDest holds the destination pointers for scanning a Workflow row.
// This eliminates code duplication between pgx.Row and pgx.Rows scanning.
type workflowScanDest struct {
	workflow       domain.Workflow
	icpJSON        []byte
	competitorJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *workflowScanDest) destinations() []interface{} {
	return []interface{}{
		&d.workflow.ID, &d.workflow.OrgID, &d.workflow.CreatedBy, &d.workflow.Title, &d.workflow.Status,
		&d.icpJSON, &d.competitorJSON,
		&d.workflow.CreatedAt, &d.workflow.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals the context snapshots.
func (d *workflowScanDest) finalize() (*domain.Workflow, error) {
	if len(d.icpJSON) > 0 {
		if err := json.Unmarshal(d.icpJSON, &d.workflow.ICPContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ICP context: %w", err)
		}
	}

	if len(d.competitorJSON) > 0 {
		if err := json.Unmarshal(d.competitorJSON, &d.workflow.CompetitorContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal competitor context: %w", err)
		}
	}

	return &d.workflow, nil
}

// scanWorkflow scans a single row into a Workflow.
func scanWorkflow(row pgx.Row) (*domain.Workflow, error) {
	var dest workflowScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanWorkflowRows scans a single row from pgx.Rows into a Workflow.
// This is used with SELECT FOR UPDATE which returns Rows instead of Row.
func scanWorkflowRows(rows pgx.Rows) (*domain.Workflow, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	return scanWorkflowFromRows(rows)
}

// scanWorkflowFromRows scans the current row from pgx.Rows into a Workflow.
func scanWorkflowFromRows(rows pgx.Rows) (*domain.Workflow, error) {
	var dest workflowScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
