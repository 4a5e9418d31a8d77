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
var _ ApprovalRepository = (*PgApprovalRepository)(nil)

// PgApprovalRepository is a PostgreSQL implementation of ApprovalRepository.
type PgApprovalRepository struct {
	db DBTX
}

// NewPgApprovalRepository creates a new PostgreSQL approval repository.
func NewPgApprovalRepository(db DBTX) *PgApprovalRepository {
	return &PgApprovalRepository{db: db}
}

// Upsert writes an approval decision, replacing any existing decision for the
// same (workflow_id, approval_type) pair. The unique index on that pair is the
// idempotency primitive: a retried or resubmitted decision lands on the same
// row instead of accumulating duplicates.
func (r *PgApprovalRepository) Upsert(ctx context.Context, approval *domain.Approval) error {
	if approval == nil {
		return domain.NewValidationError("approval", "approval cannot be nil")
	}
	if approval.WorkflowID == uuid.Nil {
		return domain.NewValidationError("workflow_id", "workflow ID is required")
	}
	if !domain.IsValidApprovalType(approval.ApprovalType) {
		return domain.NewValidationError("approval_type", "unknown approval type")
	}
	if !domain.IsValidDecision(approval.Decision) {
		return domain.NewValidationError("decision", "decision must be approved or rejected")
	}
	if approval.ApproverID == "" {
		return domain.NewValidationError("approver_id", "approver ID is required")
	}

	if approval.ID == uuid.Nil {
		approval.ID = uuid.New()
	}
	now := time.Now().UTC()
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = now
	}
	approval.UpdatedAt = now

	itemsJSON, err := json.Marshal(approval.ApprovedItems)
	if err != nil {
		return fmt.Errorf("failed to marshal approved items: %w", err)
	}

	var resetToStep *string
	if approval.ResetToStep != nil {
		s := string(*approval.ResetToStep)
		resetToStep = &s
	}

	// On conflict the existing row keeps its id and created_at; everything
	// else is overwritten (last write wins).
	query := `
		INSERT INTO workflow_approvals (
			id, workflow_id, approval_type, decision, approver_id,
			feedback, approved_items, reset_to_step,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10
		)
		ON CONFLICT (workflow_id, approval_type) DO UPDATE SET
			decision = EXCLUDED.decision,
			approver_id = EXCLUDED.approver_id,
			feedback = EXCLUDED.feedback,
			approved_items = EXCLUDED.approved_items,
			reset_to_step = EXCLUDED.reset_to_step,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`

	row := r.db.QueryRow(ctx, query,
		approval.ID, approval.WorkflowID, approval.ApprovalType, approval.Decision, approval.ApproverID,
		nullString(approval.Feedback), itemsJSON, resetToStep,
		approval.CreatedAt, approval.UpdatedAt,
	)

	if err := row.Scan(&approval.ID, &approval.CreatedAt, &approval.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert approval: %w", err)
	}

	return nil
}

// GetByType retrieves the approval decision of the given type for a workflow.
func (r *PgApprovalRepository) GetByType(ctx context.Context, workflowID uuid.UUID, approvalType domain.ApprovalType) (*domain.Approval, error) {
	if !domain.IsValidApprovalType(approvalType) {
		return nil, domain.NewValidationError("approval_type", "unknown approval type")
	}

	query := `
		SELECT id, workflow_id, approval_type, decision, approver_id,
			feedback, approved_items, reset_to_step,
			created_at, updated_at
		FROM workflow_approvals
		WHERE workflow_id = $1 AND approval_type = $2`

	row := r.db.QueryRow(ctx, query, workflowID, approvalType)
	approval, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("approval", string(approvalType))
		}
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}

	return approval, nil
}

// ListByWorkflow retrieves all approval decisions recorded for a workflow.
func (r *PgApprovalRepository) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]*domain.Approval, error) {
	query := `
		SELECT id, workflow_id, approval_type, decision, approver_id,
			feedback, approved_items, reset_to_step,
			created_at, updated_at
		FROM workflow_approvals
		WHERE workflow_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*domain.Approval
	for rows.Next() {
		approval, err := scanApprovalFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approvals: %w", err)
	}

	return approvals, nil
}

// approvalScanDest holds the destination pointers for scanning an Approval row.
type approvalScanDest struct {
	approval    domain.Approval
	feedback    *string
	itemsJSON   []byte
	resetToStep *string
}

// destinations returns the slice of pointers for Scan operations.
func (d *approvalScanDest) destinations() []interface{} {
	return []interface{}{
		&d.approval.ID, &d.approval.WorkflowID, &d.approval.ApprovalType, &d.approval.Decision, &d.approval.ApproverID,
		&d.feedback, &d.itemsJSON, &d.resetToStep,
		&d.approval.CreatedAt, &d.approval.UpdatedAt,
	}
}

// finalize performs post-scan processing: sets nullable fields and unmarshals JSON.
func (d *approvalScanDest) finalize() (*domain.Approval, error) {
	if d.feedback != nil {
		d.approval.Feedback = *d.feedback
	}
	if d.resetToStep != nil {
		stage := domain.WorkflowStage(*d.resetToStep)
		d.approval.ResetToStep = &stage
	}

	if len(d.itemsJSON) > 0 {
		if err := json.Unmarshal(d.itemsJSON, &d.approval.ApprovedItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal approved items: %w", err)
		}
	}

	return &d.approval, nil
}

// scanApproval scans a single row into an Approval.
func scanApproval(row pgx.Row) (*domain.Approval, error) {
	var dest approvalScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanApprovalFromRows scans the current row from pgx.Rows into an Approval.
func scanApprovalFromRows(rows pgx.Rows) (*domain.Approval, error) {
	var dest approvalScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// nullString returns a pointer to the string if non-empty, otherwise nil.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
