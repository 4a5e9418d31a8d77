package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

// ApprovalRepository handles approval decision persistence.
//
// Idempotency contract: at most one approval row exists per
// (workflow_id, approval_type). Upsert overwrites the prior decision for
// the same pair rather than failing, which is what makes approval
// endpoints safe under client retry.
type ApprovalRepository interface {
	// Upsert writes an approval decision, replacing any existing decision
	// for the same (workflow_id, approval_type) pair. On replacement the
	// original row's ID and CreatedAt are kept and UpdatedAt advances;
	// the approval argument is updated in place to reflect the stored row.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Upsert(ctx context.Context, approval *domain.Approval) error

	// GetByType retrieves the approval decision of the given type for a workflow.
	// Returns domain.ErrNotFound if no decision has been recorded.
	GetByType(ctx context.Context, workflowID uuid.UUID, approvalType domain.ApprovalType) (*domain.Approval, error)

	// ListByWorkflow retrieves all approval decisions recorded for a workflow,
	// ordered by creation time.
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]*domain.Approval, error)
}
