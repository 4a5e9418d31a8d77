package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

// KeywordUnitRepository handles keyword unit persistence: seed-approval
// selection, subtopic generation sub-status, and queue eligibility.
type KeywordUnitRepository interface {
	// Create inserts a new keyword unit.
	// Returns domain.ErrAlreadyExists if a unit with the same ID already exists.
	Create(ctx context.Context, unit *domain.KeywordUnit) error

	// Get retrieves a keyword unit by its ID.
	// Returns domain.ErrNotFound if no matching unit exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.KeywordUnit, error)

	// ListByWorkflow retrieves all keyword units belonging to a workflow,
	// ordered by creation time.
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]*domain.KeywordUnit, error)

	// ListQueueable retrieves up to limit approved units in subtopic status
	// "ready", ordered by creation time. These are the units the queuing
	// stage fans out into article work-items.
	ListQueueable(ctx context.Context, workflowID uuid.UUID, limit int) ([]*domain.KeywordUnit, error)

	// MarkApproved marks the given units as selected during seed approval.
	// Units outside the workflow are ignored. Returns the number of units updated.
	MarkApproved(ctx context.Context, workflowID uuid.UUID, unitIDs []uuid.UUID) (int, error)

	// SetSubtopicStatus sets the subtopic sub-status on the given units.
	// An empty unitIDs slice updates every unit in the workflow.
	// Returns the number of units updated.
	SetSubtopicStatus(ctx context.Context, workflowID uuid.UUID, unitIDs []uuid.UUID, status domain.SubtopicStatus) (int, error)

	// SetSubtopics stores generated subtopics on a unit and moves it to
	// subtopic status "complete".
	// Returns domain.ErrNotFound if no matching unit exists.
	SetSubtopics(ctx context.Context, id uuid.UUID, subtopics []domain.Subtopic) error

	// CountByStatus returns how many units in the workflow are in each
	// subtopic sub-status.
	CountByStatus(ctx context.Context, workflowID uuid.UUID) (map[domain.SubtopicStatus]int, error)
}
