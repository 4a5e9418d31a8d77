package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

// WorkflowRepository handles intent workflow persistence and stage management.
// It provides methods for creating, retrieving, updating, and listing workflows
// with tenant isolation through organization scoping.
type WorkflowRepository interface {
	// Create inserts a new intent workflow.
	// The workflow must have a valid ID, OrgID, and CreatedBy.
	// Returns domain.ErrAlreadyExists if a workflow with the same ID already exists.
	// Returns domain.ErrInvalidInput if required fields are missing.
	Create(ctx context.Context, workflow *domain.Workflow) error

	// Get retrieves an intent workflow by its ID within a tenant context.
	// The orgID parameter enforces tenant isolation; a workflow belonging to
	// another organization is reported as not found, never as forbidden.
	// Returns domain.ErrNotFound if no matching workflow exists.
	Get(ctx context.Context, orgID string, id uuid.UUID) (*domain.Workflow, error)

	// Update performs an optimistic update on a workflow using SELECT FOR UPDATE.
	// The provided function receives the current workflow state and should return
	// an error if the update should be aborted. Changes made to the workflow in
	// the function are persisted.
	// Returns domain.ErrNotFound if no matching workflow exists.
	//
	// Concurrent update behavior:
	//   - If the row lock cannot be acquired before context deadline, returns context.DeadlineExceeded.
	//   - If the provided function returns an error, the transaction is rolled back and that error is returned.
	Update(ctx context.Context, orgID string, id uuid.UUID, fn func(*domain.Workflow) error) error

	// AdvanceStage moves the workflow from the expected current stage to the
	// given next stage. The move must be a single forward step or a backward
	// reset; skipping stages forward is rejected.
	// Returns domain.ErrInvalidState if the workflow is not at expectedCurrent.
	// Returns domain.ErrNotFound if no matching workflow exists.
	AdvanceStage(ctx context.Context, orgID string, id uuid.UUID, expectedCurrent, next domain.WorkflowStage) error

	// List retrieves intent workflows matching the filter criteria.
	// Returns the matching workflows and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter WorkflowFilter) ([]*domain.Workflow, int64, error)
}

// WorkflowFilter specifies criteria for listing intent workflows.
type WorkflowFilter struct {
	// OrgID filters by organization ID (required for tenant isolation).
	OrgID string

	// Status filters by one or more workflow stages (optional).
	// When multiple stages are provided, workflows matching any stage are returned.
	Status []domain.WorkflowStage

	// CreatedBy filters by the creating user (optional).
	CreatedBy string

	// CreatedAfter filters to workflows created after this timestamp (optional).
	CreatedAfter *time.Time

	// CreatedBefore filters to workflows created before this timestamp (optional).
	CreatedBefore *time.Time

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
// Returns domain.ErrInvalidInput if OrgID is empty.
func (f *WorkflowFilter) Validate() error {
	if f.OrgID == "" {
		return domain.NewValidationError("org_id", "organization ID is required")
	}

	applyPaginationDefaults(&f.Limit, &f.Offset)

	return nil
}
