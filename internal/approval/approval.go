// Package approval records human decisions for a workflow and moves the
// workflow stage accordingly.
//
// All three processors share one algorithm: check caller authority, load the
// workflow and verify it sits at the exact stage the approval type expects,
// validate the decision payload, upsert the approval row keyed by
// (workflow_id, approval_type), apply the stage or unit-status effect, and
// emit an audit event. Unlike gate checks, every step here is a write path:
// infrastructure errors surface to the caller and never fail open.
package approval

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvernon0786/Infin8Content-sub005/internal/audit"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"
)

// Request carries the caller's decision. Which optional fields are consulted
// depends on the processor: seed approval reads ApprovedKeywordIDs, subtopic
// approval reads KeywordUnitID, human approval reads ResetToStep.
type Request struct {
	Decision           domain.Decision
	Feedback           string
	ApprovedKeywordIDs []uuid.UUID
	KeywordUnitID      uuid.UUID
	ResetToStep        *domain.WorkflowStage
}

// Result reports the recorded approval and the workflow stage after any
// advance or reset.
type Result struct {
	Success           bool                 `json:"success"`
	ApprovalID        uuid.UUID            `json:"approval_id"`
	WorkflowID        uuid.UUID            `json:"workflow_id"`
	ApprovalType      domain.ApprovalType  `json:"approval_type"`
	Decision          domain.Decision      `json:"decision"`
	NewWorkflowStatus domain.WorkflowStage `json:"new_workflow_status"`

	// UpdatedUnits counts keyword units whose state changed, for the seed and
	// subtopic variants.
	UpdatedUnits int `json:"updated_units,omitempty"`

	Message string `json:"message,omitempty"`
}

// Processor records one approval type for a workflow.
type Processor interface {
	Process(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, req Request) (*Result, error)
}

// auditActions maps the two decisions to audit action names.
type auditActions struct {
	approved string
	rejected string
}

// core implements the parts of the shared algorithm the three variants have
// in common.
type core struct {
	approvalType  domain.ApprovalType
	expectedStage domain.WorkflowStage
	requireAdmin  bool
	actions       auditActions

	workflows repository.WorkflowRepository
	approvals repository.ApprovalRepository
	recorder  audit.Recorder
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// authorize enforces the caller identity and role rules. Missing identity is
// always an error; the admin role is required only where the variant says so.
func (c *core) authorize(actor domain.Actor) error {
	if !actor.IsAuthenticated() {
		return fmt.Errorf("%s requires an authenticated caller: %w", c.approvalType, domain.ErrUnauthenticated)
	}
	if c.requireAdmin && !actor.IsAdmin() {
		return fmt.Errorf("%s requires the organization admin role: %w", c.approvalType, domain.ErrForbidden)
	}
	return nil
}

// loadAtStage fetches the workflow scoped to the caller's organization and
// verifies it sits at exactly the stage this approval type expects.
func (c *core) loadAtStage(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) (*domain.Workflow, error) {
	workflow, err := c.workflows.Get(ctx, actor.OrgID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow for %s: %w", c.approvalType, err)
	}
	if workflow.Status != c.expectedStage {
		return nil, domain.NewInvalidStateError(string(c.approvalType), workflow.Status, c.expectedStage)
	}
	return workflow, nil
}

func (c *core) validateDecision(decision domain.Decision) error {
	if !domain.IsValidDecision(decision) {
		return domain.NewValidationError("decision", "must be approved or rejected")
	}
	return nil
}

// upsert writes the approval row. Calling twice for the same workflow and
// approval type replaces the prior decision instead of duplicating it.
func (c *core) upsert(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, req Request, approvedItems []uuid.UUID) (*domain.Approval, error) {
	approval := &domain.Approval{
		WorkflowID:    workflowID,
		ApprovalType:  c.approvalType,
		Decision:      req.Decision,
		ApproverID:    actor.ID,
		Feedback:      req.Feedback,
		ApprovedItems: approvedItems,
		ResetToStep:   req.ResetToStep,
	}
	if err := c.approvals.Upsert(ctx, approval); err != nil {
		return nil, fmt.Errorf("record %s: %w", c.approvalType, err)
	}
	c.metrics.ApprovalsRecorded.WithLabelValues(string(c.approvalType), string(req.Decision)).Inc()
	return approval, nil
}

// recordAudit emits the approval audit event. Best effort.
func (c *core) recordAudit(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, req Request, details map[string]interface{}) {
	action := c.actions.rejected
	if req.Decision == domain.DecisionApproved {
		action = c.actions.approved
	}

	if details == nil {
		details = map[string]interface{}{}
	}
	details["attempted_step"] = string(c.expectedStage)
	details["decision"] = string(req.Decision)
	if req.Feedback != "" {
		details["feedback"] = req.Feedback
	}
	if req.ResetToStep != nil {
		details["reset_to_step"] = string(*req.ResetToStep)
	}

	c.recorder.Record(ctx, audit.Event{
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
