package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalType identifies which review step an approval decision belongs to.
// These values must match the database enum approval_type.
type ApprovalType string

const (
	// ApprovalTypeSeed records the reviewer's selection of seed keywords.
	ApprovalTypeSeed ApprovalType = "seed_approval"

	// ApprovalTypeSubtopic records a per-unit subtopic decision.
	ApprovalTypeSubtopic ApprovalType = "subtopic_approval"

	// ApprovalTypeHuman records the whole-workflow human review decision.
	ApprovalTypeHuman ApprovalType = "human_approval"
)

// IsValidApprovalType reports whether t is a defined approval type.
func IsValidApprovalType(t ApprovalType) bool {
	switch t {
	case ApprovalTypeSeed, ApprovalTypeSubtopic, ApprovalTypeHuman:
		return true
	default:
		return false
	}
}

// Decision is the outcome of a human or automated review.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// IsValidDecision reports whether d is exactly "approved" or "rejected".
func IsValidDecision(d Decision) bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Approval is a recorded review decision. At most one live row exists per
// (workflow_id, approval_type): a second write for the same pair overwrites
// the prior decision (last-write-wins upsert), which is what makes the
// approval endpoints idempotent under retry and resubmission.
type Approval struct {
	ID           uuid.UUID    `json:"id"`
	WorkflowID   uuid.UUID    `json:"workflow_id"`
	ApprovalType ApprovalType `json:"approval_type"`
	Decision     Decision     `json:"decision"`
	ApproverID   string       `json:"approver_id"`

	// Feedback is optional reviewer commentary.
	Feedback string `json:"feedback,omitempty"`

	// ApprovedItems lists the entity ids the decision covers. Nil means
	// "all" for approvals and is meaningless for rejections.
	ApprovedItems []uuid.UUID `json:"approved_items,omitempty"`

	// ResetToStep is only meaningful for human-approval rejections: the
	// earlier stage the workflow is reset to.
	ResetToStep *WorkflowStage `json:"reset_to_step,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsApproved reports whether the recorded decision is an approval.
func (a *Approval) IsApproved() bool {
	return a.Decision == DecisionApproved
}
