package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubtopicStatus represents the per-unit subtopic generation sub-status.
// These values must match the database enum subtopic_status.
type SubtopicStatus string

const (
	// SubtopicStatusNotStarted means subtopic generation has not run, or a
	// rejection forced regeneration.
	SubtopicStatusNotStarted SubtopicStatus = "not_started"

	// SubtopicStatusGenerating means subtopic generation is in flight.
	SubtopicStatusGenerating SubtopicStatus = "generating"

	// SubtopicStatusComplete means subtopics were generated and the unit is
	// eligible for reviewer approval.
	SubtopicStatusComplete SubtopicStatus = "complete"

	// SubtopicStatusReady means the unit was approved and is eligible for
	// article queuing.
	SubtopicStatusReady SubtopicStatus = "ready"

	// SubtopicStatusFailed means subtopic generation failed.
	SubtopicStatusFailed SubtopicStatus = "failed"
)

// Subtopic is one generated subtopic entry on a keyword unit.
type Subtopic struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

// KeywordUnit is an approved keyword/subtopic record belonging to a workflow.
// One unit in status "ready" becomes exactly one article work-item when the
// queuing stage runs.
type KeywordUnit struct {
	ID         uuid.UUID `json:"id"`
	WorkflowID uuid.UUID `json:"workflow_id"`

	// Keyword is the clustered longtail keyword the unit represents.
	Keyword string `json:"keyword"`

	// Approved marks units selected during seed approval.
	Approved bool `json:"approved"`

	// SubtopicStatus tracks subtopic generation progress for the unit.
	SubtopicStatus SubtopicStatus `json:"subtopic_status"`

	// Subtopics are the generated subtopic entries (title + tags).
	Subtopics []Subtopic `json:"subtopics,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EligibleForApproval reports whether the unit's subtopics can be reviewed.
func (u *KeywordUnit) EligibleForApproval() bool {
	return u.SubtopicStatus == SubtopicStatusComplete
}

// EligibleForQueuing reports whether the unit can become an article work-item.
func (u *KeywordUnit) EligibleForQueuing() bool {
	return u.SubtopicStatus == SubtopicStatusReady
}
