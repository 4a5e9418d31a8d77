// Package domain provides domain models and business logic for the intent workflow service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStage represents one step in the ordered intent workflow pipeline.
// These values must match the database enum workflow_stage.
type WorkflowStage string

const (
	StageICPDefinition      WorkflowStage = "icp_definition"
	StageCompetitorAnalysis WorkflowStage = "competitor_analysis"
	StageSeedKeywords       WorkflowStage = "seed_keywords"
	StageLongtailExpansion  WorkflowStage = "longtail_expansion"
	StageFiltering          WorkflowStage = "filtering"
	StageClustering         WorkflowStage = "clustering"
	StageValidation         WorkflowStage = "validation"
	StageSubtopicApproval   WorkflowStage = "subtopic_approval"
	StageArticleQueuing     WorkflowStage = "article_queuing"
	StageArticleLinking     WorkflowStage = "article_linking"
	StageCompleted          WorkflowStage = "completed"
)

// stageOrder is the single source of truth for stage ordering. Every
// at-or-past check is an index comparison over this slice, so adding a
// stage is a one-place change.
var stageOrder = []WorkflowStage{
	StageICPDefinition,
	StageCompetitorAnalysis,
	StageSeedKeywords,
	StageLongtailExpansion,
	StageFiltering,
	StageClustering,
	StageValidation,
	StageSubtopicApproval,
	StageArticleQueuing,
	StageArticleLinking,
	StageCompleted,
}

// stageIndex maps each stage to its position in stageOrder.
var stageIndex = func() map[WorkflowStage]int {
	m := make(map[WorkflowStage]int, len(stageOrder))
	for i, s := range stageOrder {
		m[s] = i
	}
	return m
}()

// Stages returns the full ordered stage enumeration.
func Stages() []WorkflowStage {
	out := make([]WorkflowStage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// IsValidStage reports whether s is a defined workflow stage.
func IsValidStage(s WorkflowStage) bool {
	_, ok := stageIndex[s]
	return ok
}

// Index returns the position of the stage in the pipeline order,
// or -1 if the stage is not a defined token.
func (s WorkflowStage) Index() int {
	i, ok := stageIndex[s]
	if !ok {
		return -1
	}
	return i
}

// AtOrPast reports whether s is at or past the given stage in pipeline order.
// It returns false when either stage is not a defined token.
func (s WorkflowStage) AtOrPast(other WorkflowStage) bool {
	si, ok := stageIndex[s]
	if !ok {
		return false
	}
	oi, ok := stageIndex[other]
	if !ok {
		return false
	}
	return si >= oi
}

// Before reports whether s precedes the given stage in pipeline order.
func (s WorkflowStage) Before(other WorkflowStage) bool {
	si, ok := stageIndex[s]
	if !ok {
		return false
	}
	oi, ok := stageIndex[other]
	if !ok {
		return false
	}
	return si < oi
}

// Next returns the stage that follows s in pipeline order. The terminal
// stage returns itself.
func (s WorkflowStage) Next() WorkflowStage {
	i, ok := stageIndex[s]
	if !ok || i == len(stageOrder)-1 {
		return s
	}
	return stageOrder[i+1]
}

// IsTerminal returns true if the stage is the final pipeline stage.
func (s WorkflowStage) IsTerminal() bool {
	return s == StageCompleted
}

// Workflow represents one content campaign's intent workflow. The Status
// field is the authoritative stage pointer: every stage processor reads
// and advances it, and no caller infers stage from derived data.
type Workflow struct {
	ID uuid.UUID `json:"id"`

	// OrgID is the owning organization; immutable after creation.
	OrgID string `json:"org_id"`

	// CreatedBy is the user that started the campaign.
	CreatedBy string `json:"created_by"`

	// Title is the campaign title.
	Title string `json:"title"`

	// Status is the current pipeline stage.
	Status WorkflowStage `json:"status"`

	// ICPContext and CompetitorContext are snapshots produced by the
	// ICP-definition and competitor-analysis stages. They are copied
	// forward into article work-items at queue time, never re-fetched.
	ICPContext        map[string]interface{} `json:"icp_context,omitempty"`
	CompetitorContext map[string]interface{} `json:"competitor_context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BelongsTo reports whether the workflow is owned by the given organization.
func (w *Workflow) BelongsTo(orgID string) bool {
	return w.OrgID == orgID
}

// IsCompleted returns true once the workflow has reached the terminal stage.
func (w *Workflow) IsCompleted() bool {
	return w.Status.IsTerminal()
}

// Role represents the authority level of a caller within an organization.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Actor is the resolved caller identity attached to a request. Session
// verification happens upstream at the gateway; this service only consumes
// the resolved identity.
type Actor struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Role  Role   `json:"role"`

	// IPAddress and UserAgent are carried through for audit events only.
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// IsAuthenticated reports whether the actor carries a caller identity.
func (a Actor) IsAuthenticated() bool {
	return a.ID != ""
}

// IsAdmin reports whether the actor holds the admin role in its organization.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsOrgAdmin reports whether the actor is an admin of the given organization.
func (a Actor) IsOrgAdmin(orgID string) bool {
	return a.OrgID == orgID && a.IsAdmin()
}
