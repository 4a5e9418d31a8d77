package domain

import (
	"time"

	"github.com/google/uuid"
)

// ArticleStatus represents the generation state of an article work-item.
// These values must match the database enum article_status.
type ArticleStatus string

const (
	ArticleStatusQueued        ArticleStatus = "queued"
	ArticleStatusGenerating    ArticleStatus = "generating"
	ArticleStatusCompleted     ArticleStatus = "completed"
	ArticleStatusPublished     ArticleStatus = "published"
	ArticleStatusFailed        ArticleStatus = "failed"
	ArticleStatusPlannerFailed ArticleStatus = "planner_failed"
)

// LinkStatus represents the article-to-workflow linking state.
// These values must match the database enum workflow_link_status.
type LinkStatus string

const (
	LinkStatusNotLinked LinkStatus = "not_linked"
	LinkStatusLinking   LinkStatus = "linking"
	LinkStatusLinked    LinkStatus = "linked"
	LinkStatusFailed    LinkStatus = "failed"
)

// Article is one article work-item created from an approved keyword unit.
// At most one article exists per (workflow_id, keyword_unit_id); the store
// enforces this with a unique index, which is the idempotency primitive for
// queuing.
type Article struct {
	ID            uuid.UUID `json:"id"`
	WorkflowID    uuid.UUID `json:"workflow_id"`
	KeywordUnitID uuid.UUID `json:"keyword_unit_id"`
	OrgID         string    `json:"org_id"`

	Keyword   string     `json:"keyword"`
	Subtopics []Subtopic `json:"subtopics,omitempty"`

	// ICPContext and CompetitorContext are frozen at queue time from the
	// workflow snapshots; downstream generation never re-fetches them.
	ICPContext        map[string]interface{} `json:"icp_context,omitempty"`
	CompetitorContext map[string]interface{} `json:"competitor_context,omitempty"`

	Status     ArticleStatus `json:"status"`
	LinkStatus LinkStatus    `json:"workflow_link_status"`

	// ErrorMessage holds the dispatch or generation failure detail, if any.
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Linkable reports whether the article may be linked to its workflow: the
// underlying generation must have finished and the article must not already
// be linked.
func (a *Article) Linkable() bool {
	if a.LinkStatus == LinkStatusLinked {
		return false
	}
	return a.Status == ArticleStatusCompleted || a.Status == ArticleStatusPublished
}
