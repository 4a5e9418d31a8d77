// Package security provides fuzz tests for the intent workflow service's
// input handling. The primary invariant is that no input should cause a panic
// in JSON parsing, stage-token validation, or request processing.
package security

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

// createWorkflowRequest mirrors the HTTP handler's request struct for fuzz
// testing without importing the internal httpserver package.
type createWorkflowRequest struct {
	Title             string                 `json:"title"`
	ICPContext        map[string]interface{} `json:"icp_context,omitempty"`
	CompetitorContext map[string]interface{} `json:"competitor_context,omitempty"`
}

// seedApprovalRequest mirrors the seed approval handler's request struct.
type seedApprovalRequest struct {
	Decision           string   `json:"decision"`
	ApprovedKeywordIDs []string `json:"approved_keyword_ids,omitempty"`
	Feedback           string   `json:"feedback,omitempty"`
}

// Title bounds matching the constants in the HTTP handler package.
const (
	minTitleLength = 3
	maxTitleLength = 500
)

// FuzzCreateWorkflowTitle tests that arbitrary input to the title field never
// causes a panic during JSON encoding/decoding or the validation logic a real
// request would traverse before reaching the database layer.
func FuzzCreateWorkflowTitle(f *testing.F) {
	seeds := []string{
		// SQL injection payloads
		"'; DROP TABLE intent_workflows; --",
		"1 OR 1=1",
		"' UNION SELECT * FROM workflow_approvals --",

		// XSS payloads
		"<script>alert('xss')</script>",
		`<img src=x onerror=alert('xss')>`,

		// Null bytes and control characters
		"title\x00with\x00nulls",
		"title\nwith\nnewlines",
		"title\twith\ttabs",

		// Unicode edge cases
		"�￾",
		"é́́́",
		strings.Repeat("🚀", 200),

		// Length boundaries
		"",
		"ab",
		"abc",
		strings.Repeat("a", maxTitleLength),
		strings.Repeat("a", maxTitleLength+1),
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, title string) {
		req := createWorkflowRequest{Title: title}

		encoded, err := json.Marshal(req)
		if err != nil {
			// Invalid UTF-8 strings cannot round-trip; that is acceptable
			// as long as nothing panics.
			if utf8.ValidString(title) {
				t.Fatalf("marshal failed on valid UTF-8 title: %v", err)
			}
			return
		}

		var decoded createWorkflowRequest
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			t.Fatalf("unmarshal of marshaled request failed: %v", err)
		}

		// The handler's validation path: trim then bound-check.
		trimmed := strings.TrimSpace(decoded.Title)
		_ = len(trimmed) < minTitleLength || len(trimmed) > maxTitleLength
	})
}

// FuzzStageToken tests that arbitrary stage tokens never panic in stage
// validation or the ordering helpers handlers rely on.
func FuzzStageToken(f *testing.F) {
	seeds := []string{
		"icp_definition",
		"competitor_analysis",
		"seed_keywords",
		"subtopic_approval",
		"article_queuing",
		"completed",
		"COMPLETED",
		"icp_definition ",
		"icp-definition",
		"",
		"\x00",
		"'; DROP TABLE intent_workflows; --",
		strings.Repeat("stage", 10000),
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, token string) {
		stage := domain.WorkflowStage(token)
		valid := domain.IsValidStage(stage)
		if !valid {
			return
		}

		// Valid stages must have consistent ordering helpers.
		next := stage.Next()
		if !domain.IsValidStage(next) {
			t.Fatalf("Next() of valid stage %q produced invalid stage %q", stage, next)
		}
		if stage.IsTerminal() && next != stage {
			t.Fatalf("terminal stage %q advanced to %q", stage, next)
		}
		if !stage.IsTerminal() && !stage.Before(next) {
			t.Fatalf("stage %q does not precede its successor %q", stage, next)
		}
		if !stage.AtOrPast(stage) {
			t.Fatalf("stage %q is not at-or-past itself", stage)
		}
	})
}

// FuzzSeedApprovalBody tests that arbitrary request bodies for the seed
// approval endpoint never panic during decoding or keyword-ID parsing.
func FuzzSeedApprovalBody(f *testing.F) {
	seeds := []string{
		`{"decision":"approved","approved_keyword_ids":["` + uuid.New().String() + `"]}`,
		`{"decision":"rejected","feedback":"needs work"}`,
		`{"decision":"maybe"}`,
		`{"approved_keyword_ids":["not-a-uuid"]}`,
		`{"approved_keyword_ids":[null]}`,
		`{"decision":123}`,
		`{"decision":{"nested":"object"}}`,
		`[]`,
		`null`,
		``,
		`{`,
		strings.Repeat(`{"decision":`, 1000),
		`{"decision":"approved","approved_keyword_ids":[` + strings.Repeat(`"x",`, 5000) + `"x"]}`,
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, body string) {
		var req seedApprovalRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return
		}

		// The handler's parsing path after a successful decode.
		_ = domain.Decision(req.Decision) == domain.DecisionApproved
		for _, raw := range req.ApprovedKeywordIDs {
			if _, err := uuid.Parse(raw); err != nil {
				return
			}
		}
	})
}
