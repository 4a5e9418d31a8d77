package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/gate"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"
)

// Validation constants.
const (
	minTitleLength     = 3
	maxTitleLength     = 500
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// createWorkflowRequest is the JSON request body for creating a workflow.
type createWorkflowRequest struct {
	Title             string                 `json:"title"`
	ICPContext        map[string]interface{} `json:"icp_context,omitempty"`
	CompetitorContext map[string]interface{} `json:"competitor_context,omitempty"`
}

// advanceWorkflowRequest optionally pins the stage the caller believes the
// workflow is at, so a concurrent advance turns into a clean conflict instead
// of a double step.
type advanceWorkflowRequest struct {
	ExpectedCurrentStage string `json:"expected_current_stage,omitempty"`
}

// decodeBody reads and unmarshals a size-limited JSON request body.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// workflowIDFromRequest parses the workflowID path parameter.
func workflowIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow id")
		return uuid.Nil, false
	}
	return id, true
}

// createWorkflow handles POST /api/v1/orgs/{orgID}/workflows.
func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !actor.IsAuthenticated() {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req createWorkflowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if len(req.Title) < minTitleLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("title must be at least %d characters", minTitleLength))
		return
	}
	if len(req.Title) > maxTitleLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("title must be at most %d characters", maxTitleLength))
		return
	}

	now := time.Now().UTC()
	workflow := &domain.Workflow{
		ID:                uuid.New(),
		OrgID:             actor.OrgID,
		CreatedBy:         actor.ID,
		Title:             req.Title,
		Status:            domain.StageICPDefinition,
		ICPContext:        req.ICPContext,
		CompetitorContext: req.CompetitorContext,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.workflows.Create(r.Context(), workflow); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, successResponse{
		Success: true,
		Data:    domainWorkflowToResponse(workflow),
	})
}

// getWorkflow handles GET /api/v1/orgs/{orgID}/workflows/{workflowID}.
func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	workflowID, ok := workflowIDFromRequest(w, r)
	if !ok {
		return
	}

	workflow, err := s.workflows.Get(r.Context(), actor.OrgID, workflowID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Data:    domainWorkflowToResponse(workflow),
	})
}

// listWorkflows handles GET /api/v1/orgs/{orgID}/workflows.
func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	filter := repository.WorkflowFilter{OrgID: actor.OrgID}
	if statuses := r.URL.Query()["status"]; len(statuses) > 0 {
		for _, status := range statuses {
			filter.Status = append(filter.Status, domain.WorkflowStage(status))
		}
	}

	workflows, total, err := s.workflows.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	resp := listWorkflowsResponse{
		Workflows:  make([]workflowResponse, 0, len(workflows)),
		TotalCount: total,
	}
	for _, workflow := range workflows {
		resp.Workflows = append(resp.Workflows, domainWorkflowToResponse(workflow))
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true, Data: resp})
}

// advanceWorkflow handles POST /api/v1/orgs/{orgID}/workflows/{workflowID}/advance.
// Upstream stage logic calls this after a non-gated stage completes; the
// workflow moves forward exactly one step.
func (s *Server) advanceWorkflow(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !actor.IsAuthenticated() {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	workflowID, ok := workflowIDFromRequest(w, r)
	if !ok {
		return
	}

	var req advanceWorkflowRequest
	if !decodeBody(w, r, &req) {
		return
	}

	workflow, err := s.workflows.Get(r.Context(), actor.OrgID, workflowID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	current := workflow.Status
	if req.ExpectedCurrentStage != "" {
		current = domain.WorkflowStage(req.ExpectedCurrentStage)
		if !domain.IsValidStage(current) {
			writeError(w, http.StatusBadRequest, "expected_current_stage is not a valid stage")
			return
		}
	}

	if current.IsTerminal() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Invalid workflow state",
			"message": "workflow is already at its terminal stage",
		})
		return
	}
	next := current.Next()

	if err := s.workflows.AdvanceStage(r.Context(), actor.OrgID, workflowID, current, next); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Data: map[string]string{
			"workflow_id": workflowID.String(),
			"status":      string(next),
		},
	})
}

// gateHandler adapts a gate validator to GET /gates/* endpoints.
func (s *Server) gateHandler(validator gate.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromContext(r.Context())
		workflowID, ok := workflowIDFromRequest(w, r)
		if !ok {
			return
		}

		result := validator.Validate(r.Context(), actor, workflowID)
		writeGateResult(w, validator.AttemptedStep(), result)
	}
}
