package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/gate"
)

// successResponse is the 200 envelope for stage-advance and processor calls.
type successResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Warning string      `json:"warning,omitempty"`
}

type workflowResponse struct {
	WorkflowID        string                 `json:"workflow_id"`
	OrgID             string                 `json:"org_id"`
	CreatedBy         string                 `json:"created_by"`
	Title             string                 `json:"title"`
	Status            string                 `json:"status"`
	ICPContext        map[string]interface{} `json:"icp_context,omitempty"`
	CompetitorContext map[string]interface{} `json:"competitor_context,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

type listWorkflowsResponse struct {
	Workflows  []workflowResponse `json:"workflows"`
	TotalCount int64              `json:"total_count"`
}

// lockedResponse is the 423 payload for a gate denial.
type lockedResponse struct {
	Error                string   `json:"error"`
	WorkflowStatus       string   `json:"workflowStatus,omitempty"`
	GateSpecificStatus   string   `json:"gateSpecificStatus"`
	MissingPrerequisites []string `json:"missingPrerequisites,omitempty"`
	RequiredAction       string   `json:"requiredAction,omitempty"`
	CurrentStep          string   `json:"currentStep,omitempty"`
	BlockedAt            string   `json:"blockedAt"`
}

// gateResponse is the 200 payload for an allowed gate check.
type gateResponse struct {
	Allowed        bool   `json:"allowed"`
	Status         string `json:"status"`
	WorkflowStatus string `json:"workflow_status,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

func domainWorkflowToResponse(workflow *domain.Workflow) workflowResponse {
	return workflowResponse{
		WorkflowID:        workflow.ID.String(),
		OrgID:             workflow.OrgID,
		CreatedBy:         workflow.CreatedBy,
		Title:             workflow.Title,
		Status:            string(workflow.Status),
		ICPContext:        workflow.ICPContext,
		CompetitorContext: workflow.CompetitorContext,
		CreatedAt:         workflow.CreatedAt,
		UpdatedAt:         workflow.UpdatedAt,
	}
}

// writeGateResult maps a gate verdict to 200 (allowed, including fail-open)
// or 423 (denied).
func writeGateResult(w http.ResponseWriter, attemptedStep domain.WorkflowStage, result gate.Result) {
	if result.Allowed() {
		writeJSON(w, http.StatusOK, successResponse{
			Success: true,
			Data: gateResponse{
				Allowed:        true,
				Status:         result.Status,
				WorkflowStatus: string(result.WorkflowStatus),
				Reason:         result.Reason,
			},
		})
		return
	}

	writeJSON(w, http.StatusLocked, lockedResponse{
		Error:                result.Reason,
		WorkflowStatus:       string(result.WorkflowStatus),
		GateSpecificStatus:   result.Status,
		MissingPrerequisites: result.MissingPrerequisites,
		RequiredAction:       result.RequiredAction,
		CurrentStep:          string(attemptedStep),
		BlockedAt:            time.Now().UTC().Format(time.RFC3339),
	})
}

// writeDomainError maps the error taxonomy to HTTP status codes. Anything not
// classified is an infrastructure failure and surfaces as a 500.
func writeDomainError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "Admin access required")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Workflow not found")
	case errors.Is(err, domain.ErrInvalidState):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Invalid workflow state",
			"message": err.Error(),
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
