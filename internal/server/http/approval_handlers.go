package httpserver

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dvernon0786/Infin8Content-sub005/internal/approval"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

// seedApprovalRequest is the JSON request body for POST /approvals/seed.
type seedApprovalRequest struct {
	Decision           string   `json:"decision"`
	ApprovedKeywordIDs []string `json:"approved_keyword_ids,omitempty"`
	Feedback           string   `json:"feedback,omitempty"`
}

// subtopicApprovalRequest is the JSON request body for POST /approvals/subtopic.
type subtopicApprovalRequest struct {
	KeywordUnitID string `json:"keyword_unit_id"`
	Decision      string `json:"decision"`
	Feedback      string `json:"feedback,omitempty"`
}

// humanApprovalRequest is the JSON request body for POST /approvals/human.
type humanApprovalRequest struct {
	Decision    string `json:"decision"`
	Feedback    string `json:"feedback,omitempty"`
	ResetToStep string `json:"reset_to_step,omitempty"`
}

func (s *Server) seedApprovalHandler(w http.ResponseWriter, r *http.Request) {
	workflowID, ok := workflowIDFromRequest(w, r)
	if !ok {
		return
	}

	var req seedApprovalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ids := make([]uuid.UUID, 0, len(req.ApprovedKeywordIDs))
	for _, raw := range req.ApprovedKeywordIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "approved_keyword_ids contains an invalid id: "+raw)
			return
		}
		ids = append(ids, id)
	}

	s.processApproval(w, r, s.seedApproval, workflowID, approval.Request{
		Decision:           domain.Decision(req.Decision),
		Feedback:           req.Feedback,
		ApprovedKeywordIDs: ids,
	})
}

func (s *Server) subtopicApprovalHandler(w http.ResponseWriter, r *http.Request) {
	workflowID, ok := workflowIDFromRequest(w, r)
	if !ok {
		return
	}

	var req subtopicApprovalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var unitID uuid.UUID
	if req.KeywordUnitID != "" {
		parsed, err := uuid.Parse(req.KeywordUnitID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid keyword_unit_id")
			return
		}
		unitID = parsed
	}

	s.processApproval(w, r, s.subtopicApproval, workflowID, approval.Request{
		Decision:      domain.Decision(req.Decision),
		Feedback:      req.Feedback,
		KeywordUnitID: unitID,
	})
}

func (s *Server) humanApprovalHandler(w http.ResponseWriter, r *http.Request) {
	workflowID, ok := workflowIDFromRequest(w, r)
	if !ok {
		return
	}

	var req humanApprovalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var resetToStep *domain.WorkflowStage
	if req.ResetToStep != "" {
		stage := domain.WorkflowStage(req.ResetToStep)
		if !domain.IsValidStage(stage) {
			writeError(w, http.StatusBadRequest, "reset_to_step is not a valid stage")
			return
		}
		resetToStep = &stage
	}

	s.processApproval(w, r, s.humanApproval, workflowID, approval.Request{
		Decision:    domain.Decision(req.Decision),
		Feedback:    req.Feedback,
		ResetToStep: resetToStep,
	})
}

// processApproval runs one approval processor and writes the shared response
// shape.
func (s *Server) processApproval(w http.ResponseWriter, r *http.Request, processor approval.Processor, workflowID uuid.UUID, req approval.Request) {
	actor := actorFromContext(r.Context())

	result, err := processor.Process(r.Context(), actor, workflowID, req)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true, Data: result})
}
