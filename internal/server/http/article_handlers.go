package httpserver

import (
	"fmt"
	"net/http"
)

// queueArticles handles POST /articles/queue. Partial dispatch failure is a
// 207 with a warning; the batch itself still succeeded.
func (s *Server) queueArticles(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !actor.IsAuthenticated() {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	workflowID, ok := workflowIDFromRequest(w, r)
	if !ok {
		return
	}

	result, err := s.queuer.Queue(r.Context(), actor, workflowID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	status := http.StatusOK
	warning := ""
	if len(result.Errors) > 0 {
		status = http.StatusMultiStatus
		warning = fmt.Sprintf("%d unit(s) failed to dispatch to the Planner Agent", len(result.Errors))
	}

	writeJSON(w, status, successResponse{
		Success: true,
		Data:    result,
		Warning: warning,
	})
}

// linkArticles handles POST /articles/link.
func (s *Server) linkArticles(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !actor.IsAuthenticated() {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	workflowID, ok := workflowIDFromRequest(w, r)
	if !ok {
		return
	}

	result, err := s.linker.Link(r.Context(), actor, workflowID)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true, Data: result})
}
