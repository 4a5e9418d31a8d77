package httpserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
)

type contextKey string

const ctxKeyActor contextKey = "actor"

// Identity headers set by the upstream gateway. The gateway terminates
// authentication; this service only reads the verified identity it forwards.
const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// actorContextMiddleware builds the caller identity from the gateway headers
// and the org path parameter and stores it in the request context. Requests
// without an identity still pass through: each operation decides its own
// authority requirements.
func actorContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := chi.URLParam(r, "orgID")
		if orgID == "" {
			writeError(w, http.StatusBadRequest, "org_id is required")
			return
		}

		actor := domain.Actor{
			ID:        r.Header.Get(headerActorID),
			OrgID:     orgID,
			Role:      domain.Role(r.Header.Get(headerActorRole)),
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		}

		ctx := context.WithValue(r.Context(), ctxKeyActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// correlationIDMiddleware ensures every request has a correlation ID.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			buf := make([]byte, 8)
			if _, err := rand.Read(buf); err != nil {
				// Fallback to timestamp-based ID if crypto/rand fails.
				correlationID = fmt.Sprintf("%x", time.Now().UnixNano())
			} else {
				correlationID = fmt.Sprintf("%x", buf)
			}
		}

		w.Header().Set("X-Correlation-ID", correlationID)
		next.ServeHTTP(w, r)
	})
}

// jsonContentTypeMiddleware sets Content-Type: application/json for all responses.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// actorFromContext extracts the caller identity from the request context.
func actorFromContext(ctx context.Context) domain.Actor {
	if v, ok := ctx.Value(ctxKeyActor).(domain.Actor); ok {
		return v
	}
	return domain.Actor{}
}
