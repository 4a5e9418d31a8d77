package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	orgIDKey      contextKey = "org_id"
	actorIDKey    contextKey = "actor_id"
	workflowIDKey contextKey = "workflow_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithOrgID adds the organization ID to the context.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgIDFromContext retrieves the organization ID from context.
// Returns empty string if not present.
func OrgIDFromContext(ctx context.Context) string {
	if v := ctx.Value(orgIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithActorID adds the acting user ID to the context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey, actorID)
}

// ActorIDFromContext retrieves the acting user ID from context.
// Returns empty string if not present.
func ActorIDFromContext(ctx context.Context) string {
	if v := ctx.Value(actorIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithWorkflowID adds the workflow ID to the context.
func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, workflowIDKey, workflowID)
}

// WorkflowIDFromContext retrieves the workflow ID from context.
// Returns empty string if not present.
func WorkflowIDFromContext(ctx context.Context) string {
	if v := ctx.Value(workflowIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
