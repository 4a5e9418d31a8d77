// Package audit publishes workflow audit events. Recording is best-effort:
// a publish failure is logged and counted but never propagated to the caller,
// so a broker outage cannot fail a gate check or an approval write.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one audit record emitted for a gate decision, approval write,
// queue run, or link run.
type Event struct {
	ID         uuid.UUID              `json:"id"`
	OrgID      string                 `json:"org_id"`
	ActorID    string                 `json:"actor_id"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Recorder records audit events.
type Recorder interface {
	// Record publishes the event. Implementations must not return publish
	// failures to the caller; audit is advisory, never load-bearing.
	Record(ctx context.Context, event Event)

	// Close releases the recorder's resources.
	Close() error
}

// NopRecorder discards all events. Used when auditing is disabled and in tests.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(ctx context.Context, event Event) {}

// Close implements Recorder.
func (NopRecorder) Close() error { return nil }
