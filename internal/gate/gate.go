// Package gate implements the stage-transition gates of the intent workflow.
//
// A gate is a read-only check that a stage transition's prerequisites are
// satisfied. Being blocked is an expected, frequent outcome, so gates return
// a Result value instead of an error and callers branch on it.
//
// Gates fail open: when the workflow row cannot be read because of an
// infrastructure fault, the gate allows the transition and records that the
// allowance came from an error rather than a real check. Gates protect
// user-facing review steps, not security boundaries, so a store outage must
// not freeze the pipeline. Write paths never inherit this policy.
package gate

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvernon0786/Infin8Content-sub005/internal/audit"
	"github.com/dvernon0786/Infin8Content-sub005/internal/domain"
	"github.com/dvernon0786/Infin8Content-sub005/internal/observability"
	"github.com/dvernon0786/Infin8Content-sub005/internal/repository"
)

// Outcome is the three-way gate verdict. The distinction between Allowed and
// AllowedDueToError is preserved all the way into logs and audit events so a
// fail-open allowance is never mistaken for a real pass.
type Outcome string

const (
	OutcomeAllowed           Outcome = "allowed"
	OutcomeDenied            Outcome = "denied"
	OutcomeAllowedDueToError Outcome = "allowed_due_to_error"
)

// Gate status tokens carried in Result.Status and in 423 responses.
const (
	StatusAllowed     = "allowed"
	StatusApproved    = "approved"
	StatusNotRequired = "not_required"
	StatusBlocked     = "blocked"
	StatusNotFound    = "not_found"
	StatusNotReady    = "not_ready"
	StatusNotApproved = "not_approved"
	StatusRejected    = "rejected"
	StatusError       = "error"
)

// Result is a gate verdict with the machine-readable detail upstream handlers
// need to build a locked response.
type Result struct {
	Outcome Outcome `json:"outcome"`

	// Status is the gate-specific status token.
	Status string `json:"status"`

	// Reason is a human-readable explanation for denials and fail-open allowances.
	Reason string `json:"reason,omitempty"`

	// RequiredAction tells the caller what would unblock a denial.
	RequiredAction string `json:"required_action,omitempty"`

	// WorkflowStatus is the stage observed during the check; empty when the
	// workflow could not be read.
	WorkflowStatus domain.WorkflowStage `json:"workflow_status,omitempty"`

	// MissingPrerequisites names the specific missing sub-stages, when the
	// gate can enumerate them.
	MissingPrerequisites []string `json:"missing_prerequisites,omitempty"`
}

// Allowed reports whether the transition may proceed, whether from a real
// pass or a fail-open allowance.
func (r Result) Allowed() bool {
	return r.Outcome != OutcomeDenied
}

// Validator is a stage-transition gate.
type Validator interface {
	// Name identifies the gate in logs and metrics.
	Name() string

	// AttemptedStep is the stage the gate guards entry to.
	AttemptedStep() domain.WorkflowStage

	// Validate checks the gate for one workflow. It never returns an error:
	// infrastructure faults surface as a fail-open Result.
	Validate(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) Result
}

// actionSet maps the three enforcement outcomes to audit action names.
type actionSet struct {
	allowed string
	blocked string
	errored string
}

// gateBase carries the collaborators shared by all gates and implements the
// per-check enforcement logging.
type gateBase struct {
	name          string
	attemptedStep domain.WorkflowStage
	actions       actionSet

	workflows repository.WorkflowRepository
	recorder  audit.Recorder
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func newGateBase(
	name string,
	attemptedStep domain.WorkflowStage,
	actions actionSet,
	workflows repository.WorkflowRepository,
	recorder audit.Recorder,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) gateBase {
	return gateBase{
		name:          name,
		attemptedStep: attemptedStep,
		actions:       actions,
		workflows:     workflows,
		recorder:      recorder,
		metrics:       metrics,
		logger:        observability.WithGateContext(logger, name, string(attemptedStep)),
	}
}

// Name implements Validator.
func (g *gateBase) Name() string { return g.name }

// AttemptedStep implements Validator.
func (g *gateBase) AttemptedStep() domain.WorkflowStage { return g.attemptedStep }

// loadWorkflow reads the workflow and translates the two failure classes:
// not-found is a denial, anything else is a fail-open allowance.
func (g *gateBase) loadWorkflow(ctx context.Context, actor domain.Actor, workflowID uuid.UUID) (*domain.Workflow, Result, bool) {
	workflow, err := g.workflows.Get(ctx, actor.OrgID, workflowID)
	if err == nil {
		return workflow, Result{}, true
	}

	if isNotFound(err) {
		return nil, Result{
			Outcome:        OutcomeDenied,
			Status:         StatusNotFound,
			Reason:         "workflow not found",
			RequiredAction: "verify the workflow id and organization",
		}, false
	}

	g.logger.Error().Err(err).
		Str("workflow_id", workflowID.String()).
		Msg("gate check failed to read workflow, failing open")

	return nil, Result{
		Outcome: OutcomeAllowedDueToError,
		Status:  StatusError,
		Reason:  "gate check could not read workflow state: " + err.Error(),
	}, false
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// logEnforcement emits exactly one audit event and one metric sample per
// check. Audit failures are swallowed inside the recorder.
func (g *gateBase) logEnforcement(ctx context.Context, actor domain.Actor, workflowID uuid.UUID, result Result) {
	var action, enforcement string
	switch result.Outcome {
	case OutcomeAllowed:
		action, enforcement = g.actions.allowed, "allowed"
	case OutcomeAllowedDueToError:
		action, enforcement = g.actions.errored, "error"
	default:
		action, enforcement = g.actions.blocked, "blocked"
	}

	g.metrics.GateChecks.WithLabelValues(g.name, string(result.Outcome)).Inc()

	details := map[string]interface{}{
		"attempted_step":     string(g.attemptedStep),
		"gate_status":        result.Status,
		"enforcement_action": enforcement,
	}
	if result.Reason != "" && result.Outcome != OutcomeAllowed {
		details["error_message"] = result.Reason
	}
	if len(result.MissingPrerequisites) > 0 {
		details["missing_prerequisites"] = result.MissingPrerequisites
	}
	if result.WorkflowStatus != "" {
		details["workflow_status"] = string(result.WorkflowStatus)
	}

	g.recorder.Record(ctx, audit.Event{
		OrgID:      actor.OrgID,
		ActorID:    actor.ID,
		Action:     action,
		EntityType: domain.EntityTypeWorkflow,
		EntityID:   workflowID.String(),
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Details:    details,
	})
}
