package orchestrator

import (
	"github.com/fyrsmithlabs/thinkd/internal/catalog"
	"github.com/fyrsmithlabs/thinkd/internal/options"
	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/warning"
)

// DiscoverRequest asks for techniques ranked against a problem.
type DiscoverRequest struct {
	// Problem is the problem statement. Required.
	Problem string

	// Outcome optionally biases ranking toward a desired outcome.
	Outcome catalog.Outcome

	// SessionID optionally supplies session context; the session's
	// current flexibility then biases ranking toward recovery
	// techniques. Discovery never mutates the session.
	SessionID string
}

// DiscoverResponse is the ranked technique list with rationale.
type DiscoverResponse struct {
	Techniques []catalog.Ranked
}

// PlanRequest creates a new session over an ordered technique list.
type PlanRequest struct {
	// Problem is carried onto the session for discovery context and
	// export. Optional.
	Problem string

	// TechniqueIDs is the ordered plan. Required, every id must exist
	// in the catalog.
	TechniqueIDs []string

	// TimeBudget controls step scheduling. Required.
	TimeBudget session.TimeBudget
}

// PlanResponse identifies the created session and its schedule.
type PlanResponse struct {
	SessionID string
	Steps     []session.PlannedStep
}

// ExecuteRequest records one step against a session.
type ExecuteRequest struct {
	SessionID string
	StepIndex int
	Content   string

	// TechniqueID optionally asserts which technique this step
	// executes; a mismatch with the declared plan is rejected.
	TechniqueID string

	// RevisesStepIndex marks this as a revision of an executed step.
	RevisesStepIndex *int

	// BranchID records the step on an alternate continuation.
	BranchID string

	// Impact optionally overrides the engine's content-based
	// assessment, e.g. when accepting a generated option.
	Impact *session.Impact

	// FromOption marks the step as an accepted option candidate.
	FromOption bool

	// RequestOptions forces option generation even when not mandated.
	RequestOptions bool
}

// ExecuteResponse is the result bundle for one executed step.
type ExecuteResponse struct {
	SessionID   string
	StepIndex   int
	CurrentStep int
	TotalSteps  int
	Complete    bool

	// NextStep is the upcoming planned step, nil when complete.
	NextStep *session.PlannedStep

	Flexibility float64
	Warning     warning.State

	// GeneratedOptions is non-empty whenever generation was mandatory
	// (CRITICAL level, rapid decline, or crossing the trigger score)
	// or explicitly requested.
	GeneratedOptions []options.Candidate

	// ExportHint tells the caller how to retrieve the full history.
	ExportHint string
}
