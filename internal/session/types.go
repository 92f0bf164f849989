package session

import (
	"time"
)

// TimeBudget controls how many steps plan scheduling includes.
type TimeBudget string

const (
	BudgetQuick         TimeBudget = "quick"
	BudgetThorough      TimeBudget = "thorough"
	BudgetComprehensive TimeBudget = "comprehensive"
)

// ValidBudget reports whether b is a known time budget.
func ValidBudget(b TimeBudget) bool {
	switch b {
	case BudgetQuick, BudgetThorough, BudgetComprehensive:
		return true
	}
	return false
}

// State is the lifecycle state of a session.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
)

// Impact is the computed effect of one step on future optionality.
type Impact struct {
	// OptionsClosed counts doors this step shut.
	OptionsClosed int `json:"options_closed"`

	// OptionsOpened counts doors this step opened.
	OptionsOpened int `json:"options_opened"`

	// ReversibilityCost is how hard the step is to undo, in [0,1].
	ReversibilityCost float64 `json:"reversibility_cost"`
}

// NetOptionality is opened minus closed, floored at zero. Recovery is
// capped: generating options never out-earns a truly closed door.
func (i Impact) NetOptionality() int {
	net := i.OptionsOpened - i.OptionsClosed
	if net < 0 {
		return 0
	}
	return net
}

// StepRecord is one executed step. Records are append-only; a revision
// adds a new record with RevisesStepIndex set, never mutates history.
type StepRecord struct {
	// StepIndex is the plan position this record executes.
	StepIndex int `json:"step_index"`

	// Content is the caller-supplied step content.
	Content string `json:"content"`

	// Impact is the computed optionality effect.
	Impact Impact `json:"impact"`

	// Timestamp is when the step was recorded.
	Timestamp time.Time `json:"timestamp"`

	// RevisesStepIndex points at the superseded step, if this is a revision.
	RevisesStepIndex *int `json:"revises_step_index,omitempty"`

	// BranchID is set when the record belongs to a branch continuation.
	BranchID string `json:"branch_id,omitempty"`

	// FromOption marks records created by accepting a generated option.
	FromOption bool `json:"from_option,omitempty"`
}

// Commitment is an irreversible (or partially irreversible) consequence
// recorded against a session. Commitments are never removed.
type Commitment struct {
	Description     string  `json:"description"`
	Irreversibility float64 `json:"irreversibility"`
	CreatedAtStep   int     `json:"created_at_step"`
}

// PathMemory is the monotonically growing record of commitments.
type PathMemory struct {
	Commitments []Commitment `json:"commitments"`
}

// Append adds a commitment. There is no removal operation by design.
func (p *PathMemory) Append(c Commitment) {
	p.Commitments = append(p.Commitments, c)
}

// Branch is an alternate continuation diverging from a step index.
type Branch struct {
	ID        string       `json:"id"`
	FromStep  int          `json:"from_step"`
	CreatedAt time.Time    `json:"created_at"`
	Records   []StepRecord `json:"records"`
}

// PlannedStep is one scheduled step of a session's plan. A multi-technique
// plan concatenates the techniques' step templates in plan order.
type PlannedStep struct {
	// PlanIndex is the 1-based position in the overall plan.
	PlanIndex int `json:"plan_index"`

	// TechniqueID is the technique this step belongs to.
	TechniqueID string `json:"technique_id"`

	// TechniqueStep is the 1-based step index within the technique.
	TechniqueStep int `json:"technique_step"`

	// Name is the step's display name from the catalog.
	Name string `json:"name"`

	// PromptHint guides the caller on what to produce.
	PromptHint string `json:"prompt_hint,omitempty"`

	// RiskHints carry the catalog's path-dependency flags.
	RiskHints []string `json:"risk_hints,omitempty"`
}

// Session is the authoritative per-session document.
type Session struct {
	// ID is the opaque session identifier.
	ID string `json:"id"`

	// Problem is the problem statement the plan was created for.
	Problem string `json:"problem,omitempty"`

	// Techniques is the declared plan, in execution order.
	Techniques []string `json:"techniques"`

	// TimeBudget selected at planning time.
	TimeBudget TimeBudget `json:"time_budget"`

	// Plan is the ordered scheduled steps.
	Plan []PlannedStep `json:"plan"`

	// CurrentStep is the next step to execute. The session is complete
	// when CurrentStep == len(Plan)+1.
	CurrentStep int `json:"current_step"`

	// Records is the append-only step history on the main line.
	Records []StepRecord `json:"records"`

	// PathMemory accumulates commitments.
	PathMemory PathMemory `json:"path_memory"`

	// Flexibility is the current score in [0,1].
	Flexibility float64 `json:"flexibility"`

	// ScoreHistory logs the starting score followed by the score after
	// each executed step, oldest first. The warning evaluator reads its
	// tail for the trend check.
	ScoreHistory []float64 `json:"score_history,omitempty"`

	// Branches holds alternate continuations keyed by branch id.
	Branches map[string]*Branch `json:"branches,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalSteps is the declared plan length.
func (s *Session) TotalSteps() int {
	return len(s.Plan)
}

// Complete reports whether every planned step has been executed.
func (s *Session) Complete() bool {
	return s.CurrentStep > s.TotalSteps()
}

// State derives the lifecycle state from progress.
func (s *Session) State() State {
	switch {
	case len(s.Records) == 0:
		return StateNotStarted
	case s.Complete():
		return StateComplete
	default:
		return StateInProgress
	}
}

// RecordCount returns the number of records on the main line plus all
// branches. Used by invariant checks: sequence errors must leave it fixed.
func (s *Session) RecordCount() int {
	n := len(s.Records)
	for _, b := range s.Branches {
		n += len(b.Records)
	}
	return n
}

// Clone returns a deep copy of the session document.
func (s *Session) Clone() *Session {
	out := *s
	out.Techniques = append([]string(nil), s.Techniques...)
	out.Plan = append([]PlannedStep(nil), s.Plan...)
	out.Records = cloneRecords(s.Records)
	out.PathMemory = PathMemory{Commitments: append([]Commitment(nil), s.PathMemory.Commitments...)}
	out.ScoreHistory = append([]float64(nil), s.ScoreHistory...)
	if s.Branches != nil {
		out.Branches = make(map[string]*Branch, len(s.Branches))
		for id, b := range s.Branches {
			bc := *b
			bc.Records = cloneRecords(b.Records)
			out.Branches[id] = &bc
		}
	}
	return &out
}

func cloneRecords(in []StepRecord) []StepRecord {
	if in == nil {
		return nil
	}
	out := make([]StepRecord, len(in))
	copy(out, in)
	for i := range out {
		if in[i].RevisesStepIndex != nil {
			idx := *in[i].RevisesStepIndex
			out[i].RevisesStepIndex = &idx
		}
	}
	return out
}
