package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/catalog"
	"github.com/fyrsmithlabs/thinkd/internal/export"
	"github.com/fyrsmithlabs/thinkd/internal/flexibility"
	"github.com/fyrsmithlabs/thinkd/internal/options"
	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/warning"
)

const instrumentationName = "github.com/fyrsmithlabs/thinkd/internal/orchestrator"

// OptionTriggerScore is the flexibility score below which option
// generation becomes mandatory regardless of warning level.
const OptionTriggerScore = 0.4

// quickBudgetSteps caps steps per technique under the quick budget.
const quickBudgetSteps = 3

// Config configures the engine.
type Config struct {
	// Tracker holds the flexibility scoring constants.
	Tracker flexibility.Config `koanf:"tracker"`

	// Options configures candidate generation.
	Options options.Config `koanf:"options"`
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() *Config {
	return &Config{
		Tracker: flexibility.DefaultConfig(),
		Options: options.Config{TargetCount: options.DefaultTargetCount},
	}
}

// Engine drives the creative-thinking workflow: discover ranks
// techniques, plan creates a session, execute records steps and tracks
// the flexibility the session has left.
type Engine struct {
	cfg       *Config
	catalog   *catalog.Catalog
	store     session.Store
	tracker   *flexibility.Tracker
	generator *options.Generator
	locks     *session.Locks
	logger    *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	planCounter    metric.Int64Counter
	executeCounter metric.Int64Counter
	optionCounter  metric.Int64Counter
}

// NewEngine creates an engine over the given catalog and store.
func NewEngine(cfg *Config, cat *catalog.Catalog, store session.Store, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cat == nil {
		return nil, errors.New("catalog is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		cfg:       cfg,
		catalog:   cat,
		store:     store,
		tracker:   flexibility.NewTracker(cfg.Tracker),
		generator: options.NewGenerator(cfg.Options, logger.Named("options")),
		locks:     session.NewLocks(),
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	e.initMetrics()
	return e, nil
}

func (e *Engine) initMetrics() {
	var err error

	e.planCounter, err = e.meter.Int64Counter(
		"thinkd.engine.plans_total",
		metric.WithDescription("Total number of sessions planned"),
		metric.WithUnit("{plan}"),
	)
	if err != nil {
		e.logger.Warn("failed to create plan counter", zap.Error(err))
	}

	e.executeCounter, err = e.meter.Int64Counter(
		"thinkd.engine.executes_total",
		metric.WithDescription("Total number of executed steps"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		e.logger.Warn("failed to create execute counter", zap.Error(err))
	}

	e.optionCounter, err = e.meter.Int64Counter(
		"thinkd.engine.options_generated_total",
		metric.WithDescription("Total number of option candidates generated"),
		metric.WithUnit("{candidate}"),
	)
	if err != nil {
		e.logger.Warn("failed to create option counter", zap.Error(err))
	}
}

// Discover ranks catalog techniques against the problem statement.
// Pure: no session state is created or mutated.
func (e *Engine) Discover(ctx context.Context, req *DiscoverRequest) (*DiscoverResponse, error) {
	const op = "discover"
	ctx, span := e.tracer.Start(ctx, "engine.discover")
	defer span.End()

	if req == nil || req.Problem == "" {
		err := errorf(KindInvalidInput, op, "problem statement is required")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if req.Outcome != "" && !catalog.ValidOutcome(req.Outcome) {
		err := errorf(KindInvalidInput, op, "unknown desired outcome %q", req.Outcome)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Session context is advisory: a missing or unreadable session
	// degrades to no-context ranking rather than failing discovery.
	flex := -1.0
	if req.SessionID != "" {
		if s, err := e.store.Load(ctx, req.SessionID); err == nil {
			flex = s.Flexibility
		} else if !errors.Is(err, session.ErrNotFound) {
			e.logger.Warn("discover could not read session context",
				zap.String("session_id", req.SessionID), zap.Error(err))
		}
	}

	ranked := e.catalog.Rank(req.Problem, req.Outcome, flex)
	span.SetAttributes(attribute.Int("result_count", len(ranked)))
	return &DiscoverResponse{Techniques: ranked}, nil
}

// Plan validates the technique list, schedules steps for the time
// budget, and persists a new session in state "not started".
func (e *Engine) Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error) {
	const op = "plan"
	ctx, span := e.tracer.Start(ctx, "engine.plan")
	defer span.End()

	if req == nil || len(req.TechniqueIDs) == 0 {
		return nil, errorf(KindInvalidInput, op, "at least one technique is required")
	}
	if !session.ValidBudget(req.TimeBudget) {
		return nil, errorf(KindInvalidInput, op, "unknown time budget %q", req.TimeBudget)
	}
	for _, id := range req.TechniqueIDs {
		if !e.catalog.Has(id) {
			err := errorf(KindUnknownTechnique, op, "technique %q is not in the catalog", id)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	now := time.Now().UTC()
	s := &session.Session{
		ID:          uuid.NewString(),
		Problem:     req.Problem,
		Techniques:  append([]string(nil), req.TechniqueIDs...),
		TimeBudget:  req.TimeBudget,
		Plan:        e.schedule(req.TechniqueIDs, req.TimeBudget),
		CurrentStep: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Flexibility = e.tracker.Score(s)
	// Seed the trend history with the starting score so the velocity
	// check covers a crash on the very first step.
	s.ScoreHistory = []float64{s.Flexibility}

	if err := e.store.Save(ctx, s); err != nil {
		err = newError(KindPersistence, op, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if e.planCounter != nil {
		e.planCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("time_budget", string(req.TimeBudget)),
		))
	}
	e.logger.Info("planned session",
		zap.String("session_id", s.ID),
		zap.Strings("techniques", s.Techniques),
		zap.Int("steps", s.TotalSteps()),
	)

	span.SetAttributes(attribute.String("session_id", s.ID))
	return &PlanResponse{SessionID: s.ID, Steps: s.Plan}, nil
}

// schedule concatenates the techniques' step templates according to
// the time budget. Quick truncates to each technique's leading core
// steps; comprehensive appends a reflection step per technique.
func (e *Engine) schedule(ids []string, budget session.TimeBudget) []session.PlannedStep {
	var plan []session.PlannedStep
	for _, id := range ids {
		tech := e.catalog.Get(id)
		steps := tech.Steps
		if budget == session.BudgetQuick && len(steps) > quickBudgetSteps {
			steps = steps[:quickBudgetSteps]
		}
		for _, st := range steps {
			plan = append(plan, session.PlannedStep{
				PlanIndex:     len(plan) + 1,
				TechniqueID:   id,
				TechniqueStep: st.Index,
				Name:          st.Name,
				PromptHint:    st.PromptHint,
				RiskHints:     append([]string(nil), st.RiskHints...),
			})
		}
		if budget == session.BudgetComprehensive {
			plan = append(plan, session.PlannedStep{
				PlanIndex:     len(plan) + 1,
				TechniqueID:   id,
				TechniqueStep: len(tech.Steps) + 1,
				Name:          "Reflect & Integrate",
				PromptHint:    "Look back across the technique: what held up, what surprised, what carries forward?",
			})
		}
	}
	return plan
}

// Execute validates, records, and scores one step. Mutations to a
// single session are serialized; a concurrent call for the same id
// fails fast with a session-locked error.
func (e *Engine) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	const op = "execute"
	ctx, span := e.tracer.Start(ctx, "engine.execute")
	defer span.End()

	if req == nil || req.SessionID == "" {
		return nil, errorf(KindInvalidInput, op, "session id is required")
	}
	if req.Content == "" {
		return nil, errorf(KindInvalidInput, op, "step content is required")
	}
	if req.StepIndex < 1 {
		return nil, errorf(KindInvalidInput, op, "step index must be >= 1, got %d", req.StepIndex)
	}
	if req.Impact != nil {
		// An out-of-range cost would flip a product factor negative and
		// let the score rise on further irreversible steps.
		if c := req.Impact.ReversibilityCost; c < 0 || c > 1 {
			return nil, errorf(KindInvalidInput, op, "reversibility cost must be within [0,1], got %g", c)
		}
		if req.Impact.OptionsClosed < 0 || req.Impact.OptionsOpened < 0 {
			return nil, errorf(KindInvalidInput, op, "option counts must not be negative")
		}
	}

	span.SetAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.Int("step_index", req.StepIndex),
	)

	release, ok := e.locks.TryAcquire(req.SessionID)
	if !ok {
		err := errorf(KindSessionLocked, op, "another execute is in flight for session %s", req.SessionID)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer release()

	s, err := e.store.Load(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, errorf(KindSessionNotFound, op, "no session %s", req.SessionID)
		}
		return nil, newError(KindPersistence, op, err)
	}

	// All checks happen before any mutation; a rejected call leaves
	// the session exactly as loaded.
	branch, err := e.checkSequence(s, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := e.checkTechnique(s, req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	planned := s.Plan[req.StepIndex-1]
	impact := flexibility.AssessImpact(req.Content, planned.RiskHints)
	if req.Impact != nil {
		impact = *req.Impact
	}

	record := session.StepRecord{
		StepIndex:        req.StepIndex,
		Content:          req.Content,
		Impact:           impact,
		Timestamp:        time.Now().UTC(),
		RevisesStepIndex: req.RevisesStepIndex,
		BranchID:         req.BranchID,
		FromOption:       req.FromOption,
	}

	prevScore := s.Flexibility
	e.apply(s, record, branch)

	score := e.tracker.Score(s)
	if score < 0 || score > 1 {
		// A score outside [0,1] is a programming error, not data.
		e.logger.DPanic("flexibility score out of range",
			zap.Float64("score", score), zap.String("session_id", s.ID))
		score = clamp01(score)
	}
	s.Flexibility = score
	s.ScoreHistory = append(s.ScoreHistory, score)
	s.UpdatedAt = record.Timestamp

	warn := warning.Evaluate(score, s.ScoreHistory)

	var candidates []options.Candidate
	crossedTrigger := score < OptionTriggerScore && prevScore >= OptionTriggerScore
	if warn.Mandatory() || crossedTrigger || score < OptionTriggerScore || req.RequestOptions {
		candidates = e.generator.Generate(s)
		if e.optionCounter != nil {
			e.optionCounter.Add(ctx, int64(len(candidates)))
		}
	}

	if err := e.store.Save(ctx, s); err != nil {
		err = newError(KindPersistence, op, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if e.executeCounter != nil {
		e.executeCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("warning_level", string(warn.Level)),
			attribute.Bool("branch", branch != nil),
		))
	}
	e.logger.Info("executed step",
		zap.String("session_id", s.ID),
		zap.Int("step_index", req.StepIndex),
		zap.Float64("flexibility", score),
		zap.String("warning_level", string(warn.Level)),
	)

	resp := &ExecuteResponse{
		SessionID:        s.ID,
		StepIndex:        req.StepIndex,
		CurrentStep:      s.CurrentStep,
		TotalSteps:       s.TotalSteps(),
		Complete:         s.Complete(),
		Flexibility:      score,
		Warning:          warn,
		GeneratedOptions: candidates,
		ExportHint:       exportHint(s),
	}
	if !s.Complete() && s.CurrentStep <= s.TotalSteps() {
		next := s.Plan[s.CurrentStep-1]
		resp.NextStep = &next
	}
	span.SetAttributes(
		attribute.Float64("flexibility", score),
		attribute.String("warning_level", string(warn.Level)),
	)
	return resp, nil
}

// checkSequence enforces step ordering. It returns the target branch
// when the step belongs to one, and classifies violations without
// touching session state.
func (e *Engine) checkSequence(s *session.Session, req *ExecuteRequest) (*session.Branch, error) {
	const op = "execute"

	if req.StepIndex > s.TotalSteps() {
		return nil, errorf(KindStepSequence, op,
			"step %d exceeds the %d-step plan", req.StepIndex, s.TotalSteps())
	}

	// Revision: re-record an already-executed step, superseding it.
	if req.RevisesStepIndex != nil {
		rev := *req.RevisesStepIndex
		if rev < 1 || rev >= s.CurrentStep {
			return nil, errorf(KindStepSequence, op,
				"cannot revise step %d: not executed yet", rev)
		}
		if req.StepIndex != rev {
			return nil, errorf(KindStepSequence, op,
				"revision step index %d must match revised step %d", req.StepIndex, rev)
		}
		return nil, nil
	}

	// Branch continuation.
	if req.BranchID != "" {
		if br, ok := s.Branches[req.BranchID]; ok {
			expected := br.FromStep + len(br.Records) + 1
			if req.StepIndex != expected {
				return nil, errorf(KindStepSequence, op,
					"branch %s expects step %d, got %d", req.BranchID, expected, req.StepIndex)
			}
			return br, nil
		}
		// A new branch diverges from an executed step.
		from := req.StepIndex - 1
		if from < 1 || from >= s.CurrentStep {
			return nil, errorf(KindStepSequence, op,
				"branch must diverge from an executed step, got step %d", req.StepIndex)
		}
		return &session.Branch{ID: req.BranchID, FromStep: from}, nil
	}

	// Main line: only the expected next step.
	if s.Complete() {
		return nil, errorf(KindStepSequence, op, "session is complete")
	}
	if req.StepIndex != s.CurrentStep {
		return nil, errorf(KindStepSequence, op,
			"expected step %d, got %d", s.CurrentStep, req.StepIndex)
	}
	return nil, nil
}

// checkTechnique rejects executing a technique outside the declared plan.
func (e *Engine) checkTechnique(s *session.Session, req *ExecuteRequest) error {
	if req.TechniqueID == "" {
		return nil
	}
	planned := s.Plan[req.StepIndex-1]
	if planned.TechniqueID != req.TechniqueID {
		return errorf(KindPlanMismatch, "execute",
			"step %d belongs to technique %q, not %q",
			req.StepIndex, planned.TechniqueID, req.TechniqueID)
	}
	return nil
}

// apply appends the record and its commitment. Called only after every
// check has passed.
func (e *Engine) apply(s *session.Session, record session.StepRecord, branch *session.Branch) {
	switch {
	case branch != nil:
		if _, exists := s.Branches[branch.ID]; !exists {
			branch.CreatedAt = record.Timestamp
			if s.Branches == nil {
				s.Branches = make(map[string]*session.Branch)
			}
			s.Branches[branch.ID] = branch
		}
		s.Branches[branch.ID].Records = append(s.Branches[branch.ID].Records, record)
	default:
		s.Records = append(s.Records, record)
		if record.RevisesStepIndex == nil {
			s.CurrentStep++
		}
	}
	s.PathMemory.Append(flexibility.CommitmentFromRecord(record))
}

func exportHint(s *session.Session) string {
	if s.Complete() {
		return fmt.Sprintf("session complete; export full history with format=json (id %s)", s.ID)
	}
	return fmt.Sprintf("export in-progress history with format=json (id %s)", s.ID)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Export renders a stored session without mutating it.
func (e *Engine) Export(ctx context.Context, id string, format export.Format, at *time.Time) ([]byte, error) {
	const op = "export"
	s, err := e.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, errorf(KindSessionNotFound, op, "no session %s", id)
		}
		return nil, newError(KindPersistence, op, err)
	}
	data, err := export.Render(export.Summarize(s), format, export.Options{Timestamp: at})
	if err != nil {
		return nil, newError(KindInvalidInput, op, err)
	}
	return data, nil
}

// Get loads a session snapshot.
func (e *Engine) Get(ctx context.Context, id string) (*session.Session, error) {
	s, err := e.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, errorf(KindSessionNotFound, "get", "no session %s", id)
		}
		return nil, newError(KindPersistence, "get", err)
	}
	return s, nil
}

// List returns all stored session ids.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	ids, err := e.store.List(ctx)
	if err != nil {
		return nil, newError(KindPersistence, "list", err)
	}
	return ids, nil
}

// Delete removes a session. Deletion is only ever explicit.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.store.Delete(ctx, id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return errorf(KindSessionNotFound, "delete", "no session %s", id)
		}
		return newError(KindPersistence, "delete", err)
	}
	e.logger.Info("deleted session", zap.String("session_id", id))
	return nil
}
