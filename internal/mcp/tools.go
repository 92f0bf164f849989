package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/thinkd/internal/catalog"
	"github.com/fyrsmithlabs/thinkd/internal/orchestrator"
	"github.com/fyrsmithlabs/thinkd/internal/session"
)

func (s *Server) registerTools() {
	s.registerDiscoverTool()
	s.registerPlanTool()
	s.registerExecuteTool()
}

// ===== DISCOVER =====

type discoverInput struct {
	Problem   string `json:"problem" jsonschema:"required,Problem statement to match techniques against"`
	Outcome   string `json:"outcome,omitempty" jsonschema:"Desired outcome category (innovative, systematic, risk_aware, collaborative, analytical)"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Existing session whose flexibility biases ranking toward recovery techniques"`
}

type rankedTechnique struct {
	ID          string   `json:"id" jsonschema:"Technique id"`
	Name        string   `json:"name" jsonschema:"Display name"`
	Category    string   `json:"category" jsonschema:"Technique category"`
	StepCount   int      `json:"step_count" jsonschema:"Number of steps"`
	Score       float64  `json:"score" jsonschema:"Relevance score, higher is better"`
	Rationale   string   `json:"rationale" jsonschema:"Why this technique was ranked here"`
	Description string   `json:"description,omitempty" jsonschema:"What the technique does"`
	Keywords    []string `json:"keywords,omitempty" jsonschema:"Matching keywords"`
}

type discoverOutput struct {
	Techniques []rankedTechnique `json:"techniques" jsonschema:"Techniques ranked by relevance"`
}

func (s *Server) registerDiscoverTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "discover_techniques",
		Description: "Rank creative thinking techniques against a problem statement",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args discoverInput) (*mcp.CallToolResult, discoverOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "discover_techniques")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "discover_techniques")
			s.metrics.RecordInvocation(ctx, "discover_techniques", time.Since(start), toolErr)
		}()

		resp, err := s.engine.Discover(ctx, &orchestrator.DiscoverRequest{
			Problem:   args.Problem,
			Outcome:   catalog.Outcome(args.Outcome),
			SessionID: args.SessionID,
		})
		if err != nil {
			toolErr = err
			return nil, discoverOutput{}, err
		}

		out := discoverOutput{Techniques: make([]rankedTechnique, 0, len(resp.Techniques))}
		for _, r := range resp.Techniques {
			out.Techniques = append(out.Techniques, rankedTechnique{
				ID:          r.Technique.ID,
				Name:        r.Technique.Name,
				Category:    string(r.Technique.Category),
				StepCount:   len(r.Technique.Steps),
				Score:       r.Score,
				Rationale:   r.Rationale,
				Description: r.Technique.Description,
				Keywords:    r.Technique.Keywords,
			})
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Ranked %d techniques", len(out.Techniques))},
			},
		}, out, nil
	})
}

// ===== PLAN =====

type planInput struct {
	Problem      string   `json:"problem,omitempty" jsonschema:"Problem statement carried onto the session"`
	TechniqueIDs []string `json:"technique_ids" jsonschema:"required,Ordered technique ids to execute"`
	TimeBudget   string   `json:"time_budget,omitempty" jsonschema:"Step budget: quick, thorough, or comprehensive (default thorough)"`
}

type plannedStep struct {
	PlanIndex     int      `json:"plan_index" jsonschema:"1-based position in the plan"`
	TechniqueID   string   `json:"technique_id" jsonschema:"Owning technique"`
	TechniqueStep int      `json:"technique_step" jsonschema:"Step index within the technique"`
	Name          string   `json:"name" jsonschema:"Step name"`
	PromptHint    string   `json:"prompt_hint,omitempty" jsonschema:"What to produce for this step"`
	RiskHints     []string `json:"risk_hints,omitempty" jsonschema:"Path-dependency flags for this step"`
}

type planOutput struct {
	SessionID  string        `json:"session_id" jsonschema:"Created session id"`
	TotalSteps int           `json:"total_steps" jsonschema:"Number of scheduled steps"`
	Steps      []plannedStep `json:"steps" jsonschema:"The scheduled steps in order"`
}

func (s *Server) registerPlanTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "plan_thinking_session",
		Description: "Create a session over an ordered technique list and a time budget",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args planInput) (*mcp.CallToolResult, planOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "plan_thinking_session")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "plan_thinking_session")
			s.metrics.RecordInvocation(ctx, "plan_thinking_session", time.Since(start), toolErr)
		}()

		budget := session.TimeBudget(args.TimeBudget)
		if args.TimeBudget == "" {
			budget = session.BudgetThorough
		}

		resp, err := s.engine.Plan(ctx, &orchestrator.PlanRequest{
			Problem:      args.Problem,
			TechniqueIDs: args.TechniqueIDs,
			TimeBudget:   budget,
		})
		if err != nil {
			toolErr = err
			return nil, planOutput{}, err
		}

		out := planOutput{
			SessionID:  resp.SessionID,
			TotalSteps: len(resp.Steps),
			Steps:      make([]plannedStep, 0, len(resp.Steps)),
		}
		for _, st := range resp.Steps {
			out.Steps = append(out.Steps, plannedStep{
				PlanIndex:     st.PlanIndex,
				TechniqueID:   st.TechniqueID,
				TechniqueStep: st.TechniqueStep,
				Name:          st.Name,
				PromptHint:    st.PromptHint,
				RiskHints:     st.RiskHints,
			})
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Planned session %s with %d steps", out.SessionID, out.TotalSteps)},
			},
		}, out, nil
	})
}

// ===== EXECUTE =====

type impactInput struct {
	OptionsClosed     int     `json:"options_closed,omitempty" jsonschema:"Doors this step shut"`
	OptionsOpened     int     `json:"options_opened,omitempty" jsonschema:"Doors this step opened"`
	ReversibilityCost float64 `json:"reversibility_cost" jsonschema:"How hard the step is to undo, 0 to 1"`
}

type executeInput struct {
	SessionID      string       `json:"session_id" jsonschema:"required,Session to execute against"`
	StepIndex      int          `json:"step_index" jsonschema:"required,Plan step to execute (1-based)"`
	Content        string       `json:"content" jsonschema:"required,The thinking produced for this step"`
	TechniqueID    string       `json:"technique_id,omitempty" jsonschema:"Asserts the step's technique; mismatches are rejected"`
	RevisesStep    *int         `json:"revises_step,omitempty" jsonschema:"Marks this as a revision of an already-executed step"`
	BranchID       string       `json:"branch_id,omitempty" jsonschema:"Records the step on an alternate continuation"`
	FromOption     bool         `json:"from_option,omitempty" jsonschema:"Marks the step as an accepted generated option"`
	Impact         *impactInput `json:"impact,omitempty" jsonschema:"Overrides the content-based impact assessment"`
	RequestOptions bool         `json:"request_options,omitempty" jsonschema:"Force option generation even when not mandated"`
}

type warningOutput struct {
	Level        string `json:"level" jsonschema:"SAFE, CAUTION, WARNING, or CRITICAL"`
	RapidDecline bool   `json:"rapid_decline" jsonschema:"True when the score dropped sharply over recent steps"`
}

type optionCandidate struct {
	Strategy      string  `json:"strategy" jsonschema:"Generation strategy that produced this option"`
	Description   string  `json:"description" jsonschema:"The option itself"`
	EstimatedGain float64 `json:"estimated_flexibility_gain" jsonschema:"Expected flexibility recovery"`
}

type executeOutput struct {
	SessionID        string            `json:"session_id" jsonschema:"Session id"`
	StepIndex        int               `json:"step_index" jsonschema:"Executed step"`
	CurrentStep      int               `json:"current_step" jsonschema:"Next step to execute"`
	TotalSteps       int               `json:"total_steps" jsonschema:"Plan length"`
	Complete         bool              `json:"complete" jsonschema:"True when every planned step is executed"`
	NextStep         *plannedStep      `json:"next_step,omitempty" jsonschema:"The upcoming planned step"`
	Flexibility      float64           `json:"flexibility" jsonschema:"Current flexibility score, 0 to 1"`
	Warning          warningOutput     `json:"warning" jsonschema:"Warning state for the current score and trend"`
	GeneratedOptions []optionCandidate `json:"generated_options,omitempty" jsonschema:"Escape options, present when generation was mandated or requested"`
	ExportHint       string            `json:"export_hint" jsonschema:"How to retrieve the full session history"`
}

func (s *Server) registerExecuteTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "execute_thinking_step",
		Description: "Record one thinking step, update the flexibility score, and surface warnings and options",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args executeInput) (*mcp.CallToolResult, executeOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "execute_thinking_step")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "execute_thinking_step")
			s.metrics.RecordInvocation(ctx, "execute_thinking_step", time.Since(start), toolErr)
		}()

		execReq := &orchestrator.ExecuteRequest{
			SessionID:        args.SessionID,
			StepIndex:        args.StepIndex,
			Content:          args.Content,
			TechniqueID:      args.TechniqueID,
			RevisesStepIndex: args.RevisesStep,
			BranchID:         args.BranchID,
			FromOption:       args.FromOption,
			RequestOptions:   args.RequestOptions,
		}
		if args.Impact != nil {
			execReq.Impact = &session.Impact{
				OptionsClosed:     args.Impact.OptionsClosed,
				OptionsOpened:     args.Impact.OptionsOpened,
				ReversibilityCost: args.Impact.ReversibilityCost,
			}
		}

		resp, err := s.engine.Execute(ctx, execReq)
		if err != nil {
			toolErr = err
			return nil, executeOutput{}, err
		}

		out := executeOutput{
			SessionID:   resp.SessionID,
			StepIndex:   resp.StepIndex,
			CurrentStep: resp.CurrentStep,
			TotalSteps:  resp.TotalSteps,
			Complete:    resp.Complete,
			Flexibility: resp.Flexibility,
			Warning: warningOutput{
				Level:        string(resp.Warning.Level),
				RapidDecline: resp.Warning.RapidDecline,
			},
			ExportHint: resp.ExportHint,
		}
		if resp.NextStep != nil {
			out.NextStep = &plannedStep{
				PlanIndex:     resp.NextStep.PlanIndex,
				TechniqueID:   resp.NextStep.TechniqueID,
				TechniqueStep: resp.NextStep.TechniqueStep,
				Name:          resp.NextStep.Name,
				PromptHint:    resp.NextStep.PromptHint,
				RiskHints:     resp.NextStep.RiskHints,
			}
		}
		for _, c := range resp.GeneratedOptions {
			out.GeneratedOptions = append(out.GeneratedOptions, optionCandidate{
				Strategy:      c.Strategy,
				Description:   c.Description,
				EstimatedGain: c.EstimatedGain,
			})
		}

		text := fmt.Sprintf("Step %d/%d recorded, flexibility %.2f (%s)",
			out.StepIndex, out.TotalSteps, out.Flexibility, out.Warning.Level)
		if len(out.GeneratedOptions) > 0 {
			text += fmt.Sprintf(", %d options generated", len(out.GeneratedOptions))
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, out, nil
	})
}
