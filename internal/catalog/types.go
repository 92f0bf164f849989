package catalog

// StepTemplate describes one step of a technique's guided sequence.
type StepTemplate struct {
	// Index is the 1-based position of the step within the technique.
	Index int `koanf:"index" json:"index"`

	// Name is a short human-readable step name.
	Name string `koanf:"name" json:"name"`

	// PromptHint guides the caller on what to produce for this step.
	PromptHint string `koanf:"prompt_hint" json:"prompt_hint"`

	// RiskHints flag path-dependency risks typical for this step.
	RiskHints []string `koanf:"risk_hints" json:"risk_hints,omitempty"`
}

// Technique is an immutable definition of a creative thinking technique.
type Technique struct {
	// ID is the stable identifier used in plans and sessions.
	ID string `koanf:"id" json:"id"`

	// Name is the display name.
	Name string `koanf:"name" json:"name"`

	// Category groups techniques for discovery ranking.
	Category Category `koanf:"category" json:"category"`

	// Description summarizes what the technique is for.
	Description string `koanf:"description" json:"description"`

	// Keywords are matched against the problem statement during discovery.
	Keywords []string `koanf:"keywords" json:"keywords"`

	// Steps is the ordered step sequence. Indices are contiguous from 1.
	Steps []StepTemplate `koanf:"steps" json:"steps"`
}

// StepCount returns the declared number of steps.
func (t *Technique) StepCount() int {
	return len(t.Steps)
}

// Category groups techniques by the kind of thinking they support.
type Category string

const (
	CategoryStructured    Category = "structured"
	CategoryGenerative    Category = "generative"
	CategoryAnalytical    Category = "analytical"
	CategoryRiskFocused   Category = "risk_focused"
	CategoryTemporal      Category = "temporal"
	CategoryCollaborative Category = "collaborative"
)

// Outcome is the caller's desired outcome, used to bias discovery ranking.
type Outcome string

const (
	OutcomeInnovative    Outcome = "innovative"
	OutcomeSystematic    Outcome = "systematic"
	OutcomeRiskAware     Outcome = "risk_aware"
	OutcomeCollaborative Outcome = "collaborative"
	OutcomeAnalytical    Outcome = "analytical"
)

// outcomeCategories maps a desired outcome to the categories it favors.
var outcomeCategories = map[Outcome][]Category{
	OutcomeInnovative:    {CategoryGenerative, CategoryTemporal},
	OutcomeSystematic:    {CategoryStructured, CategoryAnalytical},
	OutcomeRiskAware:     {CategoryRiskFocused, CategoryStructured},
	OutcomeCollaborative: {CategoryCollaborative},
	OutcomeAnalytical:    {CategoryAnalytical},
}

// ValidOutcome reports whether o is a known outcome value.
func ValidOutcome(o Outcome) bool {
	_, ok := outcomeCategories[o]
	return ok
}

// Ranked is one entry of a discovery result: a technique plus the
// score and rationale the ranking assigned to it.
type Ranked struct {
	Technique *Technique `json:"technique"`
	Score     float64    `json:"score"`
	Rationale string     `json:"rationale"`
}
