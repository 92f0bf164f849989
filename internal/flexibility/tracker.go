// Package flexibility computes the session flexibility score from its
// commitment history.
//
// The score is a pure, deterministic function of the ordered commitment
// list and the step records: replaying the same records always yields
// the same score. Constants are named and configurable; the formulas
// are heuristic by origin, so tests pin direction (monotonicity,
// capping) rather than exact values.
package flexibility

import (
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/thinkd/internal/session"
)

// Config holds the named scoring constants.
type Config struct {
	// Baseline is the starting score of a fresh session.
	Baseline float64 `koanf:"baseline"`

	// AgeDecayRate is how much a commitment's weight fades per elapsed
	// step. Kept small: path effects are long-lived and irreversible
	// choices do not heal merely with time.
	AgeDecayRate float64 `koanf:"age_decay_rate"`

	// MinDecay floors the decay so old commitments never fade below
	// this fraction of their original weight.
	MinDecay float64 `koanf:"min_decay"`

	// RecoveryPerOption is the score credit for each net opened option.
	RecoveryPerOption float64 `koanf:"recovery_per_option"`

	// RecoveryCap bounds total recovery. Opening options cannot
	// out-earn a truly closed door.
	RecoveryCap float64 `koanf:"recovery_cap"`
}

// DefaultConfig returns the standard scoring constants.
func DefaultConfig() Config {
	return Config{
		Baseline:          1.0,
		AgeDecayRate:      0.01,
		MinDecay:          0.90,
		RecoveryPerOption: 0.05,
		RecoveryCap:       0.20,
	}
}

// Tracker computes flexibility scores under a fixed Config.
type Tracker struct {
	cfg Config
}

// NewTracker returns a tracker using cfg, or the defaults when cfg is
// the zero value.
func NewTracker(cfg Config) *Tracker {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Tracker{cfg: cfg}
}

// Score recomputes the flexibility score for the session from scratch.
//
//	score = clamp(0,1, baseline * Π(1 - irreversibility_i * decay(age_i)) + recovery)
//
// where recovery accrues from records whose impact opened more options
// than it closed, capped at RecoveryCap. Branch records participate in
// recovery the same way their commitments participate in the product:
// a door opened on a branch is still a door opened.
func (t *Tracker) Score(s *session.Session) float64 {
	records := s.Records
	for _, br := range s.Branches {
		records = append(records[:len(records):len(records)], br.Records...)
	}
	return t.score(s.PathMemory.Commitments, records, s.CurrentStep)
}

func (t *Tracker) score(commitments []session.Commitment, records []session.StepRecord, currentStep int) float64 {
	score := t.cfg.Baseline
	for _, c := range commitments {
		age := currentStep - c.CreatedAtStep
		if age < 0 {
			age = 0
		}
		score *= 1 - c.Irreversibility*t.decay(age)
	}

	recovery := 0.0
	for _, r := range records {
		recovery += t.cfg.RecoveryPerOption * float64(r.Impact.NetOptionality())
	}
	if recovery > t.cfg.RecoveryCap {
		recovery = t.cfg.RecoveryCap
	}

	return clamp01(score + recovery)
}

// decay returns the weight multiplier for a commitment of the given age
// in steps. Fresh commitments weigh 1.0; the fade is slight and floored.
func (t *Tracker) decay(age int) float64 {
	d := 1 - t.cfg.AgeDecayRate*float64(age)
	if d < t.cfg.MinDecay {
		return t.cfg.MinDecay
	}
	return d
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

// CommitmentFromRecord derives the commitment a step record implies.
// Every executed step commits its reversibility cost to path memory.
func CommitmentFromRecord(r session.StepRecord) session.Commitment {
	return session.Commitment{
		Description:     summarize(r.Content),
		Irreversibility: r.Impact.ReversibilityCost,
		CreatedAtStep:   r.StepIndex,
	}
}

const summaryLimit = 80

func summarize(content string) string {
	content = strings.TrimSpace(content)
	if len(content) <= summaryLimit {
		return content
	}
	// Back off to a rune boundary so the cut never leaves invalid UTF-8.
	cut := summaryLimit - 3
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

// Impact assessment keyword tables. The caller may override the
// assessment explicitly; these heuristics cover free-text content.
var (
	closingMarkers = []string{
		"commit", "decide", "final", "sign", "delete", "remove",
		"irreversib", "lock in", "only option", "eliminate", "abandon",
	}
	openingMarkers = []string{
		"alternative", "option", "keep open", "reversible", "experiment",
		"prototype", "parallel", "defer", "postpone", "explore",
	}
)

// Assessment weights.
const (
	closingCostStep = 0.2
	maxAssessedCost = 0.9
	baseAssessCost  = 0.1
)

// AssessImpact estimates a step's impact from its content and the
// step's catalog risk hints. Deterministic: same input, same impact.
func AssessImpact(content string, riskHints []string) session.Impact {
	lower := strings.ToLower(content)

	var closed, opened int
	for _, m := range closingMarkers {
		if strings.Contains(lower, m) {
			closed++
		}
	}
	for _, m := range openingMarkers {
		if strings.Contains(lower, m) {
			opened++
		}
	}

	cost := baseAssessCost + closingCostStep*float64(closed)
	// Risk-hinted steps carry extra weight: the catalog marks them as
	// path-dependency hot spots.
	if len(riskHints) > 0 {
		cost += closingCostStep
	}
	if cost > maxAssessedCost {
		cost = maxAssessedCost
	}

	return session.Impact{
		OptionsClosed:     closed,
		OptionsOpened:     opened,
		ReversibilityCost: cost,
	}
}
