// Package options generates candidate alternative moves when a session
// is running out of flexibility.
//
// Strategies run in a fixed declared order, each a pure function of the
// session; generation short-circuits at the target count. Stimulus
// selection is seeded and injectable so results are reproducible.
package options

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/session"
)

// Candidate is a suggested alternative move. Ephemeral: it becomes a
// step record only if the caller accepts it.
type Candidate struct {
	// Strategy names the generation strategy that produced this.
	Strategy string `json:"strategy"`

	// Description is the suggested move.
	Description string `json:"description"`

	// EstimatedGain is the expected flexibility recovery in [0,1].
	EstimatedGain float64 `json:"estimated_flexibility_gain"`
}

// DefaultTargetCount is how many candidates Generate aims for.
const DefaultTargetCount = 10

// Config configures the generator.
type Config struct {
	// TargetCount is the number of candidates to aim for (default 10).
	TargetCount int `koanf:"target_count"`

	// Seed seeds stimulus selection. Zero means a time-based seed;
	// tests inject a fixed one.
	Seed int64 `koanf:"seed"`
}

// Generator runs the strategy chain.
type Generator struct {
	cfg        Config
	strategies []strategy
	logger     *zap.Logger
}

// strategy couples a declared name with its generation function. The
// function receives a seeded source for stimulus picks and must never
// fail: inapplicable strategies return an empty list.
type strategy struct {
	name string
	gen  func(s *session.Session, rng *rand.Rand) []Candidate
}

// NewGenerator builds a generator with the fixed strategy order.
func NewGenerator(cfg Config, logger *zap.Logger) *Generator {
	if cfg.TargetCount <= 0 {
		cfg.TargetCount = DefaultTargetCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		cfg:    cfg,
		logger: logger,
		strategies: []strategy{
			{"decomposition", decomposition},
			{"temporal_shift", temporalShift},
			{"abstraction", abstraction},
			{"inversion", inversion},
			{"stakeholder_swap", stakeholderSwap},
			{"resource_reallocation", resourceReallocation},
			{"capability_leverage", capabilityLeverage},
			{"recombination", recombination},
		},
	}
}

// Generate produces up to the target count of candidates for the
// session, ranked by estimated gain descending with ties broken by
// strategy declaration order.
func (g *Generator) Generate(s *session.Session) []Candidate {
	seed := g.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var out []Candidate
	for _, st := range g.strategies {
		if len(out) >= g.cfg.TargetCount {
			break
		}
		cands := st.gen(s, rng)
		for i := range cands {
			cands[i].Strategy = st.name
		}
		out = append(out, cands...)
	}
	if len(out) > g.cfg.TargetCount {
		out = out[:g.cfg.TargetCount]
	}

	// Stable sort keeps declaration order for equal gains.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EstimatedGain > out[j].EstimatedGain
	})

	g.logger.Debug("generated options",
		zap.String("session_id", s.ID),
		zap.Int("count", len(out)),
	)
	return out
}

// Strategies returns the declared strategy names in order. Used by
// tests and the export formatter.
func (g *Generator) Strategies() []string {
	names := make([]string, len(g.strategies))
	for i, st := range g.strategies {
		names[i] = st.name
	}
	return names
}

// Base estimated gains per strategy. Heuristic constants, named so the
// ranking they induce is pinned by tests.
const (
	gainDecomposition = 0.18
	gainTemporal      = 0.15
	gainAbstraction   = 0.14
	gainInversion     = 0.12
	gainStakeholder   = 0.10
	gainReallocation  = 0.10
	gainCapability    = 0.08
	gainRecombination = 0.06
)

func lastRecord(s *session.Session) *session.StepRecord {
	if len(s.Records) == 0 {
		return nil
	}
	return &s.Records[len(s.Records)-1]
}

func hardestCommitment(s *session.Session) *session.Commitment {
	var hardest *session.Commitment
	for i := range s.PathMemory.Commitments {
		c := &s.PathMemory.Commitments[i]
		if hardest == nil || c.Irreversibility > hardest.Irreversibility {
			hardest = c
		}
	}
	return hardest
}

func decomposition(s *session.Session, _ *rand.Rand) []Candidate {
	last := lastRecord(s)
	if last == nil {
		return nil
	}
	return []Candidate{
		{
			Description:   fmt.Sprintf("Split the step %d decision into independently reversible parts and commit to only the smallest one", last.StepIndex),
			EstimatedGain: gainDecomposition,
		},
		{
			Description:   "Separate the must-decide-now core from everything that can stay undecided",
			EstimatedGain: gainDecomposition - 0.02,
		},
	}
}

func temporalShift(s *session.Session, _ *rand.Rand) []Candidate {
	c := hardestCommitment(s)
	if c == nil {
		return nil
	}
	return []Candidate{
		{
			Description:   fmt.Sprintf("Timebox a trial period before finalizing %q", c.Description),
			EstimatedGain: gainTemporal,
		},
		{
			Description:   "Defer the next commitment until one more cheap signal arrives",
			EstimatedGain: gainTemporal - 0.03,
		},
	}
}

func abstraction(s *session.Session, _ *rand.Rand) []Candidate {
	if s.Problem == "" {
		return nil
	}
	return []Candidate{
		{
			Description:   "Restate the problem one level more abstract; solutions at that level keep more paths open",
			EstimatedGain: gainAbstraction,
		},
	}
}

func inversion(s *session.Session, _ *rand.Rand) []Candidate {
	last := lastRecord(s)
	if last == nil {
		return nil
	}
	return []Candidate{
		{
			Description:   fmt.Sprintf("Invert the step %d move: what would deliberately doing the opposite make possible?", last.StepIndex),
			EstimatedGain: gainInversion,
		},
	}
}

// stakeholders is the fixed stimulus pool for perspective swaps.
var stakeholders = []string{
	"a first-time user", "the maintainer three years from now",
	"the customer paying the bill", "a regulator", "a competitor",
	"the person who has to undo this",
}

func stakeholderSwap(s *session.Session, rng *rand.Rand) []Candidate {
	if len(s.Records) == 0 {
		return nil
	}
	who := stakeholders[rng.Intn(len(stakeholders))]
	return []Candidate{
		{
			Description:   fmt.Sprintf("Replay the current direction from the perspective of %s and keep whichever options they would refuse to close", who),
			EstimatedGain: gainStakeholder,
		},
	}
}

func resourceReallocation(s *session.Session, _ *rand.Rand) []Candidate {
	c := hardestCommitment(s)
	if c == nil || c.Irreversibility < 0.5 {
		return nil
	}
	return []Candidate{
		{
			Description:   fmt.Sprintf("Shift effort from %q into a parallel hedge that survives if it fails", c.Description),
			EstimatedGain: gainReallocation,
		},
	}
}

func capabilityLeverage(s *session.Session, _ *rand.Rand) []Candidate {
	if len(s.Techniques) == 0 {
		return nil
	}
	return []Candidate{
		{
			Description:   fmt.Sprintf("Reuse the %s framing on the stuck decision instead of inventing new machinery", strings.ReplaceAll(s.Techniques[0], "_", " ")),
			EstimatedGain: gainCapability,
		},
	}
}

func recombination(s *session.Session, _ *rand.Rand) []Candidate {
	if len(s.Records) < 2 {
		return nil
	}
	a := s.Records[0].StepIndex
	b := s.Records[len(s.Records)-1].StepIndex
	return []Candidate{
		{
			Description:   fmt.Sprintf("Combine the framing from step %d with the constraint from step %d into a hybrid move", a, b),
			EstimatedGain: gainRecombination,
		},
	}
}
