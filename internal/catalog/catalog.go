// Package catalog holds the static technique registry.
//
// Definitions are embedded at build time and validated eagerly on load;
// a malformed definition is a startup failure, not a call-time surprise.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "embed"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed techniques.yaml
var techniquesYAML []byte

// Catalog is a read-only lookup over the loaded technique definitions.
type Catalog struct {
	byID  map[string]*Technique
	order []*Technique
}

// Load parses and validates the embedded technique definitions.
func Load() (*Catalog, error) {
	return load(techniquesYAML)
}

func load(raw []byte) (*Catalog, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse technique definitions: %w", err)
	}

	var doc struct {
		Techniques []*Technique `koanf:"techniques"`
	}
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal technique definitions: %w", err)
	}
	if len(doc.Techniques) == 0 {
		return nil, errors.New("technique catalog is empty")
	}

	c := &Catalog{
		byID:  make(map[string]*Technique, len(doc.Techniques)),
		order: make([]*Technique, 0, len(doc.Techniques)),
	}
	for _, t := range doc.Techniques {
		if err := validateTechnique(t); err != nil {
			return nil, fmt.Errorf("technique %q: %w", t.ID, err)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate technique id %q", t.ID)
		}
		c.byID[t.ID] = t
		c.order = append(c.order, t)
	}
	return c, nil
}

// validateTechnique enforces the definition invariants: non-empty id and
// name, known category, at least one step, and step indices contiguous
// from 1.
func validateTechnique(t *Technique) error {
	if t == nil {
		return errors.New("nil technique")
	}
	if t.ID == "" {
		return errors.New("missing id")
	}
	if t.Name == "" {
		return errors.New("missing name")
	}
	switch t.Category {
	case CategoryStructured, CategoryGenerative, CategoryAnalytical,
		CategoryRiskFocused, CategoryTemporal, CategoryCollaborative:
	default:
		return fmt.Errorf("unknown category %q", t.Category)
	}
	if len(t.Steps) == 0 {
		return errors.New("technique has no steps")
	}
	for i, s := range t.Steps {
		if s.Index != i+1 {
			return fmt.Errorf("step %d has index %d, want %d", i, s.Index, i+1)
		}
		if s.Name == "" {
			return fmt.Errorf("step %d has no name", s.Index)
		}
	}
	return nil
}

// Get returns the technique for id, or nil if unknown.
func (c *Catalog) Get(id string) *Technique {
	return c.byID[id]
}

// Has reports whether id is a known technique.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// List returns all techniques in declaration order.
func (c *Catalog) List() []*Technique {
	out := make([]*Technique, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of techniques.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Ranking weights. Illustrative heuristics by origin; named here so tests
// pin the behavior instead of re-deriving it.
const (
	keywordWeight    = 0.15
	categoryBoost    = 0.30
	lowFlexBoost     = 0.25
	lowFlexThreshold = 0.5
	baseScore        = 0.10
)

// Rank orders techniques by fit against a problem statement.
//
// flexibility is the caller's current session flexibility when known, or a
// negative value when there is no session context. Low flexibility favors
// risk-focused and structured techniques. Ranking is deterministic: ties
// break by declaration order.
func (c *Catalog) Rank(problem string, outcome Outcome, flexibility float64) []Ranked {
	words := tokenize(problem)
	favored := outcomeCategories[outcome]

	ranked := make([]Ranked, 0, len(c.order))
	for _, t := range c.order {
		score := baseScore
		var reasons []string

		hits := 0
		for _, kw := range t.Keywords {
			if words[kw] {
				hits++
			}
		}
		if hits > 0 {
			score += keywordWeight * float64(hits)
			reasons = append(reasons, fmt.Sprintf("%d keyword match(es)", hits))
		}

		for _, cat := range favored {
			if t.Category == cat {
				score += categoryBoost
				reasons = append(reasons, fmt.Sprintf("category %s fits desired outcome", t.Category))
				break
			}
		}

		if flexibility >= 0 && flexibility < lowFlexThreshold {
			if t.Category == CategoryRiskFocused || t.Category == CategoryStructured {
				score += lowFlexBoost
				reasons = append(reasons, "favors low-flexibility recovery")
			}
		}

		rationale := "general applicability"
		if len(reasons) > 0 {
			rationale = strings.Join(reasons, "; ")
		}
		ranked = append(ranked, Ranked{Technique: t, Score: score, Rationale: rationale})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func tokenize(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		words[strings.Trim(w, ".,;:!?\"'()")] = true
	}
	return words
}
