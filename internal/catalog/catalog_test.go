package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, c.Len(), 20)
}

func TestLoad_AllTechniquesValid(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	for _, tech := range c.List() {
		assert.NotEmpty(t, tech.ID)
		assert.NotEmpty(t, tech.Name)
		require.GreaterOrEqual(t, tech.StepCount(), 1, "technique %s has no steps", tech.ID)
		for i, step := range tech.Steps {
			assert.Equal(t, i+1, step.Index, "technique %s step indices must be contiguous from 1", tech.ID)
		}
	}
}

func TestLoad_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "empty catalog",
			yaml: "techniques: []",
		},
		{
			name: "missing id",
			yaml: `
techniques:
  - name: No ID
    category: structured
    steps:
      - {index: 1, name: Step}
`,
		},
		{
			name: "non-contiguous step indices",
			yaml: `
techniques:
  - id: broken
    name: Broken
    category: structured
    steps:
      - {index: 1, name: One}
      - {index: 3, name: Three}
`,
		},
		{
			name: "no steps",
			yaml: `
techniques:
  - id: empty
    name: Empty
    category: structured
    steps: []
`,
		},
		{
			name: "unknown category",
			yaml: `
techniques:
  - id: odd
    name: Odd
    category: mystical
    steps:
      - {index: 1, name: Step}
`,
		},
		{
			name: "duplicate ids",
			yaml: `
techniques:
  - id: dup
    name: First
    category: structured
    steps:
      - {index: 1, name: Step}
  - id: dup
    name: Second
    category: structured
    steps:
      - {index: 1, name: Step}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestGet(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	tech := c.Get("six_hats")
	require.NotNil(t, tech)
	assert.Equal(t, "Six Thinking Hats", tech.Name)
	assert.Equal(t, 6, tech.StepCount())

	assert.Nil(t, c.Get("no_such_technique"))
	assert.False(t, c.Has("no_such_technique"))
}

func TestRank_Deterministic(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	a := c.Rank("our team is stuck on a product tradeoff", OutcomeSystematic, -1)
	b := c.Rank("our team is stuck on a product tradeoff", OutcomeSystematic, -1)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Technique.ID, b[i].Technique.ID)
		assert.Equal(t, a[i].Score, b[i].Score)
	}
}

func TestRank_KeywordsAndOutcome(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	ranked := c.Rank("we face a contradiction: a tradeoff between cost and quality", OutcomeAnalytical, -1)
	require.NotEmpty(t, ranked)

	// TRIZ matches both the keywords and the analytical outcome.
	assert.Equal(t, "triz", ranked[0].Technique.ID)
	assert.NotEmpty(t, ranked[0].Rationale)
}

func TestRank_LowFlexibilityFavorsRecovery(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	ranked := c.Rank("generic problem", "", 0.2)
	require.NotEmpty(t, ranked)
	top := ranked[0].Technique.Category
	assert.Contains(t, []Category{CategoryRiskFocused, CategoryStructured}, top)
}

func TestRank_NoSessionContext(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	ranked := c.Rank("anything", "", -1)
	assert.Len(t, ranked, c.Len())
}
