package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thinkd/internal/session"
)

func sampleSession(branches int) *session.Session {
	now := time.Date(2026, 7, 19, 8, 30, 0, 0, time.UTC)
	rev := 1
	s := &session.Session{
		ID:         "exp-1",
		Problem:    "pricing model redesign",
		Techniques: []string{"scamper", "triz"},
		TimeBudget: session.BudgetQuick,
		Plan: []session.PlannedStep{
			{PlanIndex: 1, TechniqueID: "scamper", TechniqueStep: 1, Name: "Substitute"},
			{PlanIndex: 2, TechniqueID: "scamper", TechniqueStep: 2, Name: "Combine"},
		},
		CurrentStep: 2,
		Records: []session.StepRecord{
			{StepIndex: 1, Content: "swap flat fee, with \"comma, quote\" chars", Impact: session.Impact{OptionsClosed: 1, ReversibilityCost: 0.3}, Timestamp: now},
			{StepIndex: 1, Content: "swap usage-based", Impact: session.Impact{ReversibilityCost: 0.2}, Timestamp: now.Add(time.Minute), RevisesStepIndex: &rev},
		},
		PathMemory: session.PathMemory{Commitments: []session.Commitment{
			{Description: "swap flat fee", Irreversibility: 0.3, CreatedAtStep: 1},
		}},
		Flexibility: 0.68,
		CreatedAt:   now,
		UpdatedAt:   now.Add(time.Minute),
	}
	if branches > 0 {
		s.Branches = make(map[string]*session.Branch, branches)
		for i := 0; i < branches; i++ {
			id := "br-" + string(rune('a'+i))
			s.Branches[id] = &session.Branch{
				ID: id, FromStep: 1, CreatedAt: now,
				Records: []session.StepRecord{
					{StepIndex: 2, Content: "branched move", BranchID: id, Timestamp: now.Add(2 * time.Minute)},
				},
			}
		}
	}
	return s
}

func TestJSON_RoundTrip(t *testing.T) {
	for _, branches := range []int{0, 1, 4} {
		s := sampleSession(branches)

		data, err := Render(Summarize(s), FormatJSON, Options{})
		require.NoError(t, err)

		got, err := Import(data)
		require.NoError(t, err)
		assert.Equal(t, s, got, "round trip with %d branches", branches)
	}
}

func TestRender_ByteIdentical(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatCSV, FormatMarkdown} {
		t.Run(string(format), func(t *testing.T) {
			s := sampleSession(3)
			a, err := Render(Summarize(s), format, Options{})
			require.NoError(t, err)
			b, err := Render(Summarize(s), format, Options{})
			require.NoError(t, err)
			assert.Equal(t, a, b, "same input must yield byte-identical output")
		})
	}
}

func TestRender_NoTimestampByDefault(t *testing.T) {
	s := sampleSession(0)
	data, err := Render(Summarize(s), FormatJSON, Options{})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "exported_at")
}

func TestRender_ExplicitTimestamp(t *testing.T) {
	s := sampleSession(0)
	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	data, err := Render(Summarize(s), FormatMarkdown, Options{Timestamp: &ts})
	require.NoError(t, err)
	assert.Contains(t, string(data), "2026-08-01T00:00:00Z")
}

func TestRender_UnsupportedFormat(t *testing.T) {
	_, err := Render(Summarize(sampleSession(0)), Format("xml"), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCSV_OneRowPerRecord(t *testing.T) {
	s := sampleSession(2)
	data, err := Render(Summarize(s), FormatCSV, Options{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	// Header + 2 main-line records + 2 branch records.
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "session_id,branch_id,step_index"))
	assert.Contains(t, lines[1], "\"swap flat fee, with \"\"comma, quote\"\" chars\"")
}

func TestMarkdown_Narrative(t *testing.T) {
	s := sampleSession(1)
	data, err := Render(Summarize(s), FormatMarkdown, Options{})
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# Session exp-1")
	assert.Contains(t, text, "**Problem:** pricing model redesign")
	assert.Contains(t, text, "(revises step 1)")
	assert.Contains(t, text, "## Commitments")
	assert.Contains(t, text, "## Branches")
}

func TestSummarize_DoesNotMutateSource(t *testing.T) {
	s := sampleSession(1)
	before := s.Clone()

	sum := Summarize(s)
	sum.Session.Records[0].Content = "tampered"
	sum.Session.Branches["br-a"].Records[0].Content = "tampered"

	assert.Equal(t, before, s)
}
