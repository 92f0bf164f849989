// Package export renders session state to external formats.
//
// Formatting is a total function of the summary: the same input always
// produces byte-identical output. An export timestamp is embedded only
// when the caller explicitly asks for one.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/warning"
)

// Format selects the output rendering.
type Format string

const (
	// FormatJSON is the full-fidelity structured format; Import
	// round-trips it back into an identical Session.
	FormatJSON Format = "json"

	// FormatCSV emits one row per step record. Lossy: path memory and
	// branch nesting are flattened away.
	FormatCSV Format = "csv"

	// FormatMarkdown is a human-readable narrative. Lossy, not meant
	// for re-import.
	FormatMarkdown Format = "markdown"
)

// ErrUnsupportedFormat is returned for unknown format requests; there
// is no silent default.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Summary is the read-only projection of a session used for output.
// Building one never mutates the source session.
type Summary struct {
	Session  *session.Session `json:"session"`
	State    session.State    `json:"state"`
	Level    warning.Level    `json:"warning_level"`
	Steps    int              `json:"steps_taken"`
	Branches int              `json:"branch_count"`

	// ExportedAt is set only when the caller requested a timestamp.
	ExportedAt *time.Time `json:"exported_at,omitempty"`
}

// Summarize builds the export projection from a session snapshot.
func Summarize(s *session.Session) *Summary {
	snap := s.Clone()
	return &Summary{
		Session:  snap,
		State:    snap.State(),
		Level:    warning.LevelFor(snap.Flexibility),
		Steps:    len(snap.Records),
		Branches: len(snap.Branches),
	}
}

// Options tune a render.
type Options struct {
	// Timestamp embeds the given export time. Nil keeps output a pure
	// function of the session.
	Timestamp *time.Time
}

// Render produces the summary in the requested format.
func Render(sum *Summary, format Format, opts Options) ([]byte, error) {
	out := *sum
	out.ExportedAt = opts.Timestamp

	switch format {
	case FormatJSON:
		return renderJSON(&out)
	case FormatCSV:
		return renderCSV(&out)
	case FormatMarkdown:
		return renderMarkdown(&out)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Import parses a JSON export back into a Session. Only FormatJSON
// supports re-import.
func Import(data []byte) (*session.Session, error) {
	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("failed to parse session export: %w", err)
	}
	if sum.Session == nil {
		return nil, errors.New("export contains no session document")
	}
	return sum.Session, nil
}

func renderJSON(sum *Summary) ([]byte, error) {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return append(data, '\n'), nil
}

var csvHeader = []string{
	"session_id", "branch_id", "step_index", "revises_step",
	"content", "options_closed", "options_opened", "reversibility_cost",
	"timestamp",
}

func renderCSV(sum *Summary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	writeRow := func(branchID string, r session.StepRecord) error {
		revises := ""
		if r.RevisesStepIndex != nil {
			revises = strconv.Itoa(*r.RevisesStepIndex)
		}
		return w.Write([]string{
			sum.Session.ID,
			branchID,
			strconv.Itoa(r.StepIndex),
			revises,
			r.Content,
			strconv.Itoa(r.Impact.OptionsClosed),
			strconv.Itoa(r.Impact.OptionsOpened),
			strconv.FormatFloat(r.Impact.ReversibilityCost, 'f', -1, 64),
			r.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	for _, r := range sum.Session.Records {
		if err := writeRow("", r); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	for _, id := range sortedBranchIDs(sum.Session) {
		for _, r := range sum.Session.Branches[id].Records {
			if err := writeRow(id, r); err != nil {
				return nil, fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderMarkdown(sum *Summary) ([]byte, error) {
	s := sum.Session
	var b strings.Builder

	fmt.Fprintf(&b, "# Session %s\n\n", s.ID)
	if s.Problem != "" {
		fmt.Fprintf(&b, "**Problem:** %s\n\n", s.Problem)
	}
	fmt.Fprintf(&b, "- Techniques: %s\n", strings.Join(s.Techniques, ", "))
	fmt.Fprintf(&b, "- Time budget: %s\n", s.TimeBudget)
	fmt.Fprintf(&b, "- State: %s (%d/%d steps)\n", sum.State, min(len(s.Records), s.TotalSteps()), s.TotalSteps())
	fmt.Fprintf(&b, "- Flexibility: %.2f (%s)\n", s.Flexibility, sum.Level)
	if sum.ExportedAt != nil {
		fmt.Fprintf(&b, "- Exported: %s\n", sum.ExportedAt.UTC().Format(time.RFC3339))
	}

	b.WriteString("\n## Steps\n\n")
	for _, r := range s.Records {
		marker := ""
		if r.RevisesStepIndex != nil {
			marker = fmt.Sprintf(" (revises step %d)", *r.RevisesStepIndex)
		}
		fmt.Fprintf(&b, "%d. %s%s\n", r.StepIndex, r.Content, marker)
	}

	if len(s.PathMemory.Commitments) > 0 {
		b.WriteString("\n## Commitments\n\n")
		for _, c := range s.PathMemory.Commitments {
			fmt.Fprintf(&b, "- step %d: %s (irreversibility %.2f)\n",
				c.CreatedAtStep, c.Description, c.Irreversibility)
		}
	}

	if len(s.Branches) > 0 {
		b.WriteString("\n## Branches\n\n")
		for _, id := range sortedBranchIDs(s) {
			br := s.Branches[id]
			fmt.Fprintf(&b, "### %s (from step %d)\n\n", id, br.FromStep)
			for _, r := range br.Records {
				fmt.Fprintf(&b, "%d. %s\n", r.StepIndex, r.Content)
			}
			b.WriteString("\n")
		}
	}

	return []byte(b.String()), nil
}

// sortedBranchIDs keeps branch iteration deterministic; map order is not.
func sortedBranchIDs(s *session.Session) []string {
	ids := make([]string, 0, len(s.Branches))
	for id := range s.Branches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
