// Package stats aggregates per-technique effectiveness across stored
// sessions: how often each technique is used, how often it is carried
// to completion, and what it does to flexibility along the way.
package stats

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/session"
)

// TechniqueStats is the aggregate for one technique.
type TechniqueStats struct {
	// Technique is the catalog id.
	Technique string `json:"technique"`

	// UsageCount is the number of sessions whose plan includes the
	// technique.
	UsageCount int `json:"usageCount"`

	// CompletionRate is the fraction of those sessions that executed
	// every planned step of the technique.
	CompletionRate float64 `json:"completionRate"`

	// AverageEffectiveness is the mean final flexibility score of
	// sessions using the technique. Sessions that preserve optionality
	// score high.
	AverageEffectiveness float64 `json:"averageEffectiveness"`

	// AverageInsights is the mean options opened per executed step of
	// the technique.
	AverageInsights float64 `json:"averageInsights"`

	// AverageRisks is the mean options closed per executed step.
	AverageRisks float64 `json:"averageRisks"`
}

// Report is the full aggregation, ordered by usage descending, then id.
type Report struct {
	Techniques    []TechniqueStats `json:"techniques"`
	SessionsTotal int              `json:"sessionsTotal"`
}

// Aggregate walks every stored session and accumulates per-technique
// stats. Sessions that fail to load are skipped with a warning rather
// than sinking the whole report.
func Aggregate(ctx context.Context, store session.Store, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ids, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	acc := make(map[string]*accumulator)
	loaded := 0
	for _, id := range ids {
		s, err := store.Load(ctx, id)
		if err != nil {
			logger.Warn("skipping unreadable session", zap.String("session_id", id), zap.Error(err))
			continue
		}
		loaded++
		accumulate(acc, s)
	}

	report := &Report{SessionsTotal: loaded}
	for id, a := range acc {
		report.Techniques = append(report.Techniques, a.finish(id))
	}
	sort.Slice(report.Techniques, func(i, j int) bool {
		a, b := report.Techniques[i], report.Techniques[j]
		if a.UsageCount != b.UsageCount {
			return a.UsageCount > b.UsageCount
		}
		return a.Technique < b.Technique
	})
	return report, nil
}

type accumulator struct {
	usage       int
	completed   int
	scoreSum    float64
	steps       int
	insightsSum int
	risksSum    int
}

func accumulate(acc map[string]*accumulator, s *session.Session) {
	// Plan boundaries per technique: a technique is complete once
	// every one of its planned steps has been executed.
	lastStep := make(map[string]int)
	for _, p := range s.Plan {
		lastStep[p.TechniqueID] = p.PlanIndex
	}

	executed := make(map[int]bool, len(s.Records))
	perStep := make(map[int]session.Impact)
	for _, r := range s.Records {
		executed[r.StepIndex] = true
		perStep[r.StepIndex] = r.Impact
	}

	for _, id := range s.Techniques {
		a := acc[id]
		if a == nil {
			a = &accumulator{}
			acc[id] = a
		}
		a.usage++
		a.scoreSum += s.Flexibility

		if last, ok := lastStep[id]; ok && s.CurrentStep > last {
			a.completed++
		}

		for _, p := range s.Plan {
			if p.TechniqueID != id || !executed[p.PlanIndex] {
				continue
			}
			impact := perStep[p.PlanIndex]
			a.steps++
			a.insightsSum += impact.OptionsOpened
			a.risksSum += impact.OptionsClosed
		}
	}
}

func (a *accumulator) finish(id string) TechniqueStats {
	out := TechniqueStats{
		Technique:  id,
		UsageCount: a.usage,
	}
	if a.usage > 0 {
		out.CompletionRate = float64(a.completed) / float64(a.usage)
		out.AverageEffectiveness = a.scoreSum / float64(a.usage)
	}
	if a.steps > 0 {
		out.AverageInsights = float64(a.insightsSum) / float64(a.steps)
		out.AverageRisks = float64(a.risksSum) / float64(a.steps)
	}
	return out
}
