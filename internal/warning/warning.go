// Package warning discretizes flexibility scores into warning levels
// and watches the score trend for rapid decline.
package warning

// Level is the discretized flexibility state.
type Level string

const (
	LevelSafe     Level = "SAFE"
	LevelCaution  Level = "CAUTION"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Fixed level thresholds.
const (
	SafeThreshold    = 0.7
	CautionThreshold = 0.5
	WarningThreshold = 0.3
)

// RapidDeclineDrop is the score loss over the trend window that flags
// RAPID_DECLINE. A session at WARNING but stable is treated differently
// from one that fell there in a single step.
const RapidDeclineDrop = 0.3

// TrendWindow is how many trailing steps the velocity check inspects.
const TrendWindow = 3

// State is the evaluator's output: the absolute level plus the
// velocity flag, which is independent of level.
type State struct {
	Level        Level `json:"level"`
	RapidDecline bool  `json:"rapid_decline"`
}

// LevelFor maps a score to its warning level at the fixed thresholds.
func LevelFor(score float64) Level {
	switch {
	case score >= SafeThreshold:
		return LevelSafe
	case score >= CautionThreshold:
		return LevelCaution
	case score >= WarningThreshold:
		return LevelWarning
	default:
		return LevelCritical
	}
}

// Evaluate maps the current score and the recent score history (oldest
// first, current score last) to a warning state.
func Evaluate(score float64, history []float64) State {
	return State{
		Level:        LevelFor(score),
		RapidDecline: rapidDecline(history),
	}
}

// rapidDecline reports whether the score fell by at least
// RapidDeclineDrop across the trend window.
func rapidDecline(history []float64) bool {
	if len(history) < 2 {
		return false
	}
	window := history
	if len(window) > TrendWindow {
		window = window[len(window)-TrendWindow:]
	}
	return window[0]-window[len(window)-1] >= RapidDeclineDrop
}

// Mandatory reports whether the state obliges the orchestrator to
// generate options. This is a required side effect, not optional UX.
func (s State) Mandatory() bool {
	return s.Level == LevelCritical || s.RapidDecline
}
