// Package safety inspects outbound user text for emergency indicators before
// it is dispatched to the assistant. Classification is a pure substring scan
// over fixed keyword lists; it signals, it never blocks. Deciding what to do
// with a flagged message is the session controller's job.
package safety

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Level distinguishes why a message was flagged. Both levels escalate; the
// render layer only uses the level to pick the escalation copy.
type Level string

const (
	// LevelNone means no keyword matched.
	LevelNone Level = "safe"
	// LevelEmergency means the text matched an emergency keyword.
	LevelEmergency Level = "emergency"
	// LevelHighRisk means the text matched a high-risk symptom.
	LevelHighRisk Level = "high_risk"
)

// Result is the outcome of classifying one input.
type Result struct {
	Emergency bool
	Level     Level
	// Keyword is the first keyword that matched, in its configured form.
	Keyword string
}

// Default keyword lists. Matching is case-insensitive substring match with no
// word-boundary handling, so "chest pain" inside a longer sentence matches.
var (
	defaultEmergencyKeywords = []string{
		"heart attack", "stroke", "suicide", "severe pain",
		"bleeding heavily", "can't breathe", "unconscious",
		"chest pain", "shortness of breath", "sudden paralysis",
		"choking", "overdose", "poisoning", "seizure",
	}

	defaultHighRiskSymptoms = []string{
		"severe headache", "high fever", "seizure",
		"broken bone", "deep cut", "poisoning",
		"difficulty breathing", "chest pressure", "paralysis",
	}
)

// Query length bounds enforced before dispatch.
const (
	minQueryLen = 3
	maxQueryLen = 500
)

// ErrQueryTooShort and ErrQueryTooLong reject inputs outside the accepted
// length bounds. Both are validation failures handled locally, with no
// network call and no transcript mutation.
var (
	ErrQueryTooShort = errors.New("query too short, please provide more details")
	ErrQueryTooLong  = errors.New("query too long, please keep it under 500 characters")
)

// Gate classifies user input against its keyword lists. The zero value is not
// usable; construct with NewGate.
type Gate struct {
	emergency []string
	highRisk  []string
}

// NewGate builds a gate from the given keyword lists. Empty lists fall back
// to the built-in defaults. Keywords are matched lowercase.
func NewGate(emergencyKeywords, highRiskSymptoms []string) Gate {
	if len(emergencyKeywords) == 0 {
		emergencyKeywords = defaultEmergencyKeywords
	}
	if len(highRiskSymptoms) == 0 {
		highRiskSymptoms = defaultHighRiskSymptoms
	}

	return Gate{
		emergency: lowered(emergencyKeywords),
		highRisk:  lowered(highRiskSymptoms),
	}
}

func lowered(keywords []string) []string {
	out := make([]string, len(keywords))
	for i, kw := range keywords {
		out[i] = strings.ToLower(kw)
	}
	return out
}

// Classify reports whether text contains an emergency indicator. The first
// match short-circuits; absence of a match is the default outcome. Classify
// never fails and has no side effects.
func (g Gate) Classify(text string) Result {
	lower := strings.ToLower(text)

	for _, kw := range g.emergency {
		if strings.Contains(lower, kw) {
			return Result{Emergency: true, Level: LevelEmergency, Keyword: kw}
		}
	}
	for _, kw := range g.highRisk {
		if strings.Contains(lower, kw) {
			return Result{Emergency: true, Level: LevelHighRisk, Keyword: kw}
		}
	}

	return Result{Level: LevelNone}
}

// ValidateQuery checks the length bounds of an already-trimmed input.
func ValidateQuery(text string) error {
	n := utf8.RuneCountInString(text)
	switch {
	case n < minQueryLen:
		return ErrQueryTooShort
	case n > maxQueryLen:
		return ErrQueryTooLong
	}
	return nil
}
