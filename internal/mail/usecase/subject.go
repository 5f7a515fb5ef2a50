package usecase

import (
	"regexp"
	"strings"

	"mailsync-backend/pkg/fuzzy"
)

// RelatednessFunc decides whether an incoming subject continues the conversation
// stored under existing. It is the single tuning point of thread splitting.
type RelatednessFunc func(existing, incoming string) bool

var replyPrefix = regexp.MustCompile(`(?i)^\s*(re|fwd|fw)\s*(\[\d+\])?\s*:\s*`)

// CleanSubject strips any number of reply/forward prefixes and normalizes case and spacing.
func CleanSubject(s string) string {
	for {
		stripped := replyPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// StrictSubjectsRelated treats cleaned subjects as related when equal or when one contains the other.
func StrictSubjectsRelated(existing, incoming string) bool {
	a, b := CleanSubject(existing), CleanSubject(incoming)
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// FuzzySubjectsRelated extends StrictSubjectsRelated with an edit-distance tolerance.
func FuzzySubjectsRelated(threshold int) RelatednessFunc {
	return func(existing, incoming string) bool {
		if StrictSubjectsRelated(existing, incoming) {
			return true
		}
		return fuzzy.WithinDistance(CleanSubject(existing), CleanSubject(incoming), threshold)
	}
}

// RelatednessFromConfig picks the heuristic named by SUBJECT_MATCH.
func RelatednessFromConfig(mode string, threshold int) RelatednessFunc {
	if strings.EqualFold(mode, "fuzzy") {
		return FuzzySubjectsRelated(threshold)
	}
	return StrictSubjectsRelated
}
