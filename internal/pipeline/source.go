package pipeline

import (
	"context"
	"strings"
)

// CandidateSource returns image locators for a text query. It may return
// fewer than max results, or none.
type CandidateSource interface {
	Search(ctx context.Context, query string, max int) ([]string, error)
}

// StaticSource serves a fixed list of locators for every query.
type StaticSource []string

// Search returns up to max locators.
func (s StaticSource) Search(ctx context.Context, query string, max int) ([]string, error) {
	out := []string(s)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return append([]string(nil), out...), nil
}

// prepareCandidates trims blanks and duplicates, keeping first occurrences,
// and truncates to max when max is positive.
func prepareCandidates(locators []string, max int) []string {
	seen := make(map[string]bool, len(locators))
	out := make([]string, 0, len(locators))
	for _, l := range locators {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
