package agent

import (
	"strings"
	"unicode/utf8"

	"github.com/taskbuddy/backend/internal/metrics"
)

// Resolver tiers, reported in metrics.
const (
	TierExact     = "exact"
	TierSubstring = "substring"
	TierOverlap   = "overlap"
)

// Phrases stripped from delete messages after the delete keywords, in this
// order. Longer phrases first so "tasks from my list" goes before "task".
var deleteStripPhrases = []string{
	"tasks from my list",
	"from my list",
	"the task called",
	"the task",
	"task called",
	"task named",
	"task",
	"from",
	"my",
	"list",
}

// ExtractDeleteFragment pulls the task reference out of a delete message by
// removing the delete keywords and filler phrases.
func ExtractDeleteFragment(message string) string {
	lower := strings.ToLower(message)
	for _, kw := range deleteKeywords {
		lower = strings.ReplaceAll(lower, kw, "")
	}
	for _, phrase := range deleteStripPhrases {
		lower = strings.ReplaceAll(lower, phrase, "")
	}
	return trimFragment(lower)
}

// Keywords stripped from complete messages. "mark" handles "mark X as done"
// once "mark as done" itself is gone.
var completeStripKeywords = []string{"complete", "finish", "done", "mark as done", "mark", "finished", "completed"}

// ExtractCompleteFragment pulls the task reference out of a completion
// message.
func ExtractCompleteFragment(message string) string {
	lower := strings.ToLower(message)
	for _, kw := range completeStripKeywords {
		lower = strings.ReplaceAll(lower, kw, "")
	}
	lower = strings.ReplaceAll(lower, "the task", "")
	lower = strings.ReplaceAll(lower, "task", "")
	return trimFragment(lower)
}

func trimFragment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, `'`)
	return strings.TrimSpace(s)
}

// FragmentUsable reports whether a fragment is long enough to attempt a
// match. Anything under two runes would match half the pool.
func FragmentUsable(fragment string) bool {
	return utf8.RuneCountInString(fragment) >= 2
}

// ResolveReference finds the task a fragment refers to. Three tiers, each
// only consulted when the previous one found nothing:
//
//  1. exact: case-insensitive title equality
//  2. substring: fragment contained in title or title contained in fragment
//  3. overlap: best shared-word count, accepted only when the score covers
//     at least half the fragment's words
func ResolveReference(fragment string, pool []TaskSnapshot) Resolution {
	fragment = strings.ToLower(strings.TrimSpace(fragment))
	if !FragmentUsable(fragment) {
		return Resolution{EmptyRef: true}
	}

	for i := range pool {
		if strings.ToLower(pool[i].Title) == fragment {
			metrics.ResolverTierHits.WithLabelValues(TierExact).Inc()
			return Resolution{Task: &pool[i], Tier: TierExact}
		}
	}

	for i := range pool {
		title := strings.ToLower(pool[i].Title)
		if strings.Contains(title, fragment) || strings.Contains(fragment, title) {
			metrics.ResolverTierHits.WithLabelValues(TierSubstring).Inc()
			return Resolution{Task: &pool[i], Tier: TierSubstring}
		}
	}

	fragWords := wordSet(fragment)
	var best *TaskSnapshot
	bestScore := 0
	for i := range pool {
		score := 0
		for word := range wordSet(strings.ToLower(pool[i].Title)) {
			if _, ok := fragWords[word]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &pool[i]
		}
	}
	if best != nil && float64(bestScore) >= float64(len(fragWords))*0.5 {
		metrics.ResolverTierHits.WithLabelValues(TierOverlap).Inc()
		return Resolution{Task: best, Tier: TierOverlap}
	}

	return Resolution{}
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(s) {
		set[word] = struct{}{}
	}
	return set
}
