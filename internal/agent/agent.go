// Package agent holds the evidence aggregators that run after candidate
// discovery: trial landscape, patent risk, supply signals, literature
// synthesis, and web intelligence. Aggregators never fail a run; a broken
// collaborator degrades the agent to a structured empty output.
package agent

import (
	"context"
	"sort"

	"github.com/drug-repurposing-server/pkg/external"
)

// WebSearcher is the slice of the web search client consumed by the
// patent, supply, and web intelligence agents.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]external.SearchResult, error)
}

// TextGenerator is the slice of the LLM client used for narrative
// synthesis. A nil or disabled generator switches the consuming agent to
// its deterministic fallback.
type TextGenerator interface {
	Enabled() bool
	GenerateJSON(ctx context.Context, prompt string, out interface{}) error
}

// topKeys returns the n highest-count keys, ties broken alphabetically so
// output is stable across runs.
func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func ellipsize(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
