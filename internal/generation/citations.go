package generation

import (
	"path/filepath"
	"regexp"
	"sort"

	"github.com/ragline/ragline/internal/ingestion"
	"github.com/ragline/ragline/internal/store"
)

// citationPattern matches inline citations of the form "[Source: name]".
// The lazy group tolerates file names containing spaces.
var citationPattern = regexp.MustCompile(`\[Source: (.*?)\]`)

// ExtractCitations returns the unique source names cited in an answer,
// sorted. An answer with no citations yields nil.
func ExtractCitations(answer string) []string {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var cites []string
	for _, m := range matches {
		if name := m[1]; name != "" && !seen[name] {
			seen[name] = true
			cites = append(cites, name)
		}
	}
	sort.Strings(cites)
	return cites
}

// citationsFromResults derives citations directly from retrieval metadata,
// for degraded responses where no model output exists to parse.
func citationsFromResults(results []store.RetrievalResult) []string {
	seen := make(map[string]bool, len(results))
	var cites []string
	for _, r := range results {
		src := r.Metadata[ingestion.MetaSource]
		if src == "" {
			continue
		}
		name := filepath.Base(src)
		if !seen[name] {
			seen[name] = true
			cites = append(cites, name)
		}
	}
	sort.Strings(cites)
	return cites
}
