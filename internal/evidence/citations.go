// Package evidence holds the literature reference model and the citation
// linking heuristics that trace rules back to published research.
package evidence

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EvidenceLevel is the clinical strength-of-evidence grade, 1a strongest
// through 5 weakest.
type EvidenceLevel string

var validLevels = map[EvidenceLevel]bool{
	"1a": true, "1b": true, "2a": true, "2b": true,
	"3a": true, "3b": true, "4": true, "5": true,
}

// ValidLevel reports whether lvl is a recognised evidence grade.
func ValidLevel(lvl EvidenceLevel) bool {
	return validLevels[lvl]
}

// Reference is one bibliographic record. Rules link to references by
// citation key, never by row id.
type Reference struct {
	ID          uuid.UUID     `json:"id"`
	CitationKey string        `json:"citation_key"`
	Authors     string        `json:"authors"`
	Title       string        `json:"title"`
	Journal     string        `json:"journal"`
	Year        int           `json:"year"`
	DOI         string        `json:"doi,omitempty"`
	Level       EvidenceLevel `json:"evidence_level"`
	KeyFindings []string      `json:"key_findings"`
	CreatedAt   time.Time     `json:"created_at"`
}

// authorCitations maps lowercase author surnames to citation keys. This
// table is the whole heuristic: a rule's free-text evidence mentioning an
// author links it to that author's reference. Best-effort only — the
// explicit rule_citations join is authoritative when present.
var authorCitations = map[string]string{
	"watts":         "watts2004",
	"schöffl":       "schoeffl2010",
	"schoeffl":      "schoeffl2010",
	"draper":        "draper2011",
	"baláš":         "balas2012",
	"balas":         "balas2012",
	"giles":         "giles2006",
	"españa-romero": "espana2009",
	"espana-romero": "espana2009",
	"macleod":       "macleod2007",
	"saul":          "saul2019",
	"lutter":        "lutter2017",
	"michael":       "michael2019",
	"jones":         "jones2016",
}

// ExtractCitationKeys scans free evidence text for known author surnames
// and returns the matched citation keys, deduplicated and sorted. An empty
// result means the text named nobody we know.
func ExtractCitationKeys(evidenceText string) []string {
	if evidenceText == "" {
		return nil
	}
	lower := strings.ToLower(evidenceText)

	seen := map[string]bool{}
	for surname, key := range authorCitations {
		if strings.Contains(lower, surname) && !seen[key] {
			seen[key] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KnownAuthors returns the surnames the heuristic can match, sorted. Used
// by the API to tell editors what the extractor will and will not see.
func KnownAuthors() []string {
	out := make([]string, 0, len(authorCitations))
	for surname := range authorCitations {
		out = append(out, surname)
	}
	sort.Strings(out)
	return out
}
