// Package research drives the literature-search side of the rule base: an
// external AI service proposes rules from published research, and a human
// promotes the ones worth keeping.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/summitlab/crux/internal/evidence"
	"github.com/summitlab/crux/internal/rules"
)

// Finding is one paper the search surfaced, with zero or more rules the
// AI proposes deriving from it. Nothing here touches the store until a
// human promotes a proposed rule.
type Finding struct {
	CitationKey   string                 `json:"citation_key"`
	Authors       string                 `json:"authors"`
	Title         string                 `json:"title"`
	Journal       string                 `json:"journal"`
	Year          int                    `json:"year"`
	DOI           string                 `json:"doi,omitempty"`
	EvidenceLevel evidence.EvidenceLevel `json:"evidence_level"`
	KeyFindings   []string               `json:"key_findings"`
	Summary       string                 `json:"summary"`
	ProposedRules []ProposedRule         `json:"proposed_rules"`
}

// ProposedRule is an AI-drafted rule awaiting human judgment.
type ProposedRule struct {
	Name       string            `json:"name"`
	Category   rules.Category    `json:"rule_category"`
	Priority   int               `json:"priority"`
	Conditions []rules.Condition `json:"conditions"`
	Actions    []rules.Action    `json:"actions"`
	Confidence float64           `json:"confidence"`
	Rationale  string            `json:"rationale"`
}

// Result is one search's full output.
type Result struct {
	Topic      string    `json:"topic"`
	Findings   []Finding `json:"findings"`
	SearchedAt time.Time `json:"searched_at"`
}

// Caller is the slice of the AI client the service needs.
type Caller interface {
	Call(ctx context.Context, path string, payload, out any) error
}

// Promoter is the slice of the store the service needs.
type Promoter interface {
	PromoteResearchedRule(ctx context.Context, in rules.Input, ref evidence.Reference, addedBy string) (*rules.Rule, error)
}

type Service struct {
	ai     Caller
	store  Promoter
	logger *slog.Logger
}

func NewService(ai Caller, store Promoter, logger *slog.Logger) *Service {
	return &Service{ai: ai, store: store, logger: logger}
}

// Search asks the external service for literature on a topic. Long-running
// (up to ~90 s); ctx cancellation aborts it cleanly with no partial state,
// because nothing is written until promotion.
func (s *Service) Search(ctx context.Context, topic string) (*Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: research topic is required", rules.ErrInvalid)
	}

	s.logger.Info("research search starting", "topic", topic)
	start := time.Now()

	var result Result
	if err := s.ai.Call(ctx, "/v1/research/rules", map[string]string{"topic": topic}, &result); err != nil {
		return nil, fmt.Errorf("research search: %w", err)
	}
	result.Topic = topic
	result.SearchedAt = time.Now().UTC()

	proposed := 0
	for _, f := range result.Findings {
		proposed += len(f.ProposedRules)
	}
	s.logger.Info("research search complete",
		"topic", topic,
		"findings", len(result.Findings),
		"proposed_rules", proposed,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return &result, nil
}

// Promote folds one proposed rule into the rule base. The store makes the
// rule, its citation link, and the literature reference land together;
// re-promoting the same (citation key, rule name) is reported as already
// added, not duplicated.
func (s *Service) Promote(ctx context.Context, pr ProposedRule, finding Finding, addedBy string) (*rules.Rule, error) {
	in := rules.Input{
		Name:       pr.Name,
		Category:   pr.Category,
		Priority:   pr.Priority,
		Conditions: pr.Conditions,
		Actions:    pr.Actions,
		Confidence: pr.Confidence,
		Source:     rules.SourceLiterature,
		Evidence:   evidenceText(finding),
	}

	ref := evidence.Reference{
		CitationKey: finding.CitationKey,
		Authors:     finding.Authors,
		Title:       finding.Title,
		Journal:     finding.Journal,
		Year:        finding.Year,
		DOI:         finding.DOI,
		Level:       finding.EvidenceLevel,
		KeyFindings: finding.KeyFindings,
	}

	rule, err := s.store.PromoteResearchedRule(ctx, in, ref, addedBy)
	if err != nil {
		return nil, err
	}

	s.logger.Info("researched rule promoted",
		"rule_id", rule.ID,
		"rule", rule.Name,
		"citation_key", finding.CitationKey,
		"added_by", addedBy,
	)
	return rule, nil
}

// evidenceText renders the finding as the rule's evidence prose so the
// rule stays legible without a join, while the explicit citation link
// carries the authoritative connection.
func evidenceText(f Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d). %s. %s.", f.Authors, f.Year, f.Title, f.Journal)
	if f.Summary != "" {
		b.WriteString(" ")
		b.WriteString(f.Summary)
	}
	return b.String()
}
