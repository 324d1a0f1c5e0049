package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/summitlab/crux/internal/evidence"
	"github.com/summitlab/crux/internal/rules"
)

const referenceColumns = `
	id, citation_key, authors, title, journal, year, doi, evidence_level,
	key_findings, created_at`

// GetReferences fetches the literature rows for the given citation keys.
// Unknown keys are simply absent from the result.
func (s *Store) GetReferences(ctx context.Context, citationKeys []string) ([]evidence.Reference, error) {
	if len(citationKeys) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT`+referenceColumns+` FROM literature_references
		WHERE citation_key = ANY($1)
		ORDER BY citation_key`,
		citationKeys,
	)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	return scanReferences(rows)
}

// CitationKeysForRule returns the explicit rule_citations links for a rule.
func (s *Store) CitationKeysForRule(ctx context.Context, ruleID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT citation_key FROM rule_citations
		WHERE rule_id = $1
		ORDER BY citation_key`,
		ruleID,
	)
	if err != nil {
		return nil, fmt.Errorf("query citation keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan citation key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate citation keys: %w", err)
	}
	return keys, nil
}

// ReferencesForRule resolves a rule's literature. The explicit join is
// authoritative; when a rule predates the join or was entered with prose
// evidence only, the author heuristic over the evidence text fills in.
func (s *Store) ReferencesForRule(ctx context.Context, ruleID uuid.UUID) ([]evidence.Reference, error) {
	keys, err := s.CitationKeysForRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		rule, err := s.GetRule(ctx, ruleID)
		if err != nil {
			return nil, err
		}
		keys = evidence.ExtractCitationKeys(rule.Evidence)
	}
	return s.GetReferences(ctx, keys)
}

// UpsertReference creates a literature reference if its citation key is
// new, otherwise leaves the existing record untouched.
func (s *Store) UpsertReference(ctx context.Context, ref evidence.Reference) error {
	return upsertReference(ctx, s.pool, ref)
}

// PromoteResearchedRule folds one AI-researched finding into the rule base:
// the rule row (source literature, active, audited as created), the
// literature reference, and the explicit citation link land in one
// transaction. Idempotent per (citation key, rule name): re-promotion
// returns ErrAlreadyAdded and writes nothing.
func (s *Store) PromoteResearchedRule(ctx context.Context, in rules.Input, ref evidence.Reference, addedBy string) (*rules.Rule, error) {
	if ref.CitationKey == "" {
		return nil, fmt.Errorf("%w: finding has no citation key", rules.ErrInvalid)
	}
	in.Source = rules.SourceLiterature
	if err := rules.ValidateInput(in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT r.id FROM expert_rules r
		JOIN rule_citations c ON c.rule_id = r.id
		WHERE r.name = $1 AND c.citation_key = $2
		LIMIT 1`,
		in.Name, ref.CitationKey,
	).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("rule %q for %s: %w", in.Name, ref.CitationKey, ErrAlreadyAdded)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing promotion: %w", err)
	}

	if err := upsertReference(ctx, tx, ref); err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("promoted from literature research (%s)", ref.CitationKey)
	rule, err := insertRule(ctx, tx, in, addedBy, reason, []string{ref.CitationKey})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rule, nil
}

// executor covers both the pool and an open transaction.
type executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func upsertReference(ctx context.Context, db executor, ref evidence.Reference) error {
	if !evidence.ValidLevel(ref.Level) {
		return fmt.Errorf("unknown evidence level %q", ref.Level)
	}
	id := ref.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := db.Exec(ctx, `
		INSERT INTO literature_references (id, citation_key, authors, title, journal, year, doi,
			evidence_level, key_findings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (citation_key) DO NOTHING`,
		id, ref.CitationKey, ref.Authors, ref.Title, ref.Journal, ref.Year, ref.DOI,
		string(ref.Level), ref.KeyFindings,
	)
	if err != nil {
		return fmt.Errorf("upsert reference: %w", err)
	}
	return nil
}

func scanReferences(rows pgx.Rows) ([]evidence.Reference, error) {
	var out []evidence.Reference
	for rows.Next() {
		var (
			ref   evidence.Reference
			level string
		)
		err := rows.Scan(&ref.ID, &ref.CitationKey, &ref.Authors, &ref.Title, &ref.Journal,
			&ref.Year, &ref.DOI, &level, &ref.KeyFindings, &ref.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		ref.Level = evidence.EvidenceLevel(level)
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return out, nil
}
