package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/summitlab/crux/internal/evidence"
	"github.com/summitlab/crux/internal/rules"
)

const ruleColumns = `
	id, name, category, priority, conditions, actions, confidence,
	source, evidence, is_active, created_at, updated_at`

// ListRules returns rules ordered by priority descending; safety-critical
// entries first. Pass isActive to filter.
func (s *Store) ListRules(ctx context.Context, isActive *bool) ([]rules.Rule, error) {
	query := `SELECT` + ruleColumns + ` FROM expert_rules`
	args := []any{}
	if isActive != nil {
		query += ` WHERE is_active = $1`
		args = append(args, *isActive)
	}
	query += ` ORDER BY priority DESC, created_at ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// GetRule fetches one rule by id.
func (s *Store) GetRule(ctx context.Context, id uuid.UUID) (*rules.Rule, error) {
	rows, err := s.pool.Query(ctx, `SELECT`+ruleColumns+` FROM expert_rules WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query rule: %w", err)
	}
	defer rows.Close()

	out, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return &out[0], nil
}

// CreateRule inserts a rule plus its "created" audit entry and citation
// links in one transaction. Explicit citationKeys win; when none are given
// the links are seeded from the author heuristic over the evidence text.
func (s *Store) CreateRule(ctx context.Context, in rules.Input, changedBy, reason string, citationKeys []string) (*rules.Rule, error) {
	if err := rules.ValidateInput(in); err != nil {
		return nil, err
	}
	if err := rules.ValidateAudit(changedBy, reason); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rule, err := insertRule(ctx, tx, in, changedBy, reason, citationKeys)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rule, nil
}

// insertRule does the three writes of a rule creation inside an open
// transaction so promotion can reuse it.
func insertRule(ctx context.Context, tx pgx.Tx, in rules.Input, changedBy, reason string, citationKeys []string) (*rules.Rule, error) {
	conditions, err := json.Marshal(in.Conditions)
	if err != nil {
		return nil, fmt.Errorf("marshal conditions: %w", err)
	}
	actions, err := json.Marshal(in.Actions)
	if err != nil {
		return nil, fmt.Errorf("marshal actions: %w", err)
	}

	rule := rules.Rule{
		ID:         uuid.New(),
		Name:       in.Name,
		Category:   in.Category,
		Priority:   rules.ClampPriority(in.Priority),
		Conditions: in.Conditions,
		Actions:    in.Actions,
		Confidence: in.Confidence,
		Source:     in.Source,
		Evidence:   in.Evidence,
		IsActive:   true,
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO expert_rules (id, name, category, priority, conditions, actions, confidence,
			source, evidence, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true, now(), now())
		RETURNING created_at, updated_at`,
		rule.ID, rule.Name, string(rule.Category), rule.Priority, conditions, actions,
		rule.Confidence, string(rule.Source), rule.Evidence,
	)
	if err := row.Scan(&rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}

	if err := appendAudit(ctx, tx, rule.ID, rules.AuditCreated, changedBy, reason); err != nil {
		return nil, err
	}

	if citationKeys == nil {
		citationKeys = evidence.ExtractCitationKeys(in.Evidence)
	}
	for _, key := range citationKeys {
		if _, err := tx.Exec(ctx, `
			INSERT INTO rule_citations (rule_id, citation_key)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			rule.ID, key,
		); err != nil {
			return nil, fmt.Errorf("insert citation link: %w", err)
		}
	}

	return &rule, nil
}

// UpdateRule applies a partial update and records exactly one "modified"
// audit entry carrying the caller's reason. Rule row and audit entry are
// one transaction: if either write fails, neither lands.
func (s *Store) UpdateRule(ctx context.Context, id uuid.UUID, patch rules.Patch, changedBy, reason string) (*rules.Rule, error) {
	if err := rules.ValidatePatch(patch); err != nil {
		return nil, err
	}
	if err := rules.ValidateAudit(changedBy, reason); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockRule(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	evidenceChanged := false
	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Category != nil {
		current.Category = *patch.Category
	}
	if patch.Priority != nil {
		current.Priority = rules.ClampPriority(*patch.Priority)
	}
	if patch.Conditions != nil {
		current.Conditions = *patch.Conditions
	}
	if patch.Actions != nil {
		current.Actions = *patch.Actions
	}
	if patch.Confidence != nil {
		current.Confidence = *patch.Confidence
	}
	if patch.Evidence != nil && *patch.Evidence != current.Evidence {
		current.Evidence = *patch.Evidence
		evidenceChanged = true
	}

	conditions, err := json.Marshal(current.Conditions)
	if err != nil {
		return nil, fmt.Errorf("marshal conditions: %w", err)
	}
	actions, err := json.Marshal(current.Actions)
	if err != nil {
		return nil, fmt.Errorf("marshal actions: %w", err)
	}

	row := tx.QueryRow(ctx, `
		UPDATE expert_rules
		SET name = $1, category = $2, priority = $3, conditions = $4, actions = $5,
			confidence = $6, evidence = $7, updated_at = now()
		WHERE id = $8
		RETURNING updated_at`,
		current.Name, string(current.Category), current.Priority, conditions, actions,
		current.Confidence, current.Evidence, id,
	)
	if err := row.Scan(&current.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}

	if err := appendAudit(ctx, tx, id, rules.AuditModified, changedBy, reason); err != nil {
		return nil, err
	}

	// New evidence prose may name authors the old links missed. Links are
	// only ever added here; removing one is an editorial call.
	if evidenceChanged {
		for _, key := range evidence.ExtractCitationKeys(current.Evidence) {
			if _, err := tx.Exec(ctx, `
				INSERT INTO rule_citations (rule_id, citation_key)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING`,
				id, key,
			); err != nil {
				return nil, fmt.Errorf("insert citation link: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return current, nil
}

// SetRuleActive toggles a rule and records the matching audit entry in the
// same transaction.
func (s *Store) SetRuleActive(ctx context.Context, id uuid.UUID, active bool, changedBy, reason string) (*rules.Rule, error) {
	if err := rules.ValidateAudit(changedBy, reason); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockRule(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	current.IsActive = active

	row := tx.QueryRow(ctx, `
		UPDATE expert_rules SET is_active = $1, updated_at = now()
		WHERE id = $2
		RETURNING updated_at`,
		active, id,
	)
	if err := row.Scan(&current.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update rule active flag: %w", err)
	}

	action := rules.AuditActivated
	if !active {
		action = rules.AuditDeactivated
	}
	if err := appendAudit(ctx, tx, id, action, changedBy, reason); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return current, nil
}

// AuditLog returns a rule's full decision journal, oldest entry first.
func (s *Store) AuditLog(ctx context.Context, ruleID uuid.UUID) ([]rules.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_id, action, changed_by, reason, created_at
		FROM rule_audit_log
		WHERE rule_id = $1
		ORDER BY created_at ASC`,
		ruleID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []rules.AuditEntry
	for rows.Next() {
		var (
			e      rules.AuditEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.RuleID, &action, &e.ChangedBy, &e.Reason, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = rules.AuditAction(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return out, nil
}

func appendAudit(ctx context.Context, tx pgx.Tx, ruleID uuid.UUID, action rules.AuditAction, changedBy, reason string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO rule_audit_log (id, rule_id, action, changed_by, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		uuid.New(), ruleID, string(action), changedBy, reason,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func lockRule(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*rules.Rule, error) {
	row := tx.QueryRow(ctx, `SELECT`+ruleColumns+` FROM expert_rules WHERE id = $1 FOR UPDATE`, id)

	var (
		r          rules.Rule
		category   string
		source     string
		conditions []byte
		actions    []byte
	)
	err := row.Scan(&r.ID, &r.Name, &category, &r.Priority, &conditions, &actions,
		&r.Confidence, &source, &r.Evidence, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock rule: %w", err)
	}
	if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal(actions, &r.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	r.Category = rules.Category(category)
	r.Source = rules.Source(source)
	return &r, nil
}

func scanRules(rows pgx.Rows) ([]rules.Rule, error) {
	var out []rules.Rule
	for rows.Next() {
		var (
			r          rules.Rule
			category   string
			source     string
			conditions []byte
			actions    []byte
		)
		err := rows.Scan(&r.ID, &r.Name, &category, &r.Priority, &conditions, &actions,
			&r.Confidence, &source, &r.Evidence, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions: %w", err)
		}
		if err := json.Unmarshal(actions, &r.Actions); err != nil {
			return nil, fmt.Errorf("unmarshal actions: %w", err)
		}
		r.Category = rules.Category(category)
		r.Source = rules.Source(source)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}
