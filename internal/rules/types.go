// Package rules defines the expert rule base: prioritized condition/action
// entries traceable to expert consensus or literature, with an append-only
// audit trail.
package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is the closed rule taxonomy. Introducing a new category is a
// taxonomy change, not a data entry.
type Category string

const (
	CategorySafety       Category = "safety"
	CategoryInteraction  Category = "interaction"
	CategoryEdgeCase     Category = "edge_case"
	CategoryConservative Category = "conservative"
	CategoryPerformance  Category = "performance"
)

// Source records where a rule came from.
type Source string

const (
	SourceManual          Source = "manual"
	SourceExpertConsensus Source = "expert_consensus"
	SourceLiterature      Source = "literature"
)

// AuditAction labels one audit log entry.
type AuditAction string

const (
	AuditCreated     AuditAction = "created"
	AuditModified    AuditAction = "modified"
	AuditActivated   AuditAction = "activated"
	AuditDeactivated AuditAction = "deactivated"
)

// Priority bounds. Safety rules conventionally sit at 90-100.
const (
	MinPriority = 0
	MaxPriority = 100
)

// Condition is one structured predicate over a scenario variable.
type Condition struct {
	Variable string `json:"variable"`
	Operator string `json:"operator"` // eq | neq | lt | lte | gt | gte | contains
	Value    string `json:"value"`
}

// Action is one structured effect the rule applies when its conditions hold.
type Action struct {
	Parameter  string `json:"parameter"`
	Adjustment string `json:"adjustment"`
}

// Rule is the current-state projection; the audit log is the event history.
type Rule struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	Category   Category    `json:"rule_category"`
	Priority   int         `json:"priority"`
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`
	Confidence float64     `json:"confidence"`
	Source     Source      `json:"source"`
	Evidence   string      `json:"evidence"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Input is the creation payload.
type Input struct {
	Name       string      `json:"name"`
	Category   Category    `json:"rule_category"`
	Priority   int         `json:"priority"`
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`
	Confidence float64     `json:"confidence"`
	Source     Source      `json:"source"`
	Evidence   string      `json:"evidence"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Name       *string      `json:"name,omitempty"`
	Category   *Category    `json:"rule_category,omitempty"`
	Priority   *int         `json:"priority,omitempty"`
	Conditions *[]Condition `json:"conditions,omitempty"`
	Actions    *[]Action    `json:"actions,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
	Evidence   *string      `json:"evidence,omitempty"`
}

// AuditEntry is one immutable decision-journal record. Reason carries the
// cause of the change, not just its value.
type AuditEntry struct {
	ID        uuid.UUID   `json:"id"`
	RuleID    uuid.UUID   `json:"rule_id"`
	Action    AuditAction `json:"action"`
	ChangedBy string      `json:"changed_by"`
	Reason    string      `json:"reason"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrInvalid marks a rule payload rejected before any store write.
var ErrInvalid = errors.New("invalid rule")

// ClampPriority pins p into [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// ValidCategory reports whether c belongs to the closed taxonomy.
func ValidCategory(c Category) bool {
	switch c {
	case CategorySafety, CategoryInteraction, CategoryEdgeCase, CategoryConservative, CategoryPerformance:
		return true
	}
	return false
}

// ValidSource reports whether s is a known rule origin.
func ValidSource(s Source) bool {
	switch s {
	case SourceManual, SourceExpertConsensus, SourceLiterature:
		return true
	}
	return false
}

// ValidateInput checks a rule creation payload.
func ValidateInput(in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !ValidCategory(in.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, in.Category)
	}
	if !ValidSource(in.Source) {
		return fmt.Errorf("%w: unknown source %q", ErrInvalid, in.Source)
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f out of [0,1]", ErrInvalid, in.Confidence)
	}
	if len(in.Conditions) == 0 {
		return fmt.Errorf("%w: at least one condition is required", ErrInvalid)
	}
	if len(in.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalid)
	}
	return nil
}

// ValidatePatch checks the fields a patch actually sets.
func ValidatePatch(p Patch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: name cannot be blanked", ErrInvalid)
	}
	if p.Category != nil && !ValidCategory(*p.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, *p.Category)
	}
	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		return fmt.Errorf("%w: confidence %.2f out of [0,1]", ErrInvalid, *p.Confidence)
	}
	if p.Conditions != nil && len(*p.Conditions) == 0 {
		return fmt.Errorf("%w: conditions cannot be emptied", ErrInvalid)
	}
	if p.Actions != nil && len(*p.Actions) == 0 {
		return fmt.Errorf("%w: actions cannot be emptied", ErrInvalid)
	}
	return nil
}

// ValidateAudit enforces the decision-journal contract: who and why are
// required on every mutation.
func ValidateAudit(changedBy, reason string) error {
	if strings.TrimSpace(changedBy) == "" {
		return fmt.Errorf("%w: changed_by is required", ErrInvalid)
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrInvalid)
	}
	return nil
}
