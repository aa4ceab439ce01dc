package store

import (
	"context"
	"time"

	"juriscalc/internal/rules"
)

// Store is the versioned rule repository. Reads return sentinel.ErrNotFound
// for unknown keys; callers surface that as a rule_not_found condition, never
// a guessed default. Writes are used by ingestion only and replace a key's
// data wholesale, bumping its revision.
type Store interface {
	TaxRules(ctx context.Context, jurisdiction rules.Jurisdiction, year int) (*rules.TaxRuleSet, error)
	Guideline(ctx context.Context, jurisdiction rules.Jurisdiction, asOf time.Time) (*rules.ChildSupportGuideline, error)

	ReplaceTaxRules(ctx context.Context, ruleSet *rules.TaxRuleSet) error
	ReplaceGuideline(ctx context.Context, guideline *rules.ChildSupportGuideline) error
}
