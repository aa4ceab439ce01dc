package store

import (
	"context"
	"sync"
	"time"

	"juriscalc/internal/rules"
	"juriscalc/pkg/platform/sentinel"
)

// InMemoryStore keeps rule sets in process memory. It backs tests and the
// local profile, and doubles as the write target for file-feed ingestion.
type InMemoryStore struct {
	mu         sync.RWMutex
	taxSets    map[rules.RuleSetKey]*rules.TaxRuleSet
	guidelines map[rules.Jurisdiction][]*rules.ChildSupportGuideline // sorted by effective date
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		taxSets:    make(map[rules.RuleSetKey]*rules.TaxRuleSet),
		guidelines: make(map[rules.Jurisdiction][]*rules.ChildSupportGuideline),
	}
}

func (s *InMemoryStore) TaxRules(_ context.Context, jurisdiction rules.Jurisdiction, year int) (*rules.TaxRuleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rs, ok := s.taxSets[rules.RuleSetKey{Jurisdiction: jurisdiction, Year: year}]; ok {
		return rs, nil
	}
	return nil, sentinel.ErrNotFound
}

// Guideline returns the newest guideline effective on or before asOf.
func (s *InMemoryStore) Guideline(_ context.Context, jurisdiction rules.Jurisdiction, asOf time.Time) (*rules.ChildSupportGuideline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.guidelines[jurisdiction]
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].EffectiveDate.After(asOf) {
			return versions[i], nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ReplaceTaxRules(_ context.Context, ruleSet *rules.TaxRuleSet) error {
	if err := ruleSet.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *ruleSet
	if prior, ok := s.taxSets[ruleSet.Key]; ok {
		stored.Revision = prior.Revision + 1
	} else {
		stored.Revision = 1
	}
	s.taxSets[ruleSet.Key] = &stored
	return nil
}

func (s *InMemoryStore) ReplaceGuideline(_ context.Context, guideline *rules.ChildSupportGuideline) error {
	if err := guideline.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *guideline
	stored.Revision = 1

	versions := s.guidelines[guideline.Jurisdiction]
	replaced := false
	for i, existing := range versions {
		if existing.EffectiveDate.Equal(guideline.EffectiveDate) {
			stored.Revision = existing.Revision + 1
			versions[i] = &stored
			replaced = true
			break
		}
	}
	if !replaced {
		// Insert keeping ascending effective-date order.
		idx := len(versions)
		for i, existing := range versions {
			if existing.EffectiveDate.After(guideline.EffectiveDate) {
				idx = i
				break
			}
		}
		versions = append(versions, nil)
		copy(versions[idx+1:], versions[idx:])
		versions[idx] = &stored
	}
	s.guidelines[guideline.Jurisdiction] = versions
	return nil
}
