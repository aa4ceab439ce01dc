// Package cache wraps the rule store with an in-process, explicitly
// invalidated cache. Rule sets are immutable once published, so entries
// never expire on their own; only ingestion (or an operator) clears them.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"juriscalc/internal/rules"
	"juriscalc/internal/rules/metrics"
	"juriscalc/internal/rules/store"
)

// RuleCache serves reads for the calculators. Concurrent misses for the same
// key collapse to one store fetch via singleflight.
type RuleCache struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.RWMutex
	taxSets    map[rules.RuleSetKey]*rules.TaxRuleSet
	guidelines map[string]*rules.ChildSupportGuideline

	// Generation counters, bumped by Clear/ClearKind. A populate started
	// before a clear must not land its pre-clear data in the new map: the
	// fetch captures the generation and the insert is skipped when it moved.
	taxGen       uint64
	guidelineGen uint64

	group singleflight.Group
}

type Option func(*RuleCache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *RuleCache) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *RuleCache) { c.metrics = m }
}

func New(backing store.Store, opts ...Option) *RuleCache {
	c := &RuleCache{
		store:      backing,
		logger:     slog.Default(),
		taxSets:    make(map[rules.RuleSetKey]*rules.TaxRuleSet),
		guidelines: make(map[string]*rules.ChildSupportGuideline),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// guidelineKey buckets as-of times by calendar day. Guidelines change on
// date boundaries, so finer granularity would only fragment the cache.
func guidelineKey(jurisdiction rules.Jurisdiction, asOf time.Time) string {
	return string(jurisdiction) + "/" + asOf.UTC().Format("2006-01-02")
}

// TaxRules returns the cached rule set for a key, fetching from the store on
// miss. Store errors (including not-found) are never cached.
func (c *RuleCache) TaxRules(ctx context.Context, jurisdiction rules.Jurisdiction, year int) (*rules.TaxRuleSet, error) {
	key := rules.RuleSetKey{Jurisdiction: jurisdiction, Year: year}

	c.mu.RLock()
	cached, ok := c.taxSets[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.IncrementHit(string(rules.KindTax))
		return cached, nil
	}
	c.metrics.IncrementMiss(string(rules.KindTax))

	result, err, _ := c.group.Do("tax/"+key.String(), func() (any, error) {
		c.mu.RLock()
		gen := c.taxGen
		c.mu.RUnlock()

		start := time.Now()
		ruleSet, err := c.store.TaxRules(ctx, jurisdiction, year)
		if err != nil {
			return nil, err
		}
		c.metrics.ObserveResolve(string(rules.KindTax), time.Since(start))

		c.mu.Lock()
		if c.taxGen == gen {
			c.taxSets[key] = ruleSet
		}
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "tax rule set cached",
			slog.String("key", key.String()),
			slog.Int("revision", ruleSet.Revision))
		return ruleSet, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*rules.TaxRuleSet), nil
}

// Guideline returns the cached guideline effective at asOf for a jurisdiction.
func (c *RuleCache) Guideline(ctx context.Context, jurisdiction rules.Jurisdiction, asOf time.Time) (*rules.ChildSupportGuideline, error) {
	key := guidelineKey(jurisdiction, asOf)

	c.mu.RLock()
	cached, ok := c.guidelines[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.IncrementHit(string(rules.KindChildSupport))
		return cached, nil
	}
	c.metrics.IncrementMiss(string(rules.KindChildSupport))

	result, err, _ := c.group.Do("guideline/"+key, func() (any, error) {
		c.mu.RLock()
		gen := c.guidelineGen
		c.mu.RUnlock()

		start := time.Now()
		guideline, err := c.store.Guideline(ctx, jurisdiction, asOf)
		if err != nil {
			return nil, err
		}
		c.metrics.ObserveResolve(string(rules.KindChildSupport), time.Since(start))

		c.mu.Lock()
		if c.guidelineGen == gen {
			c.guidelines[key] = guideline
		}
		c.mu.Unlock()
		return guideline, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*rules.ChildSupportGuideline), nil
}

// Clear drops every cached entry.
func (c *RuleCache) Clear() {
	c.mu.Lock()
	c.taxSets = make(map[rules.RuleSetKey]*rules.TaxRuleSet)
	c.guidelines = make(map[string]*rules.ChildSupportGuideline)
	c.taxGen++
	c.guidelineGen++
	c.mu.Unlock()
	c.metrics.IncrementClear("all")
	c.logger.Info("rule cache cleared")
}

// ClearKind drops cached entries of one rule family. Ingestion calls this
// after a successful update so subsequent reads see the new revision.
func (c *RuleCache) ClearKind(kind rules.Kind) {
	c.mu.Lock()
	switch kind {
	case rules.KindTax:
		c.taxSets = make(map[rules.RuleSetKey]*rules.TaxRuleSet)
		c.taxGen++
	case rules.KindChildSupport:
		c.guidelines = make(map[string]*rules.ChildSupportGuideline)
		c.guidelineGen++
	}
	c.mu.Unlock()
	c.metrics.IncrementClear(string(kind))
	c.logger.Info("rule cache cleared", slog.String("kind", string(kind)))
}

// Len reports cached entry counts, used by the health endpoint.
func (c *RuleCache) Len() (tax, guidelines int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.taxSets), len(c.guidelines)
}
