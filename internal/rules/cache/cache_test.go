package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"juriscalc/internal/rules"
	"juriscalc/pkg/platform/sentinel"
)

// countingStore records fetch counts so tests can observe cache behavior.
type countingStore struct {
	mu             sync.Mutex
	taxFetches     atomic.Int64
	guidelineFetch atomic.Int64
	taxSets        map[rules.RuleSetKey]*rules.TaxRuleSet
	guidelines     map[rules.Jurisdiction]*rules.ChildSupportGuideline
}

func newCountingStore() *countingStore {
	return &countingStore{
		taxSets:    make(map[rules.RuleSetKey]*rules.TaxRuleSet),
		guidelines: make(map[rules.Jurisdiction]*rules.ChildSupportGuideline),
	}
}

func (s *countingStore) TaxRules(_ context.Context, jurisdiction rules.Jurisdiction, year int) (*rules.TaxRuleSet, error) {
	s.taxFetches.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.taxSets[rules.RuleSetKey{Jurisdiction: jurisdiction, Year: year}]; ok {
		return rs, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *countingStore) Guideline(_ context.Context, jurisdiction rules.Jurisdiction, _ time.Time) (*rules.ChildSupportGuideline, error) {
	s.guidelineFetch.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.guidelines[jurisdiction]; ok {
		return g, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *countingStore) ReplaceTaxRules(_ context.Context, ruleSet *rules.TaxRuleSet) error {
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

func (s *countingStore) ReplaceGuideline(_ context.Context, guideline *rules.ChildSupportGuideline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *guideline
	stored.Revision = 1
	if prior, ok := s.guidelines[guideline.Jurisdiction]; ok {
		stored.Revision = prior.Revision + 1
	}
	s.guidelines[guideline.Jurisdiction] = &stored
	return nil
}

func taxSet(year, revision int) *rules.TaxRuleSet {
	return &rules.TaxRuleSet{
		Key:      rules.RuleSetKey{Jurisdiction: rules.Federal, Year: year},
		Revision: revision,
		Config:   rules.StateTaxConfig{HasIncomeTax: true, TaxType: rules.TaxTypeProgressive},
	}
}

func TestTaxRulesCachesAfterFirstFetch(t *testing.T) {
	ctx := context.Background()
	backing := newCountingStore()
	require.NoError(t, backing.ReplaceTaxRules(ctx, taxSet(2024, 0)))
	c := New(backing)

	for range 3 {
		got, err := c.TaxRules(ctx, rules.Federal, 2024)
		require.NoError(t, err)
		require.Equal(t, 1, got.Revision)
	}
	require.EqualValues(t, 1, backing.taxFetches.Load())
}

func TestTaxRulesNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	backing := newCountingStore()
	c := New(backing)

	_, err := c.TaxRules(ctx, rules.Federal, 2024)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	// Data arriving after a miss must become visible without a clear.
	require.NoError(t, backing.ReplaceTaxRules(ctx, taxSet(2024, 0)))
	got, err := c.TaxRules(ctx, rules.Federal, 2024)
	require.NoError(t, err)
	require.Equal(t, 1, got.Revision)
}

func TestClearKindIsScoped(t *testing.T) {
	ctx := context.Background()
	backing := newCountingStore()
	require.NoError(t, backing.ReplaceTaxRules(ctx, taxSet(2024, 0)))
	require.NoError(t, backing.ReplaceGuideline(ctx, &rules.ChildSupportGuideline{
		Jurisdiction:  "CA",
		EffectiveDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Model:         rules.ModelPercentageOfIncome,
		PercentageRates: map[int]decimal.Decimal{
			1: decimal.RequireFromString("0.17"),
		},
	}))
	c := New(backing)

	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.TaxRules(ctx, rules.Federal, 2024)
	require.NoError(t, err)
	_, err = c.Guideline(ctx, "CA", asOf)
	require.NoError(t, err)

	c.ClearKind(rules.KindTax)

	_, err = c.TaxRules(ctx, rules.Federal, 2024)
	require.NoError(t, err)
	_, err = c.Guideline(ctx, "CA", asOf)
	require.NoError(t, err)

	require.EqualValues(t, 2, backing.taxFetches.Load())
	require.EqualValues(t, 1, backing.guidelineFetch.Load())
}

func TestClearDropsEverything(t *testing.T) {
	ctx := context.Background()
	backing := newCountingStore()
	require.NoError(t, backing.ReplaceTaxRules(ctx, taxSet(2024, 0)))
	c := New(backing)

	_, err := c.TaxRules(ctx, rules.Federal, 2024)
	require.NoError(t, err)

	// A replace followed by a clear must surface the new revision.
	require.NoError(t, backing.ReplaceTaxRules(ctx, taxSet(2024, 0)))
	c.Clear()

	got, err := c.TaxRules(ctx, rules.Federal, 2024)
	require.NoError(t, err)
	require.Equal(t, 2, got.Revision)

	tax, guidelines := c.Len()
	require.Equal(t, 1, tax)
	require.Equal(t, 0, guidelines)
}

// gateStore holds the first tax fetch open after it has read its result so
// tests can interleave a clear with an in-flight populate. Later fetches pass
// straight through.
type gateStore struct {
	*countingStore
	gated   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *gateStore) TaxRules(ctx context.Context, jurisdiction rules.Jurisdiction, year int) (*rules.TaxRuleSet, error) {
	rs, err := s.countingStore.TaxRules(ctx, jurisdiction, year)
	if s.gated.CompareAndSwap(false, true) {
		s.entered <- struct{}{}
		<-s.release
	}
	return rs, err
}

func TestClearDuringPopulateDoesNotRecacheStaleSet(t *testing.T) {
	ctx := context.Background()
	backing := newCountingStore()
	require.NoError(t, backing.ReplaceTaxRules(ctx, taxSet(2024, 0)))
	gate := &gateStore{
		countingStore: backing,
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	c := New(gate)

	var (
		missedSet *rules.TaxRuleSet
		missedErr error
		done      = make(chan struct{})
	)
	go func() {
		defer close(done)
		missedSet, missedErr = c.TaxRules(ctx, rules.Federal, 2024)
	}()

	// The miss has read revision 1 but not yet populated; ingestion now
	// writes revision 2 and invalidates.
	<-gate.entered
	require.NoError(t, backing.ReplaceTaxRules(ctx, taxSet(2024, 0)))
	c.ClearKind(rules.KindTax)
	close(gate.release)
	<-done

	// The racing caller may still see the old revision; that is tolerated.
	require.NoError(t, missedErr)
	require.Equal(t, 1, missedSet.Revision)

	// But the stale set must not have been re-cached into the cleared map:
	// the next read fetches and serves revision 2.
	got, err := c.TaxRules(ctx, rules.Federal, 2024)
	require.NoError(t, err)
	require.Equal(t, 2, got.Revision)
}

func TestConcurrentMissesCollapseToOneFetch(t *testing.T) {
	ctx := context.Background()
	backing := newCountingStore()
	require.NoError(t, backing.ReplaceTaxRules(ctx, taxSet(2024, 0)))
	c := New(backing)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got, err := c.TaxRules(ctx, rules.Federal, 2024)
			require.NoError(t, err)
			require.Equal(t, 1, got.Revision)
		}()
	}
	close(start)
	wg.Wait()

	// Goroutines that miss before the first populate finishes share one
	// in-flight fetch; the store must see far fewer fetches than callers.
	require.Less(t, backing.taxFetches.Load(), int64(16))
}
