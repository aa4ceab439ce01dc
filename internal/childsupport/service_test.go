package childsupport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"juriscalc/internal/rules"
	dErrors "juriscalc/pkg/domain-errors"
	"juriscalc/pkg/platform/audit"
	"juriscalc/pkg/platform/audit/publisher"
	auditmemory "juriscalc/pkg/platform/audit/store/memory"
	"juriscalc/pkg/platform/sentinel"
	"juriscalc/pkg/requestcontext"
)

type stubResolver struct {
	guideline *rules.ChildSupportGuideline
	err       error

	gotAsOf time.Time
}

func (r *stubResolver) Guideline(_ context.Context, _ rules.Jurisdiction, asOf time.Time) (*rules.ChildSupportGuideline, error) {
	r.gotAsOf = asOf
	return r.guideline, r.err
}

func TestServiceCalculateSuccess(t *testing.T) {
	store := auditmemory.New()
	svc := NewService(&stubResolver{guideline: incomeSharesGuideline()},
		WithAuditPublisher(publisher.New(store)))

	ctx := requestcontext.WithTime(context.Background(), testNow)
	result, err := svc.Calculate(ctx, basicInput())
	require.NoError(t, err)
	require.Equal(t, Parent1, result.PayingParent)
	require.True(t, result.NetSupport.Equal(dec("900")))

	events, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, string(audit.EventSupportCalculated), events[0].Action)
	require.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestServiceCalculateUsesRequestTime(t *testing.T) {
	resolver := &stubResolver{guideline: incomeSharesGuideline()}
	svc := NewService(resolver)

	asOf := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), asOf)
	_, err := svc.Calculate(ctx, basicInput())
	require.NoError(t, err)
	require.True(t, resolver.gotAsOf.Equal(asOf))
}

func TestServiceCalculateGuidelineNotFound(t *testing.T) {
	svc := NewService(&stubResolver{err: sentinel.ErrNotFound})

	_, err := svc.Calculate(context.Background(), basicInput())
	require.True(t, dErrors.HasCode(err, dErrors.CodeRuleNotFound), "got %v", err)
}

func TestServiceCalculateValidation(t *testing.T) {
	svc := NewService(&stubResolver{guideline: incomeSharesGuideline()})

	cases := []struct {
		name   string
		mutate func(*CalculationInput)
	}{
		{"missing jurisdiction", func(in *CalculationInput) { in.Jurisdiction = "" }},
		{"unknown type", func(in *CalculationInput) { in.Type = "appeal" }},
		{"no children", func(in *CalculationInput) { in.Children = nil }},
		{"negative income", func(in *CalculationInput) { in.Parent1.GrossMonthlyIncome = dec("-1") }},
		{"overnights out of range", func(in *CalculationInput) { in.Parent2.OvernightsPerYear = 400 }},
		{"negative deduction", func(in *CalculationInput) {
			in.Parent1.Deductions = []IncomeDeduction{{Type: DeductionUnionDues, Amount: dec("-5")}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := basicInput()
			tc.mutate(&input)
			_, err := svc.Calculate(context.Background(), input)
			require.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}
