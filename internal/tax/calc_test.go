package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juriscalc/internal/rules"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// federal2024 mirrors the published single-filer table for tax year 2024.
func federal2024() *rules.TaxRuleSet {
	bounds := []string{"11600", "47150", "100525", "191950", "243725", "609350"}
	rates := []string{"0.10", "0.12", "0.22", "0.24", "0.32", "0.35", "0.37"}

	var brackets []rules.TaxBracket
	min := decimal.Zero
	for i, rate := range rates {
		b := rules.TaxBracket{FilingStatus: rules.FilingSingle, Min: min, Rate: dec(rate)}
		if i < len(bounds) {
			max := dec(bounds[i])
			b.Max = &max
			min = max
		}
		brackets = append(brackets, b)
	}

	return &rules.TaxRuleSet{
		Key:      rules.RuleSetKey{Jurisdiction: rules.Federal, Year: 2024},
		Revision: 1,
		Config: rules.StateTaxConfig{
			HasIncomeTax: true,
			TaxType:      rules.TaxTypeProgressive,
			StandardDeduction: map[rules.FilingStatus]decimal.Decimal{
				rules.FilingSingle: dec("14600"),
			},
		},
		Brackets: map[rules.FilingStatus][]rules.TaxBracket{rules.FilingSingle: brackets},
	}
}

func singleInput(gross string) CalculationInput {
	return CalculationInput{
		Jurisdiction:      rules.Federal,
		Year:              2024,
		FilingStatus:      rules.FilingSingle,
		GrossIncome:       dec(gross),
		Withholding:       decPtr("0"),
		EstimatedPayments: decPtr("0"),
	}
}

func TestComputeFederalSingleStandardDeduction(t *testing.T) {
	// Gross 50,000 less the 14,600 standard deduction leaves 35,400 taxable:
	// 11,600 x 0.10 + 23,800 x 0.12 = 4,016.00.
	result := compute(federal2024(), singleInput("50000"))

	assert.True(t, result.TaxableIncome.Equal(dec("35400")), "taxable=%s", result.TaxableIncome)
	assert.True(t, result.TaxBeforeCredits.Equal(dec("4016")), "tax=%s", result.TaxBeforeCredits)
	assert.True(t, result.TotalTax.Equal(dec("4016")))
	assert.True(t, result.MarginalRate.Equal(dec("0.12")))
	assert.False(t, result.ItemizedUsed)
	assert.True(t, result.RefundOrOwed.Equal(dec("-4016")))
	assert.False(t, result.IsRefund)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
	assert.Equal(t, rules.Version{Jurisdiction: rules.Federal, Year: 2024, Revision: 1}, result.RuleSetVersion)
}

func TestComputeMonotonicInGrossIncome(t *testing.T) {
	ruleSet := federal2024()
	prev := decimal.Zero
	for gross := int64(0); gross <= 700_000; gross += 7_500 {
		input := singleInput("0")
		input.GrossIncome = decimal.NewFromInt(gross)
		result := compute(ruleSet, input)
		require.True(t, result.TotalTax.GreaterThanOrEqual(prev),
			"tax decreased at gross=%d: %s < %s", gross, result.TotalTax, prev)
		prev = result.TotalTax
	}
}

func TestComputeBracketBoundaryContinuity(t *testing.T) {
	// Crossing a bracket edge applies the higher rate only to the portion
	// above the edge: tax(boundary+eps) = tax(boundary) + eps*nextRate.
	ruleSet := federal2024()
	eps := dec("0.01")

	for _, boundary := range []string{"11600", "47150", "100525"} {
		deduction := dec("14600")
		atEdge := singleInput("0")
		atEdge.GrossIncome = dec(boundary).Add(deduction)
		aboveEdge := singleInput("0")
		aboveEdge.GrossIncome = atEdge.GrossIncome.Add(eps)

		taxAt := compute(ruleSet, atEdge)
		taxAbove := compute(ruleSet, aboveEdge)

		jump := taxAbove.TaxBeforeCredits.Sub(taxAt.TaxBeforeCredits)
		expected := eps.Mul(taxAbove.MarginalRate).Round(2)
		assert.True(t, jump.Sub(expected).Abs().LessThanOrEqual(dec("0.01")),
			"discontinuity at %s: jump=%s expected=%s", boundary, jump, expected)
	}
}

func TestComputeIdempotent(t *testing.T) {
	ruleSet := federal2024()
	input := singleInput("123456.78")
	input.QualifyingChildren = 2

	first := compute(ruleSet, input)
	second := compute(ruleSet, input)
	assert.Equal(t, first, second)
}

func TestComputeItemizedBeatsStandard(t *testing.T) {
	input := singleInput("50000")
	input.ItemizedDeductions = decPtr("20000")

	result := compute(federal2024(), input)
	assert.True(t, result.ItemizedUsed)
	assert.True(t, result.DeductionApplied.Equal(dec("20000")))
	assert.True(t, result.TaxableIncome.Equal(dec("30000")))
}

func TestComputeItemizedBelowStandardIgnored(t *testing.T) {
	input := singleInput("50000")
	input.ItemizedDeductions = decPtr("9000")

	result := compute(federal2024(), input)
	assert.False(t, result.ItemizedUsed)
	assert.True(t, result.DeductionApplied.Equal(dec("14600")))
}

func TestComputeAdjustmentsCappedAtStatutoryCeiling(t *testing.T) {
	ruleSet := federal2024()
	ruleSet.Caps = rules.AdjustmentCaps{
		RetirementContributions: decPtr("7000"),
		StudentLoanInterest:     decPtr("2500"),
	}

	input := singleInput("80000")
	input.RetirementContributions = dec("10000") // clipped to 7,000
	input.StudentLoanInterest = dec("4000")      // clipped to 2,500
	input.HSAContributions = dec("3000")         // no cap configured

	result := compute(ruleSet, input)
	assert.True(t, result.AdjustedGrossIncome.Equal(dec("67500")),
		"agi=%s", result.AdjustedGrossIncome)
}

func TestComputeSelfEmploymentTaxDeduction(t *testing.T) {
	input := singleInput("0")
	input.SelfEmploymentIncome = dec("100000")

	result := compute(federal2024(), input)
	assert.True(t, result.TotalIncome.Equal(dec("100000")))
	assert.True(t, result.AdjustedGrossIncome.Equal(dec("92350")),
		"agi=%s", result.AdjustedGrossIncome)
}

func TestComputeNonRefundableCreditFloorsAtZero(t *testing.T) {
	ruleSet := federal2024()
	ruleSet.Credits = []rules.Credit{
		{Type: "child_tax_credit", Amount: dec("2000"), PerQualifyingChild: true, MaxChildren: 10},
	}

	input := singleInput("20000") // taxable 5,400 -> tax 540
	input.QualifyingChildren = 3

	result := compute(ruleSet, input)
	assert.True(t, result.TotalTax.IsZero())
	assert.True(t, result.CreditsApplied.Equal(dec("540")), "credits=%s", result.CreditsApplied)
	assert.False(t, result.IsRefund)
}

func TestComputeRefundableCreditProducesRefund(t *testing.T) {
	ruleSet := federal2024()
	ruleSet.Credits = []rules.Credit{
		{Type: "eitc", Amount: dec("3000"), Refundable: true},
	}

	input := singleInput("20000") // tax before credits 540

	result := compute(ruleSet, input)
	assert.True(t, result.TotalTax.IsZero())
	assert.True(t, result.RefundOrOwed.Equal(dec("2460")), "refund=%s", result.RefundOrOwed)
	assert.True(t, result.IsRefund)
}

func TestComputeCreditPhaseOut(t *testing.T) {
	ruleSet := federal2024()
	ruleSet.Credits = []rules.Credit{
		{
			Type:               "child_tax_credit",
			Amount:             dec("2000"),
			PerQualifyingChild: true,
			MaxChildren:        10,
			PhaseOutStart:      decPtr("200000"),
			PhaseOutEnd:        decPtr("240000"),
		},
	}

	mkInput := func(gross string) CalculationInput {
		input := singleInput(gross)
		input.QualifyingChildren = 1
		return input
	}

	below := compute(ruleSet, mkInput("150000"))
	assert.True(t, below.CreditsApplied.Equal(dec("2000")))

	// Halfway through the window the credit is halved.
	mid := compute(ruleSet, mkInput("220000"))
	assert.True(t, mid.CreditsApplied.Equal(dec("1000")), "credits=%s", mid.CreditsApplied)

	above := compute(ruleSet, mkInput("300000"))
	assert.True(t, above.CreditsApplied.IsZero())
}

func TestComputeChildCareCreditUsesRate(t *testing.T) {
	ruleSet := federal2024()
	ruleSet.Credits = []rules.Credit{
		{Type: "child_care", Amount: dec("1050"), ChildCareRate: decPtr("0.35")},
	}

	input := singleInput("60000")
	input.ChildCareCosts = dec("2000") // 2,000 x 0.35 = 700, under the 1,050 cap

	result := compute(ruleSet, input)
	assert.True(t, result.CreditsApplied.Equal(dec("700")), "credits=%s", result.CreditsApplied)
}

func TestComputeFlatTax(t *testing.T) {
	ruleSet := &rules.TaxRuleSet{
		Key:      rules.RuleSetKey{Jurisdiction: "CO", Year: 2024},
		Revision: 1,
		Config: rules.StateTaxConfig{
			HasIncomeTax: true,
			TaxType:      rules.TaxTypeFlat,
			FlatRate:     decPtr("0.044"),
			StandardDeduction: map[rules.FilingStatus]decimal.Decimal{
				rules.FilingSingle: dec("14600"),
			},
		},
	}

	input := singleInput("50000")
	input.Jurisdiction = "CO"

	result := compute(ruleSet, input)
	assert.True(t, result.TotalTax.Equal(dec("1557.60")), "tax=%s", result.TotalTax)
	assert.True(t, result.MarginalRate.Equal(dec("0.044")))
}

func TestComputeNoIncomeTaxState(t *testing.T) {
	ruleSet := &rules.TaxRuleSet{
		Key:      rules.RuleSetKey{Jurisdiction: "TX", Year: 2024},
		Revision: 1,
		Config:   rules.StateTaxConfig{HasIncomeTax: false, TaxType: rules.TaxTypeNone},
	}

	input := singleInput("500000")
	input.Jurisdiction = "TX"

	result := compute(ruleSet, input)
	assert.True(t, result.TotalTax.IsZero())
	assert.True(t, result.TaxBeforeCredits.IsZero())
}

func TestComputeConfidenceFromMissingInfo(t *testing.T) {
	ruleSet := federal2024()

	full := compute(ruleSet, singleInput("50000"))
	assert.Equal(t, ConfidenceHigh, full.Confidence)
	assert.Empty(t, full.MissingInfo)

	noWithholding := singleInput("50000")
	noWithholding.Withholding = nil
	mid := compute(ruleSet, noWithholding)
	assert.Equal(t, ConfidenceMedium, mid.Confidence)
	assert.Equal(t, []string{FlagWithholdingNotProvided}, mid.MissingInfo)

	bare := CalculationInput{
		Jurisdiction: rules.Federal,
		Year:         2024,
		FilingStatus: rules.FilingSingle,
	}
	low := compute(ruleSet, bare)
	assert.Equal(t, ConfidenceLow, low.Confidence)
	assert.Len(t, low.MissingInfo, 3)
}

func TestComputeWithholdingProducesRefund(t *testing.T) {
	input := singleInput("50000")
	input.Withholding = decPtr("6000")

	result := compute(federal2024(), input)
	assert.True(t, result.RefundOrOwed.Equal(dec("1984")), "refund=%s", result.RefundOrOwed)
	assert.True(t, result.IsRefund)
}
