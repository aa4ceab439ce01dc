package tax

import (
	"github.com/shopspring/decimal"

	"juriscalc/internal/rules"
)

// selfEmploymentTaxRate is the deductible employer-equivalent half of
// self-employment tax applied against AGI.
var selfEmploymentTaxRate = decimal.RequireFromString("0.0765")

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
)

// compute runs the full estimate against an already-resolved rule set. Pure:
// identical input and rule data yield identical output.
func compute(ruleSet *rules.TaxRuleSet, input CalculationInput) CalculationResult {
	result := CalculationResult{
		RuleSetVersion: ruleSet.Version(),
		MissingInfo:    []string{},
	}

	if input.GrossIncome.IsZero() {
		result.MissingInfo = append(result.MissingInfo, FlagGrossIncomeNotProvided)
	}

	result.TotalIncome = input.GrossIncome.
		Add(input.SelfEmploymentIncome).
		Add(input.CapitalGains)
	result.AdjustedGrossIncome = adjustedGrossIncome(ruleSet, input, result.TotalIncome)

	result.DeductionApplied, result.ItemizedUsed = selectDeduction(ruleSet, input)
	result.TaxableIncome = decimal.Max(zero, result.AdjustedGrossIncome.Sub(result.DeductionApplied))

	result.TaxBeforeCredits, result.MarginalRate = taxBeforeCredits(ruleSet, input.FilingStatus, result.TaxableIncome)

	nonRefundable, refundable := evaluateCredits(ruleSet, input, result.AdjustedGrossIncome)
	nonRefundable = decimal.Min(nonRefundable, result.TaxBeforeCredits)
	result.CreditsApplied = nonRefundable.Add(refundable)

	// Raw tax may go negative when refundable credits exceed liability; the
	// surplus flows into the refund while reported tax floors at zero.
	rawTax := result.TaxBeforeCredits.Sub(nonRefundable).Sub(refundable)
	result.TotalTax = decimal.Max(zero, rawTax)

	payments := zero
	if input.Withholding != nil {
		payments = payments.Add(*input.Withholding)
	} else {
		result.MissingInfo = append(result.MissingInfo, FlagWithholdingNotProvided)
	}
	if input.EstimatedPayments != nil {
		payments = payments.Add(*input.EstimatedPayments)
	} else {
		result.MissingInfo = append(result.MissingInfo, FlagEstimatedPaymentsNotProvided)
	}
	result.RefundOrOwed = payments.Sub(rawTax)
	result.IsRefund = result.RefundOrOwed.IsPositive()

	if result.AdjustedGrossIncome.IsPositive() {
		result.EffectiveRate = result.TotalTax.Div(result.AdjustedGrossIncome).Round(4)
	}

	result.Confidence = confidenceFor(len(result.MissingInfo))
	roundMoney(&result)
	return result
}

// adjustedGrossIncome applies the configured negative adjustment categories,
// each clipped at its statutory ceiling when the rule set defines one.
func adjustedGrossIncome(ruleSet *rules.TaxRuleSet, input CalculationInput, totalIncome decimal.Decimal) decimal.Decimal {
	agi := totalIncome

	if input.SelfEmploymentIncome.IsPositive() {
		agi = agi.Sub(input.SelfEmploymentIncome.Mul(selfEmploymentTaxRate))
	}
	agi = agi.Sub(capped(input.RetirementContributions, ruleSet.Caps.RetirementContributions))
	agi = agi.Sub(capped(input.StudentLoanInterest, ruleSet.Caps.StudentLoanInterest))
	agi = agi.Sub(capped(input.HSAContributions, ruleSet.Caps.HSAContributions))

	return agi
}

func capped(amount decimal.Decimal, cap *decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return zero
	}
	if cap != nil {
		return decimal.Min(amount, *cap)
	}
	return amount
}

// selectDeduction picks itemized deductions when provided and larger than the
// filing status's standard deduction.
func selectDeduction(ruleSet *rules.TaxRuleSet, input CalculationInput) (decimal.Decimal, bool) {
	standard, _ := ruleSet.StandardDeductionFor(input.FilingStatus)
	if input.ItemizedDeductions != nil && input.ItemizedDeductions.GreaterThan(standard) {
		return *input.ItemizedDeductions, true
	}
	return standard, false
}

// taxBeforeCredits dispatches on the rule set's tax type. The returned
// marginal rate is the rate applied to the last dollar of taxable income.
func taxBeforeCredits(ruleSet *rules.TaxRuleSet, fs rules.FilingStatus, taxable decimal.Decimal) (tax, marginalRate decimal.Decimal) {
	if !ruleSet.Config.HasIncomeTax {
		return zero, zero
	}
	switch ruleSet.Config.TaxType {
	case rules.TaxTypeNone:
		return zero, zero
	case rules.TaxTypeFlat:
		rate := *ruleSet.Config.FlatRate
		return taxable.Mul(rate), rate
	case rules.TaxTypeProgressive:
		brackets, _ := ruleSet.BracketsFor(fs)
		return walkBrackets(brackets, taxable)
	}
	return zero, zero
}

// walkBrackets accumulates marginal tax across the sorted bracket list. Each
// bracket taxes only the portion of income inside it.
func walkBrackets(brackets []rules.TaxBracket, taxable decimal.Decimal) (tax, marginalRate decimal.Decimal) {
	tax = zero
	remaining := taxable
	for _, bracket := range brackets {
		if !remaining.IsPositive() {
			break
		}
		portion := remaining
		if bracket.Max != nil {
			width := bracket.Max.Sub(bracket.Min)
			portion = decimal.Min(remaining, width)
		}
		tax = tax.Add(portion.Mul(bracket.Rate))
		marginalRate = bracket.Rate
		remaining = remaining.Sub(portion)
	}
	return tax, marginalRate
}

// evaluateCredits sums eligible credits after phase-out, split by
// refundability. Clipping of non-refundable credits happens in compute.
func evaluateCredits(ruleSet *rules.TaxRuleSet, input CalculationInput, agi decimal.Decimal) (nonRefundable, refundable decimal.Decimal) {
	nonRefundable, refundable = zero, zero
	for _, credit := range ruleSet.Credits {
		if credit.FilingStatus != nil && *credit.FilingStatus != input.FilingStatus {
			continue
		}
		amount := creditAmount(credit, input)
		if !amount.IsPositive() {
			continue
		}
		amount = amount.Mul(phaseOutFactor(agi, credit.PhaseOutStart, credit.PhaseOutEnd))
		if !amount.IsPositive() {
			continue
		}
		if credit.Refundable {
			refundable = refundable.Add(amount)
		} else {
			nonRefundable = nonRefundable.Add(amount)
		}
	}
	return nonRefundable, refundable
}

func creditAmount(credit rules.Credit, input CalculationInput) decimal.Decimal {
	switch {
	case credit.PerQualifyingChild:
		children := input.QualifyingChildren
		if credit.MaxChildren > 0 && children > credit.MaxChildren {
			children = credit.MaxChildren
		}
		if children <= 0 {
			return zero
		}
		return credit.Amount.Mul(decimal.NewFromInt(int64(children)))
	case credit.ChildCareRate != nil:
		if !input.ChildCareCosts.IsPositive() {
			return zero
		}
		return decimal.Min(credit.Amount, input.ChildCareCosts.Mul(*credit.ChildCareRate))
	default:
		return credit.Amount
	}
}

// phaseOutFactor is the linear reduction factor in [0, 1]: 1 at or below the
// start, 0 at or above the end.
func phaseOutFactor(agi decimal.Decimal, start, end *decimal.Decimal) decimal.Decimal {
	if start == nil || end == nil {
		return one
	}
	if agi.LessThanOrEqual(*start) {
		return one
	}
	if agi.GreaterThanOrEqual(*end) {
		return zero
	}
	window := end.Sub(*start)
	return one.Sub(agi.Sub(*start).Div(window))
}

func confidenceFor(flags int) Confidence {
	switch {
	case flags == 0:
		return ConfidenceHigh
	case flags == 1:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func roundMoney(result *CalculationResult) {
	result.TotalIncome = result.TotalIncome.Round(2)
	result.AdjustedGrossIncome = result.AdjustedGrossIncome.Round(2)
	result.DeductionApplied = result.DeductionApplied.Round(2)
	result.TaxableIncome = result.TaxableIncome.Round(2)
	result.TaxBeforeCredits = result.TaxBeforeCredits.Round(2)
	result.CreditsApplied = result.CreditsApplied.Round(2)
	result.TotalTax = result.TotalTax.Round(2)
	result.RefundOrOwed = result.RefundOrOwed.Round(2)
}
