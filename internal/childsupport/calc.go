package childsupport

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"juriscalc/internal/rules"
	dErrors "juriscalc/pkg/domain-errors"
)

// formulaProportionalOffset is the only parenting-time formula the engine
// implements. Other formula identifiers resolved from guideline data are
// reported in warnings and applied as no-ops.
const formulaProportionalOffset = "proportional_offset"

var (
	zero        = decimal.Zero
	one         = decimal.NewFromInt(1)
	daysPerYear = decimal.NewFromInt(365)
)

var eligibleDeductionTypes = map[string]struct{}{
	DeductionUnionDues:               {},
	DeductionMandatoryRetirement:     {},
	DeductionSelfPaidHealthInsurance: {},
	DeductionPriorSupportOrders:      {},
	DeductionSelfEmploymentTaxOffset: {},
}

// compute dispatches on the guideline model. Pure: identical input, guideline
// data, and now yield identical output.
func compute(guideline *rules.ChildSupportGuideline, input CalculationInput, now time.Time) (*Result, error) {
	switch guideline.Model {
	case rules.ModelIncomeShares:
		return computeIncomeShares(guideline, input, now)
	case rules.ModelPercentageOfIncome:
		return computePercentageOfIncome(guideline, input, now)
	case rules.ModelMelsonFormula:
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"guideline model %s is not supported for %s", guideline.Model, guideline.Jurisdiction)
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"unknown guideline model %q for %s", guideline.Model, guideline.Jurisdiction)
	}
}

func computeIncomeShares(guideline *rules.ChildSupportGuideline, input CalculationInput, now time.Time) (*Result, error) {
	result := &Result{
		Type:             input.Type,
		Warnings:         []string{},
		GuidelineVersion: guideline.Version(),
	}

	result.Parent1.AdjustedIncome = adjustedIncome(guideline, input.Parent1, Parent1, &result.Warnings)
	result.Parent2.AdjustedIncome = adjustedIncome(guideline, input.Parent2, Parent2, &result.Warnings)
	result.CombinedIncome = result.Parent1.AdjustedIncome.Add(result.Parent2.AdjustedIncome)
	if !result.CombinedIncome.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation,
			"combined adjusted income is zero; income shares are undefined")
	}

	// Deriving the second share from the first keeps the two-way partition
	// summing to exactly 1 despite rounding.
	result.Parent1.IncomeShare = result.Parent1.AdjustedIncome.Div(result.CombinedIncome).Round(6)
	result.Parent2.IncomeShare = one.Sub(result.Parent1.IncomeShare)

	band, clamp := guideline.BandFor(result.CombinedIncome)
	if band == nil {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"guideline for %s has no schedule bands", guideline.Jurisdiction)
	}
	switch clamp {
	case rules.BandBelowSchedule:
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"combined income %s is below the schedule's bottom band; bottom band used",
			result.CombinedIncome))
	case rules.BandAboveSchedule:
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"combined income %s exceeds the schedule's top band; top band used without extrapolation",
			result.CombinedIncome))
	}
	basic, ok := band.ObligationFor(len(input.Children))
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"guideline schedule for %s has no column for %d children",
			guideline.Jurisdiction, len(input.Children))
	}
	result.BasicObligation = basic

	applyAddOns(guideline, input, result)
	result.TotalObligation = result.BasicObligation.
		Add(result.HealthInsuranceAddOn).
		Add(result.ChildCareAddOn)

	result.Parent1.NominalObligation = result.TotalObligation.Mul(result.Parent1.IncomeShare)
	result.Parent2.NominalObligation = result.TotalObligation.Mul(result.Parent2.IncomeShare)

	// Paying parent is fixed by the larger nominal obligation pre-netting.
	payer, payerData := Parent1, input.Parent1
	if result.Parent2.NominalObligation.GreaterThan(result.Parent1.NominalObligation) {
		payer, payerData = Parent2, input.Parent2
	}
	result.PayingParent = payer
	net := result.Parent1.NominalObligation.Sub(result.Parent2.NominalObligation).Abs()

	net = applyParentingTime(guideline, payerData, net, result)
	net = applySelfSupportReserve(guideline, payerOutcome(result, payer).AdjustedIncome, net, result)
	result.NetSupport = net

	result.PerChild = perChildBreakdown(guideline, input.Children, result, now)
	roundResult(result)
	return result, nil
}

func computePercentageOfIncome(guideline *rules.ChildSupportGuideline, input CalculationInput, now time.Time) (*Result, error) {
	result := &Result{
		Type:             input.Type,
		Warnings:         []string{},
		GuidelineVersion: guideline.Version(),
	}

	result.Parent1.AdjustedIncome = adjustedIncome(guideline, input.Parent1, Parent1, &result.Warnings)
	result.Parent2.AdjustedIncome = adjustedIncome(guideline, input.Parent2, Parent2, &result.Warnings)
	result.CombinedIncome = result.Parent1.AdjustedIncome.Add(result.Parent2.AdjustedIncome)
	if !result.CombinedIncome.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation,
			"combined adjusted income is zero; no obligation can be allocated")
	}
	result.Parent1.IncomeShare = result.Parent1.AdjustedIncome.Div(result.CombinedIncome).Round(6)
	result.Parent2.IncomeShare = one.Sub(result.Parent1.IncomeShare)

	// The obligor is the parent with fewer overnights; ties go to the higher
	// earner. The model has no combined-income lookup.
	payer, payerData := Parent1, input.Parent1
	switch {
	case input.Parent2.OvernightsPerYear < input.Parent1.OvernightsPerYear:
		payer, payerData = Parent2, input.Parent2
	case input.Parent2.OvernightsPerYear == input.Parent1.OvernightsPerYear &&
		result.Parent2.AdjustedIncome.GreaterThan(result.Parent1.AdjustedIncome):
		payer, payerData = Parent2, input.Parent2
	}
	result.PayingParent = payer
	payerIncome := payerOutcome(result, payer).AdjustedIncome

	rate, err := percentageRate(guideline, len(input.Children), &result.Warnings)
	if err != nil {
		return nil, err
	}
	result.BasicObligation = payerIncome.Mul(rate)

	applyAddOns(guideline, input, result)
	result.TotalObligation = result.BasicObligation.
		Add(result.HealthInsuranceAddOn).
		Add(result.ChildCareAddOn)

	// The whole obligation rests on the obligor; there is no netting step.
	if payer == Parent1 {
		result.Parent1.NominalObligation = result.TotalObligation
	} else {
		result.Parent2.NominalObligation = result.TotalObligation
	}

	net := result.TotalObligation
	net = applyParentingTime(guideline, payerData, net, result)
	net = applySelfSupportReserve(guideline, payerIncome, net, result)
	result.NetSupport = net

	result.PerChild = perChildBreakdown(guideline, input.Children, result, now)
	roundResult(result)
	return result, nil
}

// adjustedIncome applies eligible deductions and the guideline's income
// bounds. Negative computed income floors to zero with a warning, never fails.
func adjustedIncome(guideline *rules.ChildSupportGuideline, parent ParentData, label ParentLabel, warnings *[]string) decimal.Decimal {
	income := parent.GrossMonthlyIncome.Add(parent.OtherIncome)
	for _, d := range parent.Deductions {
		if _, ok := eligibleDeductionTypes[d.Type]; !ok {
			*warnings = append(*warnings, fmt.Sprintf(
				"%s: deduction type %q is not recognized and was ignored", label, d.Type))
			continue
		}
		income = income.Sub(d.Amount)
	}
	income = income.Sub(parent.OtherSupportObligations)

	if income.IsNegative() {
		*warnings = append(*warnings, fmt.Sprintf(
			"%s: deductions exceed income; adjusted income floored at zero", label))
		income = zero
	}
	if guideline.LowIncomeThreshold.IsPositive() && income.LessThan(guideline.LowIncomeThreshold) {
		*warnings = append(*warnings, fmt.Sprintf(
			"%s: adjusted income %s is below the low-income threshold %s",
			label, income.Round(2), guideline.LowIncomeThreshold))
	}
	if income.LessThan(guideline.MinIncome) {
		income = guideline.MinIncome
	}
	if guideline.MaxIncome.IsPositive() && income.GreaterThan(guideline.MaxIncome) {
		*warnings = append(*warnings, fmt.Sprintf(
			"%s: adjusted income capped at the guideline maximum %s", label, guideline.MaxIncome))
		income = guideline.MaxIncome
	}
	return income
}

// applyAddOns folds health-insurance and child-care costs into the result per
// the guideline's treatment flags.
func applyAddOns(guideline *rules.ChildSupportGuideline, input CalculationInput, result *Result) {
	health := input.Parent1.HealthInsuranceCost.Add(input.Parent2.HealthInsuranceCost)
	care := input.Parent1.ChildCareCost.Add(input.Parent2.ChildCareCost)

	switch guideline.HealthInsuranceTreatment {
	case rules.TreatmentAddOn:
		result.HealthInsuranceAddOn = health
	case rules.TreatmentDeviation:
		if health.IsPositive() {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"health insurance cost %s is a deviation factor; reported but not added", health))
		}
	case rules.TreatmentIncluded:
		// Already inside the schedule amounts.
	}

	switch guideline.ChildCareTreatment {
	case rules.TreatmentAddOn:
		result.ChildCareAddOn = care
	case rules.TreatmentDeviation:
		if care.IsPositive() {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"child care cost %s is a deviation factor; reported but not added", care))
		}
	case rules.TreatmentIncluded:
	}
}

// applyParentingTime reduces the net obligation when the obligor's overnights
// exceed the guideline threshold and the guideline names a formula the engine
// implements.
func applyParentingTime(guideline *rules.ChildSupportGuideline, payer ParentData, net decimal.Decimal, result *Result) decimal.Decimal {
	if guideline.ParentingTimeThreshold <= 0 || payer.OvernightsPerYear <= guideline.ParentingTimeThreshold {
		return net
	}
	if guideline.ParentingTimeFormula != formulaProportionalOffset {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"parenting-time formula %q is not implemented; threshold exceeded but no adjustment applied",
			guideline.ParentingTimeFormula))
		return net
	}
	excess := decimal.NewFromInt(int64(payer.OvernightsPerYear - guideline.ParentingTimeThreshold))
	adjustment := net.Mul(excess).Div(daysPerYear)
	result.ParentingTimeAdjustment = adjustment
	return decimal.Max(zero, net.Sub(adjustment))
}

// applySelfSupportReserve caps the net obligation so the obligor's remaining
// income does not fall below the guideline reserve.
func applySelfSupportReserve(guideline *rules.ChildSupportGuideline, payerIncome, net decimal.Decimal, result *Result) decimal.Decimal {
	if !guideline.SelfSupportReserve.IsPositive() {
		return net
	}
	remaining := payerIncome.Sub(net)
	if remaining.GreaterThanOrEqual(guideline.SelfSupportReserve) {
		return net
	}
	capped := decimal.Max(zero, payerIncome.Sub(guideline.SelfSupportReserve))
	result.Warnings = append(result.Warnings, fmt.Sprintf(
		"net support reduced from %s to %s to protect the obligor's self-support reserve %s",
		net.Round(2), capped.Round(2), guideline.SelfSupportReserve))
	return capped
}

func percentageRate(guideline *rules.ChildSupportGuideline, children int, warnings *[]string) (decimal.Decimal, error) {
	if rate, ok := guideline.PercentageRates[children]; ok {
		return rate, nil
	}
	// Fall back to the largest family size the table defines.
	best := 0
	for count := range guideline.PercentageRates {
		if count < children && count > best {
			best = count
		}
	}
	if best == 0 {
		return zero, dErrors.Newf(dErrors.CodeValidation,
			"guideline for %s defines no percentage rate for %d children",
			guideline.Jurisdiction, children)
	}
	*warnings = append(*warnings, fmt.Sprintf(
		"no percentage rate for %d children; rate for %d children applied", children, best))
	return guideline.PercentageRates[best], nil
}

// perChildBreakdown splits the obligation across children. The base amount is
// weighted by age-adjustment factors when present, add-ons split evenly, and
// the final child absorbs the rounding residual so the column sums match the
// totals exactly.
func perChildBreakdown(guideline *rules.ChildSupportGuideline, children []ChildData, result *Result, now time.Time) []ChildBreakdown {
	n := len(children)
	if n == 0 {
		return []ChildBreakdown{}
	}

	weights := make([]decimal.Decimal, n)
	weightSum := zero
	for i, child := range children {
		weights[i] = guideline.AgeFactor(ageAt(child.DateOfBirth, now))
		weightSum = weightSum.Add(weights[i])
	}

	breakdown := make([]ChildBreakdown, n)
	count := decimal.NewFromInt(int64(n))
	var baseSum, healthSum, careSum decimal.Decimal
	for i, child := range children {
		entry := ChildBreakdown{Age: ageAt(child.DateOfBirth, now)}
		if i == n-1 {
			entry.BaseShare = result.BasicObligation.Sub(baseSum)
			entry.HealthInsuranceShare = result.HealthInsuranceAddOn.Sub(healthSum)
			entry.ChildCareShare = result.ChildCareAddOn.Sub(careSum)
		} else {
			entry.BaseShare = result.BasicObligation.Mul(weights[i]).Div(weightSum).Round(2)
			entry.HealthInsuranceShare = result.HealthInsuranceAddOn.Div(count).Round(2)
			entry.ChildCareShare = result.ChildCareAddOn.Div(count).Round(2)
			baseSum = baseSum.Add(entry.BaseShare)
			healthSum = healthSum.Add(entry.HealthInsuranceShare)
			careSum = careSum.Add(entry.ChildCareShare)
		}
		entry.TotalForChild = entry.BaseShare.
			Add(entry.HealthInsuranceShare).
			Add(entry.ChildCareShare)
		breakdown[i] = entry
	}
	return breakdown
}

func ageAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

func payerOutcome(result *Result, payer ParentLabel) *ParentOutcome {
	if payer == Parent2 {
		return &result.Parent2
	}
	return &result.Parent1
}

func roundResult(result *Result) {
	result.Parent1.AdjustedIncome = result.Parent1.AdjustedIncome.Round(2)
	result.Parent2.AdjustedIncome = result.Parent2.AdjustedIncome.Round(2)
	result.Parent1.NominalObligation = result.Parent1.NominalObligation.Round(2)
	result.Parent2.NominalObligation = result.Parent2.NominalObligation.Round(2)
	result.CombinedIncome = result.CombinedIncome.Round(2)
	result.BasicObligation = result.BasicObligation.Round(2)
	result.HealthInsuranceAddOn = result.HealthInsuranceAddOn.Round(2)
	result.ChildCareAddOn = result.ChildCareAddOn.Round(2)
	result.TotalObligation = result.TotalObligation.Round(2)
	result.ParentingTimeAdjustment = result.ParentingTimeAdjustment.Round(2)
	result.NetSupport = result.NetSupport.Round(2)
}
