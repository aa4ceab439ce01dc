// Package childsupport computes support obligations from versioned
// jurisdiction guidelines. Income-shares and percentage-of-income models are
// implemented; the arithmetic is pure over resolved guideline data.
package childsupport

import (
	"time"

	"github.com/shopspring/decimal"

	"juriscalc/internal/rules"
)

// CalculationType records why the calculation is being run. It does not
// change the arithmetic; it is carried into the result for audit.
type CalculationType string

const (
	TypeInitial      CalculationType = "initial"
	TypeModification CalculationType = "modification"
	TypeEnforcement  CalculationType = "enforcement"
)

// ParentLabel designates one of the two parents in a calculation.
type ParentLabel string

const (
	Parent1 ParentLabel = "parent1"
	Parent2 ParentLabel = "parent2"
)

// Eligible income-deduction types. Unknown types are ignored with a warning
// rather than silently changing the obligation.
const (
	DeductionUnionDues               = "union_dues"
	DeductionMandatoryRetirement     = "mandatory_retirement"
	DeductionSelfPaidHealthInsurance = "self_paid_health_insurance"
	DeductionPriorSupportOrders      = "prior_court_ordered_support"
	DeductionSelfEmploymentTaxOffset = "self_employment_tax_offset"
)

// IncomeDeduction is one itemized deduction from a parent's gross income.
type IncomeDeduction struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// ParentData carries one parent's financials, all monthly amounts except
// OvernightsPerYear.
type ParentData struct {
	GrossMonthlyIncome      decimal.Decimal   `json:"gross_monthly_income"`
	OtherIncome             decimal.Decimal   `json:"other_income"`
	HealthInsuranceCost     decimal.Decimal   `json:"health_insurance_cost"`
	ChildCareCost           decimal.Decimal   `json:"child_care_cost"`
	OtherSupportObligations decimal.Decimal   `json:"other_support_obligations"`
	OvernightsPerYear       int               `json:"overnights_per_year"`
	Deductions              []IncomeDeduction `json:"deductions"`
}

// HealthCoverage says which parent carries a child's health insurance.
type HealthCoverage string

const (
	CoverageParent1 HealthCoverage = "parent1"
	CoverageParent2 HealthCoverage = "parent2"
	CoverageBoth    HealthCoverage = "both"
	CoverageNeither HealthCoverage = "neither"
)

// ChildData describes one child in the calculation.
type ChildData struct {
	DateOfBirth     time.Time      `json:"date_of_birth"`
	SpecialNeeds    bool           `json:"special_needs"`
	HealthInsurance HealthCoverage `json:"health_insurance"`
}

// CalculationInput carries one support calculation request. Ephemeral.
type CalculationInput struct {
	Jurisdiction rules.Jurisdiction
	Type         CalculationType
	Parent1      ParentData
	Parent2      ParentData
	Children     []ChildData
}

// ParentOutcome is one parent's side of the result.
type ParentOutcome struct {
	AdjustedIncome    decimal.Decimal `json:"adjusted_income"`
	IncomeShare       decimal.Decimal `json:"income_share"`
	NominalObligation decimal.Decimal `json:"nominal_obligation"`
}

// ChildBreakdown apportions the obligation to one child.
type ChildBreakdown struct {
	Age                  int             `json:"age"`
	BaseShare            decimal.Decimal `json:"base_share"`
	HealthInsuranceShare decimal.Decimal `json:"health_insurance_share"`
	ChildCareShare       decimal.Decimal `json:"child_care_share"`
	TotalForChild        decimal.Decimal `json:"total_for_child"`
}

// Result is the deterministic output of inputs plus one guideline version.
// GuidelineVersion records exactly which rule data produced it.
type Result struct {
	Type CalculationType `json:"calculation_type"`

	Parent1        ParentOutcome   `json:"parent1"`
	Parent2        ParentOutcome   `json:"parent2"`
	CombinedIncome decimal.Decimal `json:"combined_income"`

	BasicObligation      decimal.Decimal `json:"basic_obligation"`
	HealthInsuranceAddOn decimal.Decimal `json:"health_insurance_add_on"`
	ChildCareAddOn       decimal.Decimal `json:"child_care_add_on"`
	TotalObligation      decimal.Decimal `json:"total_obligation"`

	ParentingTimeAdjustment decimal.Decimal `json:"parenting_time_adjustment"`
	NetSupport              decimal.Decimal `json:"net_support"`
	PayingParent            ParentLabel     `json:"paying_parent"`

	PerChild []ChildBreakdown `json:"per_child"`
	Warnings []string         `json:"warnings"`

	GuidelineVersion rules.GuidelineVersion `json:"guideline_version"`
}
