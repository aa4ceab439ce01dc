// Package tax computes income-tax estimates from versioned jurisdiction rule
// sets. The arithmetic lives in pure functions over resolved rule data; the
// service layer owns rule resolution, validation, and audit.
package tax

import (
	"github.com/shopspring/decimal"

	"juriscalc/internal/rules"
)

// Confidence grades how much optional input was missing for an estimate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Missing-information flags raised while computing. One flag drops confidence
// to medium, two or more to low.
const (
	FlagGrossIncomeNotProvided       = "gross_income_not_provided"
	FlagWithholdingNotProvided       = "withholding_not_provided"
	FlagEstimatedPaymentsNotProvided = "estimated_payments_not_provided"
)

// CalculationInput carries one tax estimate request. It is never persisted.
// Optional monetary fields are pointers: nil means "not provided" and raises
// a missing-information flag, a zero value means an explicit zero.
type CalculationInput struct {
	Jurisdiction rules.Jurisdiction
	Year         int
	FilingStatus rules.FilingStatus

	GrossIncome decimal.Decimal

	// Enumerated adjustment categories.
	SelfEmploymentIncome    decimal.Decimal
	CapitalGains            decimal.Decimal
	RetirementContributions decimal.Decimal
	StudentLoanInterest     decimal.Decimal
	HSAContributions        decimal.Decimal
	ChildCareCosts          decimal.Decimal
	EducationExpenses       decimal.Decimal

	ItemizedDeductions *decimal.Decimal

	Dependents         int
	QualifyingChildren int

	Withholding       *decimal.Decimal
	EstimatedPayments *decimal.Decimal
}

// CalculationResult is produced fresh on each call and never mutated after
// return. RuleSetVersion records the exact rule data that produced it.
type CalculationResult struct {
	TotalIncome         decimal.Decimal `json:"total_income"`
	AdjustedGrossIncome decimal.Decimal `json:"adjusted_gross_income"`
	DeductionApplied    decimal.Decimal `json:"deduction_applied"`
	ItemizedUsed        bool            `json:"itemized_used"`
	TaxableIncome       decimal.Decimal `json:"taxable_income"`
	TaxBeforeCredits    decimal.Decimal `json:"tax_before_credits"`
	CreditsApplied      decimal.Decimal `json:"credits_applied"`
	TotalTax            decimal.Decimal `json:"total_tax"`
	RefundOrOwed        decimal.Decimal `json:"refund_or_owed"`
	IsRefund            bool            `json:"is_refund"`
	MarginalRate        decimal.Decimal `json:"marginal_rate"`
	EffectiveRate       decimal.Decimal `json:"effective_rate"`

	Confidence  Confidence `json:"confidence"`
	MissingInfo []string   `json:"missing_info"`

	RuleSetVersion rules.Version `json:"rule_set_version"`
}
