package handler

import (
	"github.com/shopspring/decimal"

	"juriscalc/internal/rules"
	"juriscalc/internal/tax"
	dErrors "juriscalc/pkg/domain-errors"
)

// CalculateRequest is the wire shape of a tax calculation. Monetary fields
// accept JSON numbers or numeric strings. Optional fields are pointers; absent
// means "not provided", which the calculator reports as missing information.
type CalculateRequest struct {
	Jurisdiction string          `json:"jurisdiction"`
	Year         int             `json:"year"`
	FilingStatus string          `json:"filing_status"`
	GrossIncome  decimal.Decimal `json:"gross_income"`

	SelfEmploymentIncome    decimal.Decimal `json:"self_employment_income"`
	CapitalGains            decimal.Decimal `json:"capital_gains"`
	RetirementContributions decimal.Decimal `json:"retirement_contributions"`
	StudentLoanInterest     decimal.Decimal `json:"student_loan_interest"`
	HSAContributions        decimal.Decimal `json:"hsa_contributions"`
	ChildCareCosts          decimal.Decimal `json:"child_care_costs"`
	EducationExpenses       decimal.Decimal `json:"education_expenses"`

	ItemizedDeductions *decimal.Decimal `json:"itemized_deductions,omitempty"`

	Dependents         int `json:"dependents"`
	QualifyingChildren int `json:"qualifying_children"`

	Withholding       *decimal.Decimal `json:"withholding,omitempty"`
	EstimatedPayments *decimal.Decimal `json:"estimated_payments,omitempty"`

	filingStatus rules.FilingStatus
}

// Validate checks the wire-level shape; domain-level range checks live in the
// service so non-HTTP callers get the same guarantees.
func (r *CalculateRequest) Validate() error {
	if r.Jurisdiction == "" {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction is required")
	}
	if r.Year == 0 {
		return dErrors.New(dErrors.CodeValidation, "year is required")
	}
	fs, err := rules.ParseFilingStatus(r.FilingStatus)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid filing status")
	}
	r.filingStatus = fs
	return nil
}

// Input converts the validated request into the service input.
func (r *CalculateRequest) Input() tax.CalculationInput {
	return tax.CalculationInput{
		Jurisdiction:            rules.Jurisdiction(r.Jurisdiction),
		Year:                    r.Year,
		FilingStatus:            r.filingStatus,
		GrossIncome:             r.GrossIncome,
		SelfEmploymentIncome:    r.SelfEmploymentIncome,
		CapitalGains:            r.CapitalGains,
		RetirementContributions: r.RetirementContributions,
		StudentLoanInterest:     r.StudentLoanInterest,
		HSAContributions:        r.HSAContributions,
		ChildCareCosts:          r.ChildCareCosts,
		EducationExpenses:       r.EducationExpenses,
		ItemizedDeductions:      r.ItemizedDeductions,
		Dependents:              r.Dependents,
		QualifyingChildren:      r.QualifyingChildren,
		Withholding:             r.Withholding,
		EstimatedPayments:       r.EstimatedPayments,
	}
}
