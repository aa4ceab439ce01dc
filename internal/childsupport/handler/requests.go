package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"juriscalc/internal/childsupport"
	"juriscalc/internal/rules"
	dErrors "juriscalc/pkg/domain-errors"
)

type parentPayload struct {
	GrossMonthlyIncome      decimal.Decimal `json:"gross_monthly_income"`
	OtherIncome             decimal.Decimal `json:"other_income"`
	HealthInsuranceCost     decimal.Decimal `json:"health_insurance_cost"`
	ChildCareCost           decimal.Decimal `json:"child_care_cost"`
	OtherSupportObligations decimal.Decimal `json:"other_support_obligations"`
	OvernightsPerYear       int             `json:"overnights_per_year"`
	Deductions              []struct {
		Type   string          `json:"type"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"deductions"`
}

type childPayload struct {
	DateOfBirth     string `json:"date_of_birth"` // YYYY-MM-DD
	SpecialNeeds    bool   `json:"special_needs"`
	HealthInsurance string `json:"health_insurance"`
}

// CalculateRequest is the wire shape of a support calculation.
type CalculateRequest struct {
	Jurisdiction string         `json:"jurisdiction"`
	Type         string         `json:"calculation_type"`
	Parent1      parentPayload  `json:"parent1"`
	Parent2      parentPayload  `json:"parent2"`
	Children     []childPayload `json:"children"`

	input childsupport.CalculationInput
}

func (r *CalculateRequest) Validate() error {
	if r.Jurisdiction == "" {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction is required")
	}
	if r.Type == "" {
		r.Type = string(childsupport.TypeInitial)
	}

	r.input = childsupport.CalculationInput{
		Jurisdiction: rules.Jurisdiction(r.Jurisdiction),
		Type:         childsupport.CalculationType(r.Type),
		Parent1:      toParentData(r.Parent1),
		Parent2:      toParentData(r.Parent2),
	}
	for i, child := range r.Children {
		dob, err := time.Parse("2006-01-02", child.DateOfBirth)
		if err != nil {
			return dErrors.Newf(dErrors.CodeValidation,
				"children[%d]: date_of_birth must be YYYY-MM-DD", i)
		}
		coverage := childsupport.HealthCoverage(child.HealthInsurance)
		if child.HealthInsurance == "" {
			coverage = childsupport.CoverageNeither
		}
		switch coverage {
		case childsupport.CoverageParent1, childsupport.CoverageParent2,
			childsupport.CoverageBoth, childsupport.CoverageNeither:
		default:
			return dErrors.Newf(dErrors.CodeValidation,
				"children[%d]: unknown health_insurance value %q", i, child.HealthInsurance)
		}
		r.input.Children = append(r.input.Children, childsupport.ChildData{
			DateOfBirth:     dob,
			SpecialNeeds:    child.SpecialNeeds,
			HealthInsurance: coverage,
		})
	}
	return nil
}

// Input converts the validated request into the service input.
func (r *CalculateRequest) Input() childsupport.CalculationInput {
	return r.input
}

func toParentData(p parentPayload) childsupport.ParentData {
	data := childsupport.ParentData{
		GrossMonthlyIncome:      p.GrossMonthlyIncome,
		OtherIncome:             p.OtherIncome,
		HealthInsuranceCost:     p.HealthInsuranceCost,
		ChildCareCost:           p.ChildCareCost,
		OtherSupportObligations: p.OtherSupportObligations,
		OvernightsPerYear:       p.OvernightsPerYear,
	}
	for _, d := range p.Deductions {
		data.Deductions = append(data.Deductions, childsupport.IncomeDeduction{
			Type:   d.Type,
			Amount: d.Amount,
		})
	}
	return data
}
