// Package rules defines the versioned, jurisdiction-specific rule tables the
// calculators consume: tax brackets, deductions, credits, state configs, and
// child-support guideline schedules. Rule sets are immutable once published;
// ingestion replaces a key's data wholesale and bumps its revision.
package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Jurisdiction identifies a taxing/support authority. "US" is the federal
// jurisdiction; anything else is a state code ("CA", "NY", ...).
type Jurisdiction string

// Federal is the jurisdiction code for federal rule sets.
const Federal Jurisdiction = "US"

// RuleSetKey identifies one published rule bundle. Immutable once published:
// a new year or jurisdiction adds a key, it never mutates an existing one.
type RuleSetKey struct {
	Jurisdiction Jurisdiction
	Year         int
}

func (k RuleSetKey) String() string {
	return fmt.Sprintf("%s/%d", k.Jurisdiction, k.Year)
}

// Kind distinguishes the rule families for scoped cache invalidation.
type Kind string

const (
	KindTax          Kind = "tax"
	KindChildSupport Kind = "child_support"
)

// FilingStatus enumerates the filing statuses rule tables are keyed by.
type FilingStatus string

const (
	FilingSingle          FilingStatus = "single"
	FilingMarriedJoint    FilingStatus = "married_joint"
	FilingMarriedSeparate FilingStatus = "married_separate"
	FilingHeadOfHousehold FilingStatus = "head_of_household"
)

// ParseFilingStatus validates a wire-format filing status.
func ParseFilingStatus(raw string) (FilingStatus, error) {
	switch FilingStatus(raw) {
	case FilingSingle, FilingMarriedJoint, FilingMarriedSeparate, FilingHeadOfHousehold:
		return FilingStatus(raw), nil
	}
	return "", fmt.Errorf("unknown filing status %q", raw)
}

// TaxType is the tagged variant selector for a jurisdiction's income tax.
type TaxType string

const (
	TaxTypeFlat        TaxType = "flat"
	TaxTypeProgressive TaxType = "progressive"
	TaxTypeNone        TaxType = "none"
)

// TaxBracket is one marginal bracket row. Max nil means the bracket is
// unbounded (always the final bracket of a filing status).
type TaxBracket struct {
	FilingStatus FilingStatus     `json:"filing_status"`
	Min          decimal.Decimal  `json:"min"`
	Max          *decimal.Decimal `json:"max,omitempty"`
	Rate         decimal.Decimal  `json:"rate"`
	// BaseTax, when present, is the precomputed tax owed at the bracket
	// floor. The walk recomputes it anyway; the field is kept for parity
	// with published tables and for ingestion cross-checks.
	BaseTax *decimal.Decimal `json:"base_tax,omitempty"`
}

// Deduction is an above-the-line or itemizable deduction rule.
type Deduction struct {
	Type          string           `json:"type"`
	FilingStatus  *FilingStatus    `json:"filing_status,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	PhaseOutStart *decimal.Decimal `json:"phase_out_start,omitempty"`
	PhaseOutEnd   *decimal.Decimal `json:"phase_out_end,omitempty"`
}

// Credit is a tax credit rule. PerQualifyingChild credits multiply Amount by
// the (possibly capped) qualifying-children count. ChildCareRate credits are
// a percentage of reported child-care costs up to Amount.
type Credit struct {
	Type               string           `json:"type"`
	FilingStatus       *FilingStatus    `json:"filing_status,omitempty"`
	Amount             decimal.Decimal  `json:"amount"`
	PerQualifyingChild bool             `json:"per_qualifying_child,omitempty"`
	MaxChildren        int              `json:"max_children,omitempty"`
	ChildCareRate      *decimal.Decimal `json:"child_care_rate,omitempty"`
	PhaseOutStart      *decimal.Decimal `json:"phase_out_start,omitempty"`
	PhaseOutEnd        *decimal.Decimal `json:"phase_out_end,omitempty"`
	Refundable         bool             `json:"refundable,omitempty"`
}

// AdjustmentCaps holds statutory ceilings on AGI adjustments. A nil cap means
// the rule set defines none and the adjustment applies uncapped.
type AdjustmentCaps struct {
	RetirementContributions *decimal.Decimal `json:"retirement_contributions,omitempty"`
	StudentLoanInterest     *decimal.Decimal `json:"student_loan_interest,omitempty"`
	HSAContributions        *decimal.Decimal `json:"hsa_contributions,omitempty"`
}

// StateTaxConfig describes how a jurisdiction taxes income. The federal rule
// set uses the same shape with TaxType progressive.
type StateTaxConfig struct {
	HasIncomeTax      bool                             `json:"has_income_tax"`
	TaxType           TaxType                          `json:"tax_type"`
	FlatRate          *decimal.Decimal                 `json:"flat_rate,omitempty"`
	StandardDeduction map[FilingStatus]decimal.Decimal `json:"standard_deduction"`
	PersonalExemption decimal.Decimal                  `json:"personal_exemption"`
}

// Version stamps a calculation result with the rule data that produced it.
type Version struct {
	Jurisdiction Jurisdiction `json:"jurisdiction"`
	Year         int          `json:"year"`
	Revision     int          `json:"revision"`
}

// TaxRuleSet bundles everything needed to compute tax for one key.
type TaxRuleSet struct {
	Key        RuleSetKey
	Revision   int
	Config     StateTaxConfig
	Brackets   map[FilingStatus][]TaxBracket
	Deductions []Deduction
	Credits    []Credit
	Caps       AdjustmentCaps
}

// Version returns the audit stamp for this rule set.
func (rs *TaxRuleSet) Version() Version {
	return Version{Jurisdiction: rs.Key.Jurisdiction, Year: rs.Key.Year, Revision: rs.Revision}
}

// BracketsFor returns the sorted bracket list for a filing status.
func (rs *TaxRuleSet) BracketsFor(fs FilingStatus) ([]TaxBracket, bool) {
	brackets, ok := rs.Brackets[fs]
	return brackets, ok && len(brackets) > 0
}

// StandardDeductionFor returns the standard deduction for a filing status.
func (rs *TaxRuleSet) StandardDeductionFor(fs FilingStatus) (decimal.Decimal, bool) {
	amount, ok := rs.Config.StandardDeduction[fs]
	return amount, ok
}

// SupportsFilingStatus reports whether this rule set can compute for the
// given filing status: a standard deduction must exist, and progressive
// jurisdictions additionally need a bracket table.
func (rs *TaxRuleSet) SupportsFilingStatus(fs FilingStatus) bool {
	if !rs.Config.HasIncomeTax {
		return true
	}
	if _, ok := rs.StandardDeductionFor(fs); !ok {
		return false
	}
	if rs.Config.TaxType == TaxTypeProgressive {
		_, ok := rs.BracketsFor(fs)
		return ok
	}
	return true
}

// Validate enforces the published-table invariants: contiguous, sorted,
// non-overlapping brackets with an unbounded top; flat implies a rate;
// progressive implies brackets; phase-out windows are ordered.
func (rs *TaxRuleSet) Validate() error {
	switch rs.Config.TaxType {
	case TaxTypeNone:
		if rs.Config.HasIncomeTax {
			return fmt.Errorf("rule set %s: tax type none contradicts has_income_tax", rs.Key)
		}
		return nil
	case TaxTypeFlat:
		if rs.Config.FlatRate == nil {
			return fmt.Errorf("rule set %s: flat tax requires a flat rate", rs.Key)
		}
	case TaxTypeProgressive:
		if len(rs.Brackets) == 0 {
			return fmt.Errorf("rule set %s: progressive tax requires brackets", rs.Key)
		}
	default:
		return fmt.Errorf("rule set %s: unknown tax type %q", rs.Key, rs.Config.TaxType)
	}

	for fs, brackets := range rs.Brackets {
		if err := validateBrackets(brackets); err != nil {
			return fmt.Errorf("rule set %s, filing status %s: %w", rs.Key, fs, err)
		}
	}

	for _, d := range rs.Deductions {
		if err := validatePhaseOut(d.PhaseOutStart, d.PhaseOutEnd); err != nil {
			return fmt.Errorf("rule set %s, deduction %s: %w", rs.Key, d.Type, err)
		}
	}
	for _, c := range rs.Credits {
		if err := validatePhaseOut(c.PhaseOutStart, c.PhaseOutEnd); err != nil {
			return fmt.Errorf("rule set %s, credit %s: %w", rs.Key, c.Type, err)
		}
	}
	return nil
}

func validateBrackets(brackets []TaxBracket) error {
	if len(brackets) == 0 {
		return fmt.Errorf("empty bracket list")
	}
	if !sort.SliceIsSorted(brackets, func(i, j int) bool {
		return brackets[i].Min.LessThan(brackets[j].Min)
	}) {
		return fmt.Errorf("brackets not sorted ascending")
	}
	if !brackets[0].Min.IsZero() {
		return fmt.Errorf("first bracket must start at 0, got %s", brackets[0].Min)
	}
	for i, b := range brackets {
		last := i == len(brackets)-1
		if last {
			if b.Max != nil {
				return fmt.Errorf("final bracket must be unbounded")
			}
			continue
		}
		if b.Max == nil {
			return fmt.Errorf("non-final bracket %d is unbounded", i)
		}
		if !b.Max.GreaterThan(b.Min) {
			return fmt.Errorf("bracket %d has max %s <= min %s", i, b.Max, b.Min)
		}
		if !brackets[i+1].Min.Equal(*b.Max) {
			return fmt.Errorf("gap between bracket %d max %s and bracket %d min %s",
				i, b.Max, i+1, brackets[i+1].Min)
		}
	}
	return nil
}

func validatePhaseOut(start, end *decimal.Decimal) error {
	if start != nil && end != nil && start.GreaterThan(*end) {
		return fmt.Errorf("phase-out start %s exceeds end %s", start, end)
	}
	if (start == nil) != (end == nil) {
		return fmt.Errorf("phase-out requires both start and end")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Child-support guidelines
// -----------------------------------------------------------------------------

// GuidelineModel is the tagged variant selector for a guideline.
type GuidelineModel string

const (
	ModelIncomeShares       GuidelineModel = "income_shares"
	ModelPercentageOfIncome GuidelineModel = "percentage_of_income"
	ModelMelsonFormula      GuidelineModel = "melson_formula"
)

// AddOnTreatment says how a cost category enters the obligation.
type AddOnTreatment string

const (
	TreatmentAddOn     AddOnTreatment = "add_on"    // apportioned by income share
	TreatmentDeviation AddOnTreatment = "deviation" // reported, not added
	TreatmentIncluded  AddOnTreatment = "included"  // already inside the schedule
)

// MaxScheduleChildren is the top column of support schedules; larger families
// use this column (published tables stop at "6 or more").
const MaxScheduleChildren = 6

// ScheduleBand is one combined-income row of an income-shares schedule.
// BaseObligation is indexed by number of children, 1..MaxScheduleChildren.
type ScheduleBand struct {
	LowerBound     decimal.Decimal         `json:"lower_bound"`
	UpperBound     *decimal.Decimal        `json:"upper_bound,omitempty"`
	BaseObligation map[int]decimal.Decimal `json:"base_obligation"`
}

// AgeAdjustment weights a child's share of the obligation by age band.
type AgeAdjustment struct {
	MinAge int             `json:"min_age"`
	MaxAge int             `json:"max_age"`
	Factor decimal.Decimal `json:"factor"`
}

// GuidelineVersion stamps a support result with the guideline that produced it.
type GuidelineVersion struct {
	Jurisdiction  Jurisdiction   `json:"jurisdiction"`
	EffectiveDate time.Time      `json:"effective_date"`
	Revision      int            `json:"revision"`
	Model         GuidelineModel `json:"model"`
}

// ChildSupportGuideline is one jurisdiction's guideline as of an effective date.
type ChildSupportGuideline struct {
	Jurisdiction  Jurisdiction
	EffectiveDate time.Time
	Revision      int
	Model         GuidelineModel

	// Income bounds, all monthly amounts.
	MinIncome          decimal.Decimal
	MaxIncome          decimal.Decimal
	LowIncomeThreshold decimal.Decimal
	SelfSupportReserve decimal.Decimal

	Schedule        []ScheduleBand
	PercentageRates map[int]decimal.Decimal // children count -> rate

	// Overnights/year above which the named adjustment formula applies. The
	// formula is an opaque, versioned identifier resolved from rule data;
	// the engine only implements "proportional_offset" and reports others.
	ParentingTimeThreshold int
	ParentingTimeFormula   string

	HealthInsuranceTreatment AddOnTreatment
	ChildCareTreatment       AddOnTreatment

	AgeAdjustments []AgeAdjustment
}

// Version returns the audit stamp for this guideline.
func (g *ChildSupportGuideline) Version() GuidelineVersion {
	return GuidelineVersion{
		Jurisdiction:  g.Jurisdiction,
		EffectiveDate: g.EffectiveDate,
		Revision:      g.Revision,
		Model:         g.Model,
	}
}

// AgeFactor returns the weighting factor for a child's age, defaulting to 1.
func (g *ChildSupportGuideline) AgeFactor(age int) decimal.Decimal {
	for _, adj := range g.AgeAdjustments {
		if age >= adj.MinAge && age <= adj.MaxAge {
			return adj.Factor
		}
	}
	return decimal.NewFromInt(1)
}

// Validate enforces the model-specific table invariants.
func (g *ChildSupportGuideline) Validate() error {
	switch g.Model {
	case ModelIncomeShares:
		if len(g.Schedule) == 0 {
			return fmt.Errorf("guideline %s: income-shares model requires a support schedule", g.Jurisdiction)
		}
	case ModelPercentageOfIncome:
		if len(g.PercentageRates) == 0 {
			return fmt.Errorf("guideline %s: percentage-of-income model requires a rate table", g.Jurisdiction)
		}
	case ModelMelsonFormula:
		// Accepted as data; calculation rejects it until per-jurisdiction
		// arithmetic is sourced.
	default:
		return fmt.Errorf("guideline %s: unknown model %q", g.Jurisdiction, g.Model)
	}

	if !sort.SliceIsSorted(g.Schedule, func(i, j int) bool {
		return g.Schedule[i].LowerBound.LessThan(g.Schedule[j].LowerBound)
	}) {
		return fmt.Errorf("guideline %s: schedule bands not sorted by lower bound", g.Jurisdiction)
	}
	for i, band := range g.Schedule {
		if band.UpperBound != nil && !band.UpperBound.GreaterThan(band.LowerBound) {
			return fmt.Errorf("guideline %s: band %d upper bound %s <= lower bound %s",
				g.Jurisdiction, i, band.UpperBound, band.LowerBound)
		}
		if len(band.BaseObligation) == 0 {
			return fmt.Errorf("guideline %s: band %d has no obligation column", g.Jurisdiction, i)
		}
	}
	if g.MaxIncome.LessThan(g.MinIncome) {
		return fmt.Errorf("guideline %s: max income %s below min income %s",
			g.Jurisdiction, g.MaxIncome, g.MinIncome)
	}
	return nil
}

// BandClamp reports whether a combined income fell outside the schedule and
// which end was substituted.
type BandClamp int

const (
	BandExact BandClamp = iota
	BandBelowSchedule
	BandAboveSchedule
)

// BandFor selects the highest band whose lower bound <= combined income.
// Incomes outside the schedule clamp to the nearest band: the bottom band
// below the schedule, the top band above it, flagged so callers can warn.
func (g *ChildSupportGuideline) BandFor(combined decimal.Decimal) (*ScheduleBand, BandClamp) {
	if len(g.Schedule) == 0 {
		return nil, BandExact
	}
	if combined.LessThan(g.Schedule[0].LowerBound) {
		return &g.Schedule[0], BandBelowSchedule
	}
	idx := 0
	for i, band := range g.Schedule {
		if band.LowerBound.LessThanOrEqual(combined) {
			idx = i
		} else {
			break
		}
	}
	band := &g.Schedule[idx]
	if idx == len(g.Schedule)-1 &&
		band.UpperBound != nil && combined.GreaterThan(*band.UpperBound) {
		return band, BandAboveSchedule
	}
	return band, BandExact
}

// ObligationFor reads a band's column for the number of children, clamping
// large families to the top column.
func (b *ScheduleBand) ObligationFor(children int) (decimal.Decimal, bool) {
	if children > MaxScheduleChildren {
		children = MaxScheduleChildren
	}
	amount, ok := b.BaseObligation[children]
	return amount, ok
}
