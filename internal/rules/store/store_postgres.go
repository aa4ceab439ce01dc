package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"juriscalc/internal/rules"
	"juriscalc/pkg/platform/sentinel"
)

// PostgresStore persists rule sets in PostgreSQL. Bracket, deduction, and
// credit rows are relational; guideline schedule tables are document-shaped
// and stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed rule store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) TaxRules(ctx context.Context, jurisdiction rules.Jurisdiction, year int) (*rules.TaxRuleSet, error) {
	ruleSet := &rules.TaxRuleSet{
		Key:      rules.RuleSetKey{Jurisdiction: jurisdiction, Year: year},
		Brackets: make(map[rules.FilingStatus][]rules.TaxBracket),
	}

	var (
		flatRate          decimal.NullDecimal
		standardDeduction []byte
		caps              []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT revision, has_income_tax, tax_type, flat_rate, standard_deduction, personal_exemption, adjustment_caps
		FROM state_tax_configs
		WHERE jurisdiction = $1 AND year = $2
	`, string(jurisdiction), year).Scan(
		&ruleSet.Revision,
		&ruleSet.Config.HasIncomeTax,
		&ruleSet.Config.TaxType,
		&flatRate,
		&standardDeduction,
		&ruleSet.Config.PersonalExemption,
		&caps,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load state tax config: %w", err)
	}
	if flatRate.Valid {
		ruleSet.Config.FlatRate = &flatRate.Decimal
	}
	if err := json.Unmarshal(standardDeduction, &ruleSet.Config.StandardDeduction); err != nil {
		return nil, fmt.Errorf("decode standard deductions: %w", err)
	}
	if err := json.Unmarshal(caps, &ruleSet.Caps); err != nil {
		return nil, fmt.Errorf("decode adjustment caps: %w", err)
	}

	if err := s.loadBrackets(ctx, ruleSet); err != nil {
		return nil, err
	}
	if err := s.loadDeductions(ctx, ruleSet); err != nil {
		return nil, err
	}
	if err := s.loadCredits(ctx, ruleSet); err != nil {
		return nil, err
	}
	return ruleSet, nil
}

func (s *PostgresStore) loadBrackets(ctx context.Context, ruleSet *rules.TaxRuleSet) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filing_status, bracket_min, bracket_max, rate, base_tax
		FROM tax_brackets
		WHERE jurisdiction = $1 AND year = $2
		ORDER BY filing_status, bracket_min
	`, string(ruleSet.Key.Jurisdiction), ruleSet.Key.Year)
	if err != nil {
		return fmt.Errorf("load brackets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bracket rules.TaxBracket
			max     decimal.NullDecimal
			baseTax decimal.NullDecimal
		)
		if err := rows.Scan(&bracket.FilingStatus, &bracket.Min, &max, &bracket.Rate, &baseTax); err != nil {
			return fmt.Errorf("scan bracket: %w", err)
		}
		if max.Valid {
			bracket.Max = &max.Decimal
		}
		if baseTax.Valid {
			bracket.BaseTax = &baseTax.Decimal
		}
		ruleSet.Brackets[bracket.FilingStatus] = append(ruleSet.Brackets[bracket.FilingStatus], bracket)
	}
	return rows.Err()
}

func (s *PostgresStore) loadDeductions(ctx context.Context, ruleSet *rules.TaxRuleSet) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, filing_status, amount, phase_out_start, phase_out_end
		FROM deductions
		WHERE jurisdiction = $1 AND year = $2
		ORDER BY type
	`, string(ruleSet.Key.Jurisdiction), ruleSet.Key.Year)
	if err != nil {
		return fmt.Errorf("load deductions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			deduction    rules.Deduction
			filingStatus sql.NullString
			start, end   decimal.NullDecimal
		)
		if err := rows.Scan(&deduction.Type, &filingStatus, &deduction.Amount, &start, &end); err != nil {
			return fmt.Errorf("scan deduction: %w", err)
		}
		if filingStatus.Valid {
			fs := rules.FilingStatus(filingStatus.String)
			deduction.FilingStatus = &fs
		}
		if start.Valid {
			deduction.PhaseOutStart = &start.Decimal
		}
		if end.Valid {
			deduction.PhaseOutEnd = &end.Decimal
		}
		ruleSet.Deductions = append(ruleSet.Deductions, deduction)
	}
	return rows.Err()
}

func (s *PostgresStore) loadCredits(ctx context.Context, ruleSet *rules.TaxRuleSet) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, filing_status, amount, per_qualifying_child, max_children,
		       child_care_rate, phase_out_start, phase_out_end, refundable
		FROM credits
		WHERE jurisdiction = $1 AND year = $2
		ORDER BY type
	`, string(ruleSet.Key.Jurisdiction), ruleSet.Key.Year)
	if err != nil {
		return fmt.Errorf("load credits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			credit          rules.Credit
			filingStatus    sql.NullString
			childCareRate   decimal.NullDecimal
			start, end      decimal.NullDecimal
		)
		if err := rows.Scan(&credit.Type, &filingStatus, &credit.Amount, &credit.PerQualifyingChild,
			&credit.MaxChildren, &childCareRate, &start, &end, &credit.Refundable); err != nil {
			return fmt.Errorf("scan credit: %w", err)
		}
		if filingStatus.Valid {
			fs := rules.FilingStatus(filingStatus.String)
			credit.FilingStatus = &fs
		}
		if childCareRate.Valid {
			credit.ChildCareRate = &childCareRate.Decimal
		}
		if start.Valid {
			credit.PhaseOutStart = &start.Decimal
		}
		if end.Valid {
			credit.PhaseOutEnd = &end.Decimal
		}
		ruleSet.Credits = append(ruleSet.Credits, credit)
	}
	return rows.Err()
}

func (s *PostgresStore) Guideline(ctx context.Context, jurisdiction rules.Jurisdiction, asOf time.Time) (*rules.ChildSupportGuideline, error) {
	guideline := &rules.ChildSupportGuideline{Jurisdiction: jurisdiction}

	var schedule, percentageRates, ageAdjustments []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT effective_date, revision, model, min_income, max_income,
		       low_income_threshold, self_support_reserve, schedule, percentage_rates,
		       parenting_time_threshold, parenting_time_formula,
		       health_insurance_treatment, child_care_treatment, age_adjustments
		FROM child_support_guidelines
		WHERE jurisdiction = $1 AND effective_date <= $2
		ORDER BY effective_date DESC
		LIMIT 1
	`, string(jurisdiction), asOf).Scan(
		&guideline.EffectiveDate,
		&guideline.Revision,
		&guideline.Model,
		&guideline.MinIncome,
		&guideline.MaxIncome,
		&guideline.LowIncomeThreshold,
		&guideline.SelfSupportReserve,
		&schedule,
		&percentageRates,
		&guideline.ParentingTimeThreshold,
		&guideline.ParentingTimeFormula,
		&guideline.HealthInsuranceTreatment,
		&guideline.ChildCareTreatment,
		&ageAdjustments,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load guideline: %w", err)
	}
	if err := json.Unmarshal(schedule, &guideline.Schedule); err != nil {
		return nil, fmt.Errorf("decode guideline schedule: %w", err)
	}
	if err := json.Unmarshal(percentageRates, &guideline.PercentageRates); err != nil {
		return nil, fmt.Errorf("decode percentage rates: %w", err)
	}
	if err := json.Unmarshal(ageAdjustments, &guideline.AgeAdjustments); err != nil {
		return nil, fmt.Errorf("decode age adjustments: %w", err)
	}
	return guideline, nil
}

func (s *PostgresStore) ReplaceTaxRules(ctx context.Context, ruleSet *rules.TaxRuleSet) error {
	if err := ruleSet.Validate(); err != nil {
		return err
	}

	standardDeduction, err := json.Marshal(ruleSet.Config.StandardDeduction)
	if err != nil {
		return fmt.Errorf("encode standard deductions: %w", err)
	}
	caps, err := json.Marshal(ruleSet.Caps)
	if err != nil {
		return fmt.Errorf("encode adjustment caps: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tax rules: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	jurisdiction, year := string(ruleSet.Key.Jurisdiction), ruleSet.Key.Year

	var flatRate decimal.NullDecimal
	if ruleSet.Config.FlatRate != nil {
		flatRate = decimal.NullDecimal{Decimal: *ruleSet.Config.FlatRate, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_tax_configs
			(jurisdiction, year, revision, has_income_tax, tax_type, flat_rate,
			 standard_deduction, personal_exemption, adjustment_caps, updated_at)
		VALUES ($1, $2, 1, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (jurisdiction, year) DO UPDATE SET
			revision           = state_tax_configs.revision + 1,
			has_income_tax     = EXCLUDED.has_income_tax,
			tax_type           = EXCLUDED.tax_type,
			flat_rate          = EXCLUDED.flat_rate,
			standard_deduction = EXCLUDED.standard_deduction,
			personal_exemption = EXCLUDED.personal_exemption,
			adjustment_caps    = EXCLUDED.adjustment_caps,
			updated_at         = now()
	`, jurisdiction, year, ruleSet.Config.HasIncomeTax, string(ruleSet.Config.TaxType),
		flatRate, standardDeduction, ruleSet.Config.PersonalExemption, caps)
	if err != nil {
		return fmt.Errorf("upsert state tax config: %w", err)
	}

	for _, table := range []string{"tax_brackets", "deductions", "credits"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE jurisdiction = $1 AND year = $2`, table),
			jurisdiction, year); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for fs, brackets := range ruleSet.Brackets {
		for _, b := range brackets {
			var max, baseTax decimal.NullDecimal
			if b.Max != nil {
				max = decimal.NullDecimal{Decimal: *b.Max, Valid: true}
			}
			if b.BaseTax != nil {
				baseTax = decimal.NullDecimal{Decimal: *b.BaseTax, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tax_brackets (jurisdiction, year, filing_status, bracket_min, bracket_max, rate, base_tax)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, jurisdiction, year, string(fs), b.Min, max, b.Rate, baseTax); err != nil {
				return fmt.Errorf("insert bracket: %w", err)
			}
		}
	}

	for _, d := range ruleSet.Deductions {
		var fs sql.NullString
		if d.FilingStatus != nil {
			fs = sql.NullString{String: string(*d.FilingStatus), Valid: true}
		}
		var start, end decimal.NullDecimal
		if d.PhaseOutStart != nil {
			start = decimal.NullDecimal{Decimal: *d.PhaseOutStart, Valid: true}
		}
		if d.PhaseOutEnd != nil {
			end = decimal.NullDecimal{Decimal: *d.PhaseOutEnd, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO deductions (jurisdiction, year, type, filing_status, amount, phase_out_start, phase_out_end)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, jurisdiction, year, d.Type, fs, d.Amount, start, end); err != nil {
			return fmt.Errorf("insert deduction: %w", err)
		}
	}

	for _, c := range ruleSet.Credits {
		var fs sql.NullString
		if c.FilingStatus != nil {
			fs = sql.NullString{String: string(*c.FilingStatus), Valid: true}
		}
		var childCareRate, start, end decimal.NullDecimal
		if c.ChildCareRate != nil {
			childCareRate = decimal.NullDecimal{Decimal: *c.ChildCareRate, Valid: true}
		}
		if c.PhaseOutStart != nil {
			start = decimal.NullDecimal{Decimal: *c.PhaseOutStart, Valid: true}
		}
		if c.PhaseOutEnd != nil {
			end = decimal.NullDecimal{Decimal: *c.PhaseOutEnd, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO credits (jurisdiction, year, type, filing_status, amount, per_qualifying_child,
			                     max_children, child_care_rate, phase_out_start, phase_out_end, refundable)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, jurisdiction, year, c.Type, fs, c.Amount, c.PerQualifyingChild,
			c.MaxChildren, childCareRate, start, end, c.Refundable); err != nil {
			return fmt.Errorf("insert credit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tax rules: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceGuideline(ctx context.Context, guideline *rules.ChildSupportGuideline) error {
	if err := guideline.Validate(); err != nil {
		return err
	}

	schedule, err := json.Marshal(guideline.Schedule)
	if err != nil {
		return fmt.Errorf("encode guideline schedule: %w", err)
	}
	percentageRates, err := json.Marshal(guideline.PercentageRates)
	if err != nil {
		return fmt.Errorf("encode percentage rates: %w", err)
	}
	ageAdjustments, err := json.Marshal(guideline.AgeAdjustments)
	if err != nil {
		return fmt.Errorf("encode age adjustments: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO child_support_guidelines
			(jurisdiction, effective_date, revision, model, min_income, max_income,
			 low_income_threshold, self_support_reserve, schedule, percentage_rates,
			 parenting_time_threshold, parenting_time_formula,
			 health_insurance_treatment, child_care_treatment, age_adjustments, updated_at)
		VALUES ($1, $2, 1, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		ON CONFLICT (jurisdiction, effective_date) DO UPDATE SET
			revision                   = child_support_guidelines.revision + 1,
			model                      = EXCLUDED.model,
			min_income                 = EXCLUDED.min_income,
			max_income                 = EXCLUDED.max_income,
			low_income_threshold       = EXCLUDED.low_income_threshold,
			self_support_reserve       = EXCLUDED.self_support_reserve,
			schedule                   = EXCLUDED.schedule,
			percentage_rates           = EXCLUDED.percentage_rates,
			parenting_time_threshold   = EXCLUDED.parenting_time_threshold,
			parenting_time_formula     = EXCLUDED.parenting_time_formula,
			health_insurance_treatment = EXCLUDED.health_insurance_treatment,
			child_care_treatment       = EXCLUDED.child_care_treatment,
			age_adjustments            = EXCLUDED.age_adjustments,
			updated_at                 = now()
	`, string(guideline.Jurisdiction), guideline.EffectiveDate, string(guideline.Model),
		guideline.MinIncome, guideline.MaxIncome, guideline.LowIncomeThreshold,
		guideline.SelfSupportReserve, schedule, percentageRates,
		guideline.ParentingTimeThreshold, guideline.ParentingTimeFormula,
		string(guideline.HealthInsuranceTreatment), string(guideline.ChildCareTreatment),
		ageAdjustments)
	if err != nil {
		return fmt.Errorf("upsert guideline: %w", err)
	}
	return nil
}
