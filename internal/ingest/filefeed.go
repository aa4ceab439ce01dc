// Package ingest holds ingestion adapters that feed the rule store. The
// file-feed adapter is the contract's reference implementation and backs
// local and dev profiles; remote feeds plug in behind the same port.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"juriscalc/internal/rules"
	"juriscalc/internal/scheduler/ports"
)

// RuleWriter is the slice of the rule store the adapter writes through.
type RuleWriter interface {
	ReplaceTaxRules(ctx context.Context, ruleSet *rules.TaxRuleSet) error
	ReplaceGuideline(ctx context.Context, guideline *rules.ChildSupportGuideline) error
}

// feedDocument is the on-disk feed shape. One file carries any mix of tax
// rule sets and guidelines.
type feedDocument struct {
	TaxRuleSets []taxRuleSetDoc `json:"tax_rule_sets"`
	Guidelines  []guidelineDoc  `json:"guidelines"`
}

type taxRuleSetDoc struct {
	Jurisdiction string                                    `json:"jurisdiction"`
	Year         int                                       `json:"year"`
	Config       rules.StateTaxConfig                      `json:"config"`
	Brackets     map[rules.FilingStatus][]rules.TaxBracket `json:"brackets"`
	Deductions   []rules.Deduction                         `json:"deductions"`
	Credits      []rules.Credit                            `json:"credits"`
	Caps         rules.AdjustmentCaps                      `json:"adjustment_caps"`
}

type guidelineDoc struct {
	Jurisdiction  string `json:"jurisdiction"`
	EffectiveDate string `json:"effective_date"` // YYYY-MM-DD
	Model         string `json:"model"`

	MinIncome          decimal.Decimal `json:"min_income"`
	MaxIncome          decimal.Decimal `json:"max_income"`
	LowIncomeThreshold decimal.Decimal `json:"low_income_threshold"`
	SelfSupportReserve decimal.Decimal `json:"self_support_reserve"`

	Schedule        []rules.ScheduleBand    `json:"schedule"`
	PercentageRates map[int]decimal.Decimal `json:"percentage_rates"`

	ParentingTimeThreshold int    `json:"parenting_time_threshold"`
	ParentingTimeFormula   string `json:"parenting_time_formula"`

	HealthInsuranceTreatment string `json:"health_insurance_treatment"`
	ChildCareTreatment       string `json:"child_care_treatment"`

	AgeAdjustments []rules.AgeAdjustment `json:"age_adjustments"`
}

// FileFeed ingests one feed file, replacing rule data wholesale per key.
// Records that fail validation are counted and skipped; the run only fails
// when the file itself cannot be read or parsed.
type FileFeed struct {
	path   string
	writer RuleWriter
	logger *slog.Logger
}

func NewFileFeed(path string, writer RuleWriter, logger *slog.Logger) *FileFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileFeed{path: path, writer: writer, logger: logger}
}

var _ ports.IngestionAdapter = (*FileFeed)(nil)

func (f *FileFeed) Fetch(ctx context.Context) (*ports.IngestionOutcome, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read rules feed %s: %w", f.path, err)
	}
	var doc feedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rules feed %s: %w", f.path, err)
	}

	outcome := &ports.IngestionOutcome{}
	for _, set := range doc.TaxRuleSets {
		ruleSet := &rules.TaxRuleSet{
			Key: rules.RuleSetKey{
				Jurisdiction: rules.Jurisdiction(set.Jurisdiction),
				Year:         set.Year,
			},
			Config:     set.Config,
			Brackets:   set.Brackets,
			Deductions: set.Deductions,
			Credits:    set.Credits,
			Caps:       set.Caps,
		}
		if err := f.writer.ReplaceTaxRules(ctx, ruleSet); err != nil {
			outcome.RecordsFailed++
			f.logger.WarnContext(ctx, "tax rule set rejected",
				slog.String("key", ruleSet.Key.String()),
				slog.Any("error", err))
			continue
		}
		outcome.RecordsUpdated++
	}

	for _, g := range doc.Guidelines {
		guideline, err := toGuideline(g)
		if err == nil {
			err = f.writer.ReplaceGuideline(ctx, guideline)
		}
		if err != nil {
			outcome.RecordsFailed++
			f.logger.WarnContext(ctx, "guideline rejected",
				slog.String("jurisdiction", g.Jurisdiction),
				slog.Any("error", err))
			continue
		}
		outcome.RecordsUpdated++
	}

	f.logger.InfoContext(ctx, "rules feed ingested",
		slog.String("path", f.path),
		slog.Int("updated", outcome.RecordsUpdated),
		slog.Int("failed", outcome.RecordsFailed))
	return outcome, nil
}

func toGuideline(doc guidelineDoc) (*rules.ChildSupportGuideline, error) {
	effective, err := time.Parse("2006-01-02", doc.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("effective_date must be YYYY-MM-DD: %w", err)
	}
	return &rules.ChildSupportGuideline{
		Jurisdiction:             rules.Jurisdiction(doc.Jurisdiction),
		EffectiveDate:            effective,
		Model:                    rules.GuidelineModel(doc.Model),
		MinIncome:                doc.MinIncome,
		MaxIncome:                doc.MaxIncome,
		LowIncomeThreshold:       doc.LowIncomeThreshold,
		SelfSupportReserve:       doc.SelfSupportReserve,
		Schedule:                 doc.Schedule,
		PercentageRates:          doc.PercentageRates,
		ParentingTimeThreshold:   doc.ParentingTimeThreshold,
		ParentingTimeFormula:     doc.ParentingTimeFormula,
		HealthInsuranceTreatment: rules.AddOnTreatment(doc.HealthInsuranceTreatment),
		ChildCareTreatment:       rules.AddOnTreatment(doc.ChildCareTreatment),
		AgeAdjustments:           doc.AgeAdjustments,
	}, nil
}
