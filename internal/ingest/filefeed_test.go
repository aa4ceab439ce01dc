package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"juriscalc/internal/rules"
	rulestore "juriscalc/internal/rules/store"
)

const sampleFeed = `{
  "tax_rule_sets": [
    {
      "jurisdiction": "US",
      "year": 2024,
      "config": {
        "has_income_tax": true,
        "tax_type": "progressive",
        "standard_deduction": {"single": "14600"},
        "personal_exemption": "0"
      },
      "brackets": {
        "single": [
          {"filing_status": "single", "min": "0", "max": "11600", "rate": "0.10"},
          {"filing_status": "single", "min": "11600", "rate": "0.12"}
        ]
      },
      "deductions": [],
      "credits": [
        {"type": "child_tax_credit", "amount": "2000", "per_qualifying_child": true, "max_children": 3}
      ],
      "adjustment_caps": {"student_loan_interest": "2500"}
    },
    {
      "jurisdiction": "CO",
      "year": 2024,
      "config": {
        "has_income_tax": true,
        "tax_type": "flat",
        "standard_deduction": {"single": "14600"},
        "personal_exemption": "0"
      }
    }
  ],
  "guidelines": [
    {
      "jurisdiction": "CA",
      "effective_date": "2024-01-01",
      "model": "income_shares",
      "min_income": "0",
      "max_income": "20000",
      "low_income_threshold": "1200",
      "self_support_reserve": "1000",
      "schedule": [
        {"lower_bound": "0", "upper_bound": "5000", "base_obligation": {"1": "800", "2": "1200"}},
        {"lower_bound": "5000", "base_obligation": {"1": "1100", "2": "1800"}}
      ],
      "parenting_time_threshold": 110,
      "parenting_time_formula": "proportional_offset",
      "health_insurance_treatment": "add_on",
      "child_care_treatment": "add_on"
    },
    {
      "jurisdiction": "NV",
      "effective_date": "not-a-date",
      "model": "income_shares"
    }
  ]
}`

func writeFeed(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestFileFeedIngestsMixedFeed(t *testing.T) {
	store := rulestore.NewInMemoryStore()
	feed := NewFileFeed(writeFeed(t, sampleFeed), store, nil)

	outcome, err := feed.Fetch(context.Background())
	require.NoError(t, err)

	// US and CA land; the flat CO set has no flat rate and the NV guideline
	// has a malformed effective date.
	require.Equal(t, 2, outcome.RecordsUpdated)
	require.Equal(t, 2, outcome.RecordsFailed)
	require.Equal(t, 0, outcome.RecordsCreated)

	ruleSet, err := store.TaxRules(context.Background(), rules.Federal, 2024)
	require.NoError(t, err)
	require.Equal(t, 1, ruleSet.Revision)
	require.Equal(t, rules.TaxTypeProgressive, ruleSet.Config.TaxType)
	require.Len(t, ruleSet.Brackets[rules.FilingSingle], 2)
	require.True(t, ruleSet.Credits[0].PerQualifyingChild)
	require.Equal(t, "2500", ruleSet.Caps.StudentLoanInterest.String())

	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	guideline, err := store.Guideline(context.Background(), "CA", asOf)
	require.NoError(t, err)
	require.Equal(t, rules.ModelIncomeShares, guideline.Model)
	require.Equal(t, 110, guideline.ParentingTimeThreshold)
	require.Equal(t, rules.TreatmentAddOn, guideline.HealthInsuranceTreatment)
	require.Equal(t, "1200", guideline.Schedule[0].BaseObligation[2].String())
}

func TestFileFeedRepeatIngestBumpsRevision(t *testing.T) {
	store := rulestore.NewInMemoryStore()
	feed := NewFileFeed(writeFeed(t, sampleFeed), store, nil)

	_, err := feed.Fetch(context.Background())
	require.NoError(t, err)
	_, err = feed.Fetch(context.Background())
	require.NoError(t, err)

	ruleSet, err := store.TaxRules(context.Background(), rules.Federal, 2024)
	require.NoError(t, err)
	require.Equal(t, 2, ruleSet.Revision)
}

func TestFileFeedMissingFile(t *testing.T) {
	feed := NewFileFeed(filepath.Join(t.TempDir(), "absent.json"), rulestore.NewInMemoryStore(), nil)

	_, err := feed.Fetch(context.Background())
	require.Error(t, err)
}

func TestFileFeedMalformedJSON(t *testing.T) {
	feed := NewFileFeed(writeFeed(t, "{not json"), rulestore.NewInMemoryStore(), nil)

	_, err := feed.Fetch(context.Background())
	require.ErrorContains(t, err, "parse rules feed")
}
