package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsDue(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		lastRun   time.Time
		frequency Frequency
		want      bool
	}{
		{"never run", time.Time{}, FreqMonthly, true},
		{"monthly, 40 days ago", now.AddDate(0, 0, -40), FreqMonthly, true},
		{"monthly, 10 days ago", now.AddDate(0, 0, -10), FreqMonthly, false},
		{"monthly, exactly 30 days ago", now.AddDate(0, 0, -30), FreqMonthly, true},
		{"daily, 23 hours ago", now.Add(-23 * time.Hour), FreqDaily, false},
		{"daily, 25 hours ago", now.Add(-25 * time.Hour), FreqDaily, true},
		{"weekly, 6 days ago", now.AddDate(0, 0, -6), FreqWeekly, false},
		{"quarterly, 91 days ago", now.AddDate(0, 0, -91), FreqQuarterly, true},
		{"annually, 200 days ago", now.AddDate(0, 0, -200), FreqAnnually, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDue(now, tc.lastRun, tc.frequency))
		})
	}
}

func TestNextRun(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	lastRun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, now, NextRun(now, time.Time{}, FreqMonthly))
	assert.Equal(t, lastRun.AddDate(0, 0, 7), NextRun(now, lastRun, FreqWeekly))
	assert.Equal(t, lastRun.AddDate(0, 0, 30), NextRun(now, lastRun, FreqMonthly))
}

func TestFrequencyDays(t *testing.T) {
	assert.Equal(t, 1, FreqDaily.Days())
	assert.Equal(t, 7, FreqWeekly.Days())
	assert.Equal(t, 30, FreqMonthly.Days())
	assert.Equal(t, 90, FreqQuarterly.Days())
	assert.Equal(t, 365, FreqAnnually.Days())
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType("federal_tax")
	assert.NoError(t, err)
	assert.Equal(t, DataFederalTax, dt)

	_, err = ParseDataType("horoscopes")
	assert.Error(t, err)
}
