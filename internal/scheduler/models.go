// Package scheduler keeps jurisdiction rule data fresh: it tracks per
// data-type update schedules, drives due ingestion runs, records an
// append-only history, and invalidates the rule cache after successful runs.
package scheduler

import (
	"fmt"
	"time"

	"juriscalc/internal/rules"
)

// DataType keys one independently scheduled rule feed.
type DataType string

const (
	DataFederalTax        DataType = "federal_tax"
	DataStateTax          DataType = "state_tax"
	DataChildSupport      DataType = "child_support"
	DataBusinessFormation DataType = "business_formation"
)

// AllDataTypes is the fixed set of schedulable feeds, in display order.
var AllDataTypes = []DataType{DataFederalTax, DataStateTax, DataChildSupport, DataBusinessFormation}

// ParseDataType validates a wire-format data type.
func ParseDataType(raw string) (DataType, error) {
	switch DataType(raw) {
	case DataFederalTax, DataStateTax, DataChildSupport, DataBusinessFormation:
		return DataType(raw), nil
	}
	return "", fmt.Errorf("unknown data type %q", raw)
}

// RuleKinds maps a data type to the cache scopes a successful run invalidates.
func (d DataType) RuleKinds() []rules.Kind {
	switch d {
	case DataFederalTax, DataStateTax:
		return []rules.Kind{rules.KindTax}
	case DataChildSupport:
		return []rules.Kind{rules.KindChildSupport}
	default:
		return nil
	}
}

// Frequency is how often a data type should refresh.
type Frequency string

const (
	FreqDaily     Frequency = "daily"
	FreqWeekly    Frequency = "weekly"
	FreqMonthly   Frequency = "monthly"
	FreqQuarterly Frequency = "quarterly"
	FreqAnnually  Frequency = "annually"
)

// ParseFrequency validates a wire-format frequency.
func ParseFrequency(raw string) (Frequency, error) {
	switch Frequency(raw) {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqQuarterly, FreqAnnually:
		return Frequency(raw), nil
	}
	return "", fmt.Errorf("unknown frequency %q", raw)
}

// Days returns the refresh interval in days. Months count as 30 days and
// years as 365; schedule drift at that granularity is acceptable.
func (f Frequency) Days() int {
	switch f {
	case FreqDaily:
		return 1
	case FreqWeekly:
		return 7
	case FreqMonthly:
		return 30
	case FreqQuarterly:
		return 90
	default:
		return 365
	}
}

// Entry is one data type's schedule. LastRun zero means it has never run.
// NextRun is derived, never stored.
type Entry struct {
	DataType  DataType  `json:"data_type"`
	Frequency Frequency `json:"frequency"`
	Enabled   bool      `json:"enabled"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run,omitempty"`
}

// RunStatus is the terminal state of one update run.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
	StatusSkipped RunStatus = "skipped"
)

// TriggerSource notes how a run was initiated. Scheduled and manual runs are
// otherwise recorded identically.
type TriggerSource string

const (
	SourceScheduled TriggerSource = "scheduled"
	SourceManual    TriggerSource = "manual"
)

// UpdateResult is one immutable history record. Never mutated after creation.
type UpdateResult struct {
	ID             string        `json:"id"`
	DataType       DataType      `json:"data_type"`
	Status         RunStatus     `json:"status"`
	RecordsCreated int           `json:"records_created"`
	RecordsUpdated int           `json:"records_updated"`
	RecordsFailed  int           `json:"records_failed"`
	Duration       time.Duration `json:"duration_ms"`
	Error          string        `json:"error,omitempty"`
	TriggerSource  TriggerSource `json:"trigger_source"`
	Timestamp      time.Time     `json:"timestamp"`
}
