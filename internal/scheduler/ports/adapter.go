// Package ports defines the boundary between the scheduler and ingestion
// adapters. The scheduler never interprets adapter internals; it only sees
// the outcome counts.
package ports

import "context"

// IngestionOutcome reports what one fetch accomplished.
type IngestionOutcome struct {
	RecordsCreated int
	RecordsUpdated int
	RecordsFailed  int
}

// IngestionAdapter fetches and writes one data type's rule feed. A returned
// error marks the whole run failed; partial failures go in RecordsFailed.
type IngestionAdapter interface {
	Fetch(ctx context.Context) (*IngestionOutcome, error)
}

// AdapterFunc adapts a function to the IngestionAdapter interface.
type AdapterFunc func(ctx context.Context) (*IngestionOutcome, error)

func (f AdapterFunc) Fetch(ctx context.Context) (*IngestionOutcome, error) {
	return f(ctx)
}
