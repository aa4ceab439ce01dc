package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"juriscalc/internal/scheduler"
)

// PostgresHistoryStore writes the run log to the ingestion_log table.
type PostgresHistoryStore struct {
	db *sql.DB
}

func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (s *PostgresHistoryStore) Append(ctx context.Context, result scheduler.UpdateResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_log
			(id, data_type, status, records_created, records_updated, records_failed,
			 duration_ms, error_text, trigger_source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, result.ID, string(result.DataType), string(result.Status),
		result.RecordsCreated, result.RecordsUpdated, result.RecordsFailed,
		result.Duration.Milliseconds(), result.Error, string(result.TriggerSource),
		result.Timestamp)
	if err != nil {
		return fmt.Errorf("append ingestion log: %w", err)
	}
	return nil
}

func (s *PostgresHistoryStore) List(ctx context.Context, limit int) ([]scheduler.UpdateResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data_type, status, records_created, records_updated, records_failed,
		       duration_ms, error_text, trigger_source, created_at
		FROM ingestion_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ingestion log: %w", err)
	}
	defer rows.Close()

	var out []scheduler.UpdateResult
	for rows.Next() {
		var (
			result     scheduler.UpdateResult
			durationMS int64
		)
		if err := rows.Scan(&result.ID, &result.DataType, &result.Status,
			&result.RecordsCreated, &result.RecordsUpdated, &result.RecordsFailed,
			&durationMS, &result.Error, &result.TriggerSource, &result.Timestamp); err != nil {
			return nil, fmt.Errorf("scan ingestion log row: %w", err)
		}
		result.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, result)
	}
	return out, rows.Err()
}
