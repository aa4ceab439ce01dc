// Package store holds the scheduler's persistence variants. The interfaces
// they satisfy are declared by the consumer in package scheduler.
package store

import "juriscalc/internal/scheduler"

var (
	_ scheduler.ScheduleStore = (*InMemoryScheduleStore)(nil)
	_ scheduler.ScheduleStore = (*RedisScheduleStore)(nil)
	_ scheduler.HistoryStore  = (*InMemoryHistoryStore)(nil)
	_ scheduler.HistoryStore  = (*PostgresHistoryStore)(nil)
)
