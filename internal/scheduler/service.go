package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"juriscalc/internal/rules"
	"juriscalc/internal/scheduler/metrics"
	"juriscalc/internal/scheduler/ports"
	dErrors "juriscalc/pkg/domain-errors"
	"juriscalc/pkg/platform/audit"
	"juriscalc/pkg/platform/audit/publisher"
	"juriscalc/pkg/platform/sentinel"
	"juriscalc/pkg/requestcontext"
)

// History listing bounds. Requests outside the range are clamped, not
// rejected.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// ScheduleStore persists per-data-type schedule entries. Get returns
// sentinel.ErrNotFound for unknown data types.
type ScheduleStore interface {
	List(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, dataType DataType) (*Entry, error)
	Put(ctx context.Context, entry Entry) error
}

// HistoryStore is the append-only run log. List returns newest first.
type HistoryStore interface {
	Append(ctx context.Context, result UpdateResult) error
	List(ctx context.Context, limit int) ([]UpdateResult, error)
}

// CacheInvalidator is called after a successful run so the next calculation
// observes the newly written rules. Satisfied by the rule cache.
type CacheInvalidator interface {
	ClearKind(kind rules.Kind)
}

// Service drives scheduled and manual rule updates. Runs for the same data
// type are serialized: an overlapping trigger is skipped and recorded as such
// rather than double-counting ingestion results.
type Service struct {
	schedule ScheduleStore
	history  HistoryStore
	adapters map[DataType]ports.IngestionAdapter
	cache    CacheInvalidator
	logger   *slog.Logger
	audit    *publisher.Publisher
	metrics  *metrics.Metrics
	clock    func() time.Time
	tick     time.Duration

	cron *cron.Cron

	mu      sync.Mutex
	running map[DataType]bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p *publisher.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAdapter(dataType DataType, adapter ports.IngestionAdapter) Option {
	return func(s *Service) { s.adapters[dataType] = adapter }
}

func WithCache(cache CacheInvalidator) Option {
	return func(s *Service) { s.cache = cache }
}

// WithClock overrides the time source for due checks and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithTick sets the scan interval for the periodic driver.
func WithTick(tick time.Duration) Option {
	return func(s *Service) { s.tick = tick }
}

func NewService(schedule ScheduleStore, history HistoryStore, opts ...Option) *Service {
	s := &Service{
		schedule: schedule,
		history:  history,
		adapters: make(map[DataType]ports.IngestionAdapter),
		logger:   slog.Default(),
		clock:    time.Now,
		tick:     time.Hour,
		running:  make(map[DataType]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// defaultFrequencies seeds first-boot schedules. Rule feeds move slowly;
// business-formation data changes most often.
var defaultFrequencies = map[DataType]Frequency{
	DataFederalTax:        FreqMonthly,
	DataStateTax:          FreqMonthly,
	DataChildSupport:      FreqQuarterly,
	DataBusinessFormation: FreqWeekly,
}

// Start seeds missing schedule entries and begins the periodic scan. The
// scan runs on cron's own goroutine; calculation requests never block on it.
func (s *Service) Start(ctx context.Context) error {
	for _, dataType := range AllDataTypes {
		_, err := s.schedule.Get(ctx, dataType)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Errorf("load schedule for %s: %w", dataType, err)
		}
		entry := Entry{DataType: dataType, Frequency: defaultFrequencies[dataType], Enabled: true}
		if err := s.schedule.Put(ctx, entry); err != nil {
			return fmt.Errorf("seed schedule for %s: %w", dataType, err)
		}
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every "+s.tick.String(), func() { s.Scan(context.Background()) }); err != nil {
		return fmt.Errorf("register scan job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("update scheduler started", slog.Duration("tick", s.tick))
	return nil
}

// Stop halts the periodic driver and waits for an in-flight scan to finish.
// In-flight ingestion runs complete; only future runs are stopped.
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.logger.Info("update scheduler stopped")
}

// Scan runs every due, enabled entry once. Exported for manual driving in
// tests; production calls come from the cron job.
func (s *Service) Scan(ctx context.Context) {
	s.metrics.IncrementScan()
	entries, err := s.schedule.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "schedule scan failed", slog.Any("error", err))
		return
	}
	now := s.clock()
	for _, entry := range entries {
		if !entry.Enabled || !IsDue(now, entry.LastRun, entry.Frequency) {
			continue
		}
		if _, err := s.run(ctx, entry.DataType, SourceScheduled); err != nil {
			s.logger.ErrorContext(ctx, "scheduled update failed",
				slog.String("data_type", string(entry.DataType)),
				slog.Any("error", err))
		}
	}
}

// Trigger runs one data type immediately, bypassing the due check. The run
// is recorded exactly like a scheduled one apart from the trigger source.
func (s *Service) Trigger(ctx context.Context, dataType DataType) (*UpdateResult, error) {
	if _, ok := s.adapters[dataType]; !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no ingestion adapter for %s", dataType)
	}
	return s.run(ctx, dataType, SourceManual)
}

func (s *Service) run(ctx context.Context, dataType DataType, source TriggerSource) (*UpdateResult, error) {
	if !s.tryLock(dataType) {
		result := UpdateResult{
			ID:            uuid.NewString(),
			DataType:      dataType,
			Status:        StatusSkipped,
			Error:         "another update for this data type is already running",
			TriggerSource: source,
			Timestamp:     s.clock(),
		}
		s.appendHistory(ctx, result)
		s.metrics.IncrementRun(string(dataType), string(StatusSkipped), string(source))
		s.logger.WarnContext(ctx, "update skipped, already running",
			slog.String("data_type", string(dataType)),
			slog.String("source", string(source)))
		return &result, nil
	}
	defer s.unlock(dataType)

	adapter, ok := s.adapters[dataType]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no ingestion adapter for %s", dataType)
	}

	s.logger.InfoContext(ctx, "update run started",
		slog.String("data_type", string(dataType)),
		slog.String("source", string(source)))
	s.emitAudit(ctx, audit.EventUpdateRunStarted, dataType, string(source), "")

	start := s.clock()
	outcome, err := adapter.Fetch(ctx)
	duration := s.clock().Sub(start)

	result := UpdateResult{
		ID:            uuid.NewString(),
		DataType:      dataType,
		Duration:      duration,
		TriggerSource: source,
		Timestamp:     s.clock(),
	}
	if err != nil {
		// Ingestion failure is non-fatal: prior rule data stays in force and
		// lastRun stays unchanged so the entry remains due on the next scan.
		result.Status = StatusFailed
		result.Error = err.Error()
	} else {
		result.Status = StatusSuccess
		result.RecordsCreated = outcome.RecordsCreated
		result.RecordsUpdated = outcome.RecordsUpdated
		result.RecordsFailed = outcome.RecordsFailed
		s.recordSuccess(ctx, dataType)
	}

	s.appendHistory(ctx, result)
	s.metrics.IncrementRun(string(dataType), string(result.Status), string(source))
	s.metrics.ObserveRunDuration(string(dataType), duration)
	s.emitAudit(ctx, audit.EventUpdateRunDone, dataType, string(result.Status),
		fmt.Sprintf("created=%d updated=%d failed=%d source=%s",
			result.RecordsCreated, result.RecordsUpdated, result.RecordsFailed, source))

	if result.Status == StatusFailed {
		s.logger.ErrorContext(ctx, "update run failed",
			slog.String("data_type", string(dataType)),
			slog.String("error", result.Error),
			slog.Duration("duration", duration))
	} else {
		s.logger.InfoContext(ctx, "update run completed",
			slog.String("data_type", string(dataType)),
			slog.Int("created", result.RecordsCreated),
			slog.Int("updated", result.RecordsUpdated),
			slog.Duration("duration", duration))
	}
	return &result, nil
}

// recordSuccess advances lastRun and clears the affected cache scopes so the
// next calculation observes the newly ingested rules.
func (s *Service) recordSuccess(ctx context.Context, dataType DataType) {
	entry, err := s.schedule.Get(ctx, dataType)
	if err != nil {
		// Do not rebuild the entry from defaults: a transient store error would
		// silently discard a custom frequency or disabled flag. Leaving lastRun
		// unchanged only makes the entry due again on the next scan.
		s.logger.ErrorContext(ctx, "schedule load failed, lastRun not advanced",
			slog.String("data_type", string(dataType)), slog.Any("error", err))
		if s.cache != nil {
			for _, kind := range dataType.RuleKinds() {
				s.cache.ClearKind(kind)
			}
		}
		return
	}
	entry.LastRun = s.clock()
	if err := s.schedule.Put(ctx, *entry); err != nil {
		s.logger.ErrorContext(ctx, "schedule update failed",
			slog.String("data_type", string(dataType)), slog.Any("error", err))
	}
	if s.cache != nil {
		for _, kind := range dataType.RuleKinds() {
			s.cache.ClearKind(kind)
		}
	}
}

func (s *Service) tryLock(dataType DataType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[dataType] {
		return false
	}
	s.running[dataType] = true
	return true
}

func (s *Service) unlock(dataType DataType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, dataType)
}

// GetSchedule lists all entries with their derived next-run times.
func (s *Service) GetSchedule(ctx context.Context) ([]Entry, error) {
	entries, err := s.schedule.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list schedule")
	}
	now := s.clock()
	for i := range entries {
		entries[i].NextRun = NextRun(now, entries[i].LastRun, entries[i].Frequency)
	}
	return entries, nil
}

// SetSchedule updates a data type's frequency and/or enabled flag. Nil fields
// are left unchanged. Disabling stops future runs; it never cancels an
// in-flight one.
func (s *Service) SetSchedule(ctx context.Context, dataType DataType, frequency *Frequency, enabled *bool) (*Entry, error) {
	entry, err := s.schedule.Get(ctx, dataType)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no schedule entry for %s", dataType)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load schedule entry")
	}
	if frequency != nil {
		entry.Frequency = *frequency
	}
	if enabled != nil {
		entry.Enabled = *enabled
	}
	if err := s.schedule.Put(ctx, *entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store schedule entry")
	}
	entry.NextRun = NextRun(s.clock(), entry.LastRun, entry.Frequency)

	s.emitAudit(ctx, audit.EventScheduleChanged, dataType, "success",
		fmt.Sprintf("frequency=%s enabled=%t", entry.Frequency, entry.Enabled))
	s.logger.InfoContext(ctx, "schedule changed",
		slog.String("data_type", string(dataType)),
		slog.String("frequency", string(entry.Frequency)),
		slog.Bool("enabled", entry.Enabled))
	return entry, nil
}

// History returns the most recent run records, newest first. The limit is
// clamped to [1, maxHistoryLimit]; zero or negative means the default.
func (s *Service) History(ctx context.Context, limit int) ([]UpdateResult, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	results, err := s.history.List(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list update history")
	}
	return results, nil
}

func (s *Service) appendHistory(ctx context.Context, result UpdateResult) {
	if err := s.history.Append(ctx, result); err != nil {
		s.logger.ErrorContext(ctx, "history append failed",
			slog.String("data_type", string(result.DataType)),
			slog.Any("error", err))
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.AuditEvent, dataType DataType, outcome, detail string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		Action:    string(event),
		Subject:   string(dataType),
		Outcome:   outcome,
		Detail:    detail,
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.CallerID(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", slog.Any("error", err))
	}
}
