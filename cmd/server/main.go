package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"juriscalc/internal/childsupport"
	cshandler "juriscalc/internal/childsupport/handler"
	csmetrics "juriscalc/internal/childsupport/metrics"
	"juriscalc/internal/ingest"
	"juriscalc/internal/platform/config"
	"juriscalc/internal/platform/httpserver"
	"juriscalc/internal/platform/logger"
	platformredis "juriscalc/internal/platform/redis"
	"juriscalc/internal/rules/cache"
	rulesmetrics "juriscalc/internal/rules/metrics"
	rulestore "juriscalc/internal/rules/store"
	"juriscalc/internal/scheduler"
	schedhandler "juriscalc/internal/scheduler/handler"
	schedmetrics "juriscalc/internal/scheduler/metrics"
	"juriscalc/internal/scheduler/ports"
	schedstore "juriscalc/internal/scheduler/store"
	"juriscalc/internal/tax"
	taxhandler "juriscalc/internal/tax/handler"
	taxmetrics "juriscalc/internal/tax/metrics"
	httptransport "juriscalc/internal/transport/http"
	audit "juriscalc/pkg/platform/audit"
	"juriscalc/pkg/platform/audit/publisher"
	auditkafka "juriscalc/pkg/platform/audit/store/kafka"
	auditmemory "juriscalc/pkg/platform/audit/store/memory"
	auditworker "juriscalc/pkg/platform/audit/worker"
	authmw "juriscalc/pkg/platform/middleware/auth"
	"juriscalc/pkg/platform/sentinel"
)

// main wires storage, cache, services, scheduler, and the HTTP surface.
// Backends are selected by config presence: everything runs in-memory with no
// environment set, which is the local and test profile.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]httptransport.HealthCheck{}

	// Rule and history storage.
	var (
		ruleStore    rulestore.Store
		historyStore scheduler.HistoryStore
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres unreachable", "error", err)
			os.Exit(1)
		}
		ruleStore = rulestore.NewPostgresStore(db)
		historyStore = schedstore.NewPostgresHistoryStore(db)
		healthChecks["postgres"] = db.PingContext
	} else {
		ruleStore = rulestore.NewInMemoryStore()
		historyStore = schedstore.NewInMemoryHistoryStore()
	}

	// Schedule storage.
	var scheduleStore scheduler.ScheduleStore = schedstore.NewInMemoryScheduleStore()
	if cfg.RedisURL != "" {
		redisClient, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		scheduleStore = schedstore.NewRedisScheduleStore(redisClient.Client)
		healthChecks["redis"] = redisClient.Health
	}

	// Audit trail: emitters write to a buffer, a worker drains it into the
	// sink so calculation latency never includes the sink's.
	var auditSink audit.Store = auditmemory.New()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaStore, err := auditkafka.New(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaStore.Close()
		auditSink = kafkaStore
	}
	auditBuffer := audit.NewBuffer(256)
	auditPub := publisher.New(auditBuffer)
	go func() {
		worker := auditworker.New(auditSink, auditBuffer.Inbox(), log)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	ruleCache := cache.New(ruleStore,
		cache.WithLogger(log),
		cache.WithMetrics(rulesmetrics.New()))

	taxService := tax.NewService(ruleCache,
		tax.WithLogger(log),
		tax.WithAuditPublisher(auditPub),
		tax.WithMetrics(taxmetrics.New()))
	supportService := childsupport.NewService(ruleCache,
		childsupport.WithLogger(log),
		childsupport.WithAuditPublisher(auditPub),
		childsupport.WithMetrics(csmetrics.New()))

	schedulerService := scheduler.NewService(scheduleStore, historyStore,
		append(adapterOptions(cfg, ruleStore, log),
			scheduler.WithLogger(log),
			scheduler.WithAuditPublisher(auditPub),
			scheduler.WithCache(ruleCache),
			scheduler.WithMetrics(schedmetrics.New()),
			scheduler.WithTick(cfg.SchedulerTick))...)
	if err := schedulerService.Start(ctx); err != nil {
		log.Error("start scheduler", "error", err)
		os.Exit(1)
	}
	defer schedulerService.Stop()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:       log,
		JWTValidator: authmw.NewValidator(cfg.JWTSigningKey),
		AdminToken:   cfg.AdminToken,
		Tax:          taxhandler.New(taxService, taxhandler.WithLogger(log)),
		ChildSupport: cshandler.New(supportService, cshandler.WithLogger(log)),
		Updates:      schedhandler.New(schedulerService, schedhandler.WithLogger(log)),
		Cache:        ruleCache,
		Audit:        auditPub,
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// adapterOptions wires one ingestion adapter per data type. Rule-bearing data
// types read the JSON feed file named after them when a feed directory is
// configured; everything else gets a stub that reports the source as
// unavailable so manual triggers fail loudly instead of silently succeeding.
func adapterOptions(cfg config.Config, ruleStore rulestore.Store, log *slog.Logger) []scheduler.Option {
	opts := make([]scheduler.Option, 0, len(scheduler.AllDataTypes))
	for _, dataType := range scheduler.AllDataTypes {
		adapter := unavailableAdapter(dataType)
		if cfg.RulesFeedDir != "" && len(dataType.RuleKinds()) > 0 {
			path := filepath.Join(cfg.RulesFeedDir, string(dataType)+".json")
			adapter = ingest.NewFileFeed(path, ruleStore, log)
		}
		opts = append(opts, scheduler.WithAdapter(dataType, adapter))
	}
	return opts
}

func unavailableAdapter(dataType scheduler.DataType) ports.IngestionAdapter {
	return ports.AdapterFunc(func(context.Context) (*ports.IngestionOutcome, error) {
		return nil, fmt.Errorf("no feed configured for %s: %w", dataType, sentinel.ErrUnavailable)
	})
}
