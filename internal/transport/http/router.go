// Package httptransport assembles the HTTP surface: calculation endpoints,
// update-schedule management, cache administration, health, and metrics.
// Handlers live with their modules; this package only composes them.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"juriscalc/internal/rules"
	dErrors "juriscalc/pkg/domain-errors"
	audit "juriscalc/pkg/platform/audit"
	"juriscalc/pkg/platform/audit/publisher"
	"juriscalc/pkg/platform/httputil"
	adminmw "juriscalc/pkg/platform/middleware/admin"
	authmw "juriscalc/pkg/platform/middleware/auth"
	request "juriscalc/pkg/platform/middleware/request"
	"juriscalc/pkg/platform/middleware/requesttime"
	"juriscalc/pkg/requestcontext"
)

// RouteRegistrar is the shape module handlers expose to the router.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// AdminRegistrar marks handlers with routes that belong behind the admin token.
type AdminRegistrar interface {
	RegisterAdminRoutes(r chi.Router)
}

// CacheAdmin is the slice of the rule cache the admin surface needs.
type CacheAdmin interface {
	Clear()
	ClearKind(kind rules.Kind)
	Len() (tax, guidelines int)
}

// HealthCheck probes one dependency. Missing backends simply register no check.
type HealthCheck func(ctx context.Context) error

// RouterConfig carries everything the router composes. Handlers register
// their own routes; the router owns middleware order and the admin boundary.
type RouterConfig struct {
	Logger       *slog.Logger
	JWTValidator *authmw.Validator
	AdminToken   string

	Tax          RouteRegistrar
	ChildSupport RouteRegistrar
	Updates      interface {
		RouteRegistrar
		AdminRegistrar
	}

	Cache CacheAdmin
	Audit *publisher.Publisher

	HealthChecks map[string]HealthCheck
}

// NewRouter wires the full endpoint surface.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(authmw.Identify(cfg.JWTValidator, cfg.Logger))

	r.Get("/healthz", healthHandler(cfg.Cache, cfg.HealthChecks))
	r.Handle("/metrics", promhttp.Handler())

	cfg.Tax.RegisterRoutes(r)
	cfg.ChildSupport.RegisterRoutes(r)
	cfg.Updates.RegisterRoutes(r)

	r.Group(func(admin chi.Router) {
		admin.Use(adminmw.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		cfg.Updates.RegisterAdminRoutes(admin)
		admin.Post("/cache/clear", clearCacheHandler(cfg.Cache, cfg.Audit, cfg.Logger))
	})

	return r
}

// clearCacheHandler drops cached rule data. An optional kind query parameter
// ("tax" or "child_support") scopes the clear; absent means everything.
func clearCacheHandler(cache CacheAdmin, auditPub *publisher.Publisher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		scope := "all"
		switch kind := r.URL.Query().Get("kind"); kind {
		case "":
			cache.Clear()
		case string(rules.KindTax), string(rules.KindChildSupport):
			cache.ClearKind(rules.Kind(kind))
			scope = kind
		default:
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "kind must be tax or child_support"))
			return
		}

		logger.InfoContext(ctx, "rule cache cleared", slog.String("scope", scope))
		if auditPub != nil {
			if err := auditPub.Emit(ctx, audit.Event{
				Action:    string(audit.EventCacheCleared),
				Subject:   scope,
				Outcome:   "success",
				RequestID: requestcontext.RequestID(ctx),
				ActorID:   requestcontext.CallerID(ctx),
			}); err != nil {
				logger.WarnContext(ctx, "audit emit failed", slog.Any("error", err))
			}
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]string{"cleared": scope})
	}
}

func healthHandler(cache CacheAdmin, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}

		taxCached, guidelinesCached := 0, 0
		if cache != nil {
			taxCached, guidelinesCached = cache.Len()
		}

		httputil.WriteJSON(w, status, map[string]any{
			"status":            statusWord(status),
			"dependencies":      deps,
			"cached_rule_sets":  taxCached,
			"cached_guidelines": guidelinesCached,
		})
	}
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
