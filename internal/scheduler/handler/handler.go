// Package handler exposes update-schedule management over HTTP. Mutating
// routes sit behind the admin-token middleware, wired in the router.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"juriscalc/internal/scheduler"
	dErrors "juriscalc/pkg/domain-errors"
	"juriscalc/pkg/platform/httputil"
	"juriscalc/pkg/requestcontext"
)

// Service is the scheduling contract the handler depends on.
type Service interface {
	GetSchedule(ctx context.Context) ([]scheduler.Entry, error)
	SetSchedule(ctx context.Context, dataType scheduler.DataType, frequency *scheduler.Frequency, enabled *bool) (*scheduler.Entry, error)
	Trigger(ctx context.Context, dataType scheduler.DataType) (*scheduler.UpdateResult, error)
	History(ctx context.Context, limit int) ([]scheduler.UpdateResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func New(service Service, opts ...Option) *Handler {
	h := &Handler{service: service, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the read-only routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/updates/schedule", h.getSchedule)
	r.Get("/updates/history", h.getHistory)
}

// RegisterAdminRoutes mounts the mutating routes; the caller wraps them with
// the admin middleware.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Patch("/updates/schedule/{dataType}", h.patchSchedule)
	r.Post("/updates/trigger/{dataType}", h.trigger)
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GetSchedule(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"schedule": entries})
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be an integer"))
			return
		}
		limit = parsed
	}
	results, err := h.service.History(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"history": results})
}

// PatchScheduleRequest updates frequency and/or enabled. Absent fields are
// left unchanged.
type PatchScheduleRequest struct {
	Frequency *string `json:"frequency,omitempty"`
	Enabled   *bool   `json:"enabled,omitempty"`

	frequency *scheduler.Frequency
}

func (r *PatchScheduleRequest) Validate() error {
	if r.Frequency == nil && r.Enabled == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one of frequency or enabled is required")
	}
	if r.Frequency != nil {
		freq, err := scheduler.ParseFrequency(*r.Frequency)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid frequency")
		}
		r.frequency = &freq
	}
	return nil
}

func (h *Handler) patchSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dataType, err := scheduler.ParseDataType(chi.URLParam(r, "dataType"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid data type"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[PatchScheduleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	entry, err := h.service.SetSchedule(ctx, dataType, req.frequency, req.Enabled)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dataType, err := scheduler.ParseDataType(chi.URLParam(r, "dataType"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid data type"))
		return
	}

	result, err := h.service.Trigger(ctx, dataType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
