// Package handler exposes the child-support calculator over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"juriscalc/internal/childsupport"
	"juriscalc/pkg/platform/httputil"
	"juriscalc/pkg/requestcontext"
)

// Service is the calculation contract the handler depends on.
type Service interface {
	Calculate(ctx context.Context, input childsupport.CalculationInput) (*childsupport.Result, error)
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

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/calculations/child-support", h.calculate)
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CalculateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Calculate(ctx, req.Input())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
