package childsupport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"juriscalc/internal/childsupport/metrics"
	"juriscalc/internal/rules"
	dErrors "juriscalc/pkg/domain-errors"
	"juriscalc/pkg/platform/audit"
	"juriscalc/pkg/platform/audit/publisher"
	"juriscalc/pkg/platform/sentinel"
	"juriscalc/pkg/requestcontext"
)

// GuidelineResolver yields the guideline effective at asOf. Satisfied by the
// rule cache.
type GuidelineResolver interface {
	Guideline(ctx context.Context, jurisdiction rules.Jurisdiction, asOf time.Time) (*rules.ChildSupportGuideline, error)
}

type Service struct {
	resolver GuidelineResolver
	logger   *slog.Logger
	audit    *publisher.Publisher
	metrics  *metrics.Metrics
	tracer   trace.Tracer
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

func NewService(resolver GuidelineResolver, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		logger:   slog.Default(),
		tracer:   otel.Tracer("juriscalc/childsupport"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculate produces a support calculation under the guideline effective at
// the request time. The request time comes from the context so results are
// reproducible in tests.
func (s *Service) Calculate(ctx context.Context, input CalculationInput) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "childsupport.Calculate",
		trace.WithAttributes(
			attribute.String("jurisdiction", string(input.Jurisdiction)),
			attribute.String("calculation_type", string(input.Type)),
			attribute.Int("children", len(input.Children)),
		))
	defer span.End()

	start := time.Now()
	now := requestcontext.Now(ctx)

	if err := validateInput(input); err != nil {
		s.metrics.IncrementCalculation(string(input.Jurisdiction), "validation_error")
		return nil, err
	}

	guideline, err := s.resolver.Guideline(ctx, input.Jurisdiction, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementCalculation(string(input.Jurisdiction), "rule_not_found")
			return nil, dErrors.Newf(dErrors.CodeRuleNotFound,
				"no child-support guideline for %s effective %s",
				input.Jurisdiction, now.Format("2006-01-02"))
		}
		s.metrics.IncrementCalculation(string(input.Jurisdiction), "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve guideline")
	}

	result, err := compute(guideline, input, now)
	if err != nil {
		s.metrics.IncrementCalculation(string(input.Jurisdiction), "validation_error")
		return nil, err
	}

	s.metrics.IncrementCalculation(string(input.Jurisdiction), "success")
	s.metrics.ObserveDuration(time.Since(start))
	s.metrics.AddWarnings(len(result.Warnings))

	s.logger.InfoContext(ctx, "support calculation performed",
		slog.String("request_id", requestcontext.RequestID(ctx)),
		slog.String("jurisdiction", string(input.Jurisdiction)),
		slog.String("model", string(guideline.Model)),
		slog.String("paying_parent", string(result.PayingParent)),
		slog.Int("warnings", len(result.Warnings)),
		slog.Int("guideline_revision", guideline.Revision))

	if s.audit != nil {
		err := s.audit.Emit(ctx, audit.Event{
			Action:    string(audit.EventSupportCalculated),
			Subject:   string(input.Jurisdiction),
			Outcome:   "success",
			Detail:    "model=" + string(guideline.Model) + " effective=" + guideline.EffectiveDate.Format("2006-01-02"),
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   requestcontext.CallerID(ctx),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "audit emit failed", slog.Any("error", err))
		}
	}

	return result, nil
}

func validateInput(input CalculationInput) error {
	if input.Jurisdiction == "" {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction is required")
	}
	switch input.Type {
	case TypeInitial, TypeModification, TypeEnforcement:
	default:
		return dErrors.Newf(dErrors.CodeValidation, "unknown calculation type %q", input.Type)
	}
	if len(input.Children) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one child is required")
	}
	for label, parent := range map[ParentLabel]ParentData{Parent1: input.Parent1, Parent2: input.Parent2} {
		if parent.GrossMonthlyIncome.IsNegative() || parent.OtherIncome.IsNegative() {
			return dErrors.Newf(dErrors.CodeValidation, "%s: income must not be negative", label)
		}
		if parent.HealthInsuranceCost.IsNegative() || parent.ChildCareCost.IsNegative() ||
			parent.OtherSupportObligations.IsNegative() {
			return dErrors.Newf(dErrors.CodeValidation, "%s: costs must not be negative", label)
		}
		if parent.OvernightsPerYear < 0 || parent.OvernightsPerYear > 366 {
			return dErrors.Newf(dErrors.CodeValidation, "%s: overnights must be between 0 and 366", label)
		}
		for _, d := range parent.Deductions {
			if d.Amount.IsNegative() {
				return dErrors.Newf(dErrors.CodeValidation, "%s: deduction amounts must not be negative", label)
			}
		}
	}
	return nil
}
