package tax

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"juriscalc/internal/rules"
	"juriscalc/internal/tax/metrics"
	dErrors "juriscalc/pkg/domain-errors"
	"juriscalc/pkg/platform/audit"
	"juriscalc/pkg/platform/audit/publisher"
	"juriscalc/pkg/platform/sentinel"
	"juriscalc/pkg/requestcontext"
)

// RuleResolver yields the tax rule set for a key. Satisfied by the rule cache.
type RuleResolver interface {
	TaxRules(ctx context.Context, jurisdiction rules.Jurisdiction, year int) (*rules.TaxRuleSet, error)
}

type Service struct {
	resolver RuleResolver
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

func NewService(resolver RuleResolver, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		logger:   slog.Default(),
		tracer:   otel.Tracer("juriscalc/tax"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calculate produces a tax estimate for the input. Missing optional inputs
// lower confidence rather than failing; malformed input and unknown rule keys
// are rejected before any arithmetic.
func (s *Service) Calculate(ctx context.Context, input CalculationInput) (*CalculationResult, error) {
	ctx, span := s.tracer.Start(ctx, "tax.Calculate",
		trace.WithAttributes(
			attribute.String("jurisdiction", string(input.Jurisdiction)),
			attribute.Int("year", input.Year),
			attribute.String("filing_status", string(input.FilingStatus)),
		))
	defer span.End()

	start := time.Now()

	if err := validateInput(input); err != nil {
		s.metrics.IncrementCalculation(string(input.Jurisdiction), "validation_error")
		return nil, err
	}

	ruleSet, err := s.resolver.TaxRules(ctx, input.Jurisdiction, input.Year)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementCalculation(string(input.Jurisdiction), "rule_not_found")
			return nil, dErrors.Newf(dErrors.CodeRuleNotFound,
				"no tax rules for %s/%d", input.Jurisdiction, input.Year)
		}
		s.metrics.IncrementCalculation(string(input.Jurisdiction), "error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve tax rules")
	}

	if !ruleSet.SupportsFilingStatus(input.FilingStatus) {
		s.metrics.IncrementCalculation(string(input.Jurisdiction), "validation_error")
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"filing status %s is not supported by %s/%d", input.FilingStatus, input.Jurisdiction, input.Year)
	}

	result := compute(ruleSet, input)

	s.metrics.IncrementCalculation(string(input.Jurisdiction), "success")
	s.metrics.ObserveDuration(time.Since(start))

	s.logger.InfoContext(ctx, "tax calculation performed",
		slog.String("request_id", requestcontext.RequestID(ctx)),
		slog.String("jurisdiction", string(input.Jurisdiction)),
		slog.Int("year", input.Year),
		slog.String("filing_status", string(input.FilingStatus)),
		slog.String("confidence", string(result.Confidence)),
		slog.Int("rule_revision", result.RuleSetVersion.Revision))

	if s.audit != nil {
		err := s.audit.Emit(ctx, audit.Event{
			Action:    string(audit.EventTaxCalculated),
			Subject:   fmt.Sprintf("%s/%d", input.Jurisdiction, input.Year),
			Outcome:   string(result.Confidence) + "_confidence",
			Detail:    fmt.Sprintf("filing_status=%s rule_revision=%d", input.FilingStatus, result.RuleSetVersion.Revision),
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   requestcontext.CallerID(ctx),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "audit emit failed", slog.Any("error", err))
		}
	}

	return &result, nil
}

func validateInput(input CalculationInput) error {
	if input.Jurisdiction == "" {
		return dErrors.New(dErrors.CodeValidation, "jurisdiction is required")
	}
	if input.Year < 1900 || input.Year > 2200 {
		return dErrors.Newf(dErrors.CodeValidation, "unsupported tax year %d", input.Year)
	}
	if _, err := rules.ParseFilingStatus(string(input.FilingStatus)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid filing status")
	}
	for name, amount := range map[string]interface{ IsNegative() bool }{
		"gross_income":             input.GrossIncome,
		"self_employment_income":   input.SelfEmploymentIncome,
		"capital_gains":            input.CapitalGains,
		"retirement_contributions": input.RetirementContributions,
		"student_loan_interest":    input.StudentLoanInterest,
		"hsa_contributions":        input.HSAContributions,
		"child_care_costs":         input.ChildCareCosts,
	} {
		if amount.IsNegative() {
			return dErrors.Newf(dErrors.CodeValidation, "%s must not be negative", name)
		}
	}
	if input.ItemizedDeductions != nil && input.ItemizedDeductions.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "itemized_deductions must not be negative")
	}
	if input.QualifyingChildren < 0 || input.Dependents < 0 {
		return dErrors.New(dErrors.CodeValidation, "dependent counts must not be negative")
	}
	return nil
}
