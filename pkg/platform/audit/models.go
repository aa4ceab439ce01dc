package audit

import "time"

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance. Calculation
	// outcomes fall here: a support or tax estimate shown to a user must be
	// reproducible, so the rule-set version that produced it is recorded.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: update runs, schedule changes, cache invalidations.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Subject   string // entity involved: jurisdiction/year key, data type, ...
	Action    string // the action taken (e.g. "update_run_completed")
	Outcome   string // result of the action (e.g. "success", "high_confidence")
	Detail    string // free-form context (rule-set version, record counts)
	RequestID string // correlation ID from the HTTP request context
	ActorID   string // caller subject for manual actions, empty for scheduled
}

type AuditEvent string

const (
	EventTaxCalculated     AuditEvent = "tax_calculation_performed"
	EventSupportCalculated AuditEvent = "support_calculation_performed"
	EventUpdateRunStarted  AuditEvent = "update_run_started"
	EventUpdateRunDone     AuditEvent = "update_run_completed"
	EventScheduleChanged   AuditEvent = "schedule_changed"
	EventCacheCleared      AuditEvent = "cache_cleared"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventTaxCalculated:     CategoryCompliance,
	EventSupportCalculated: CategoryCompliance,
	EventUpdateRunStarted:  CategoryOperations,
	EventUpdateRunDone:     CategoryOperations,
	EventScheduleChanged:   CategoryOperations,
	EventCacheCleared:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
