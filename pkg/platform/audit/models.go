package audit

import (
	"context"
	"time"

	id "usermgmt/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance
	// such as account creation and consent-bearing verification.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// credential changes, privilege changes, lifecycle changes, access denials.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ActorID tracks who performed the action when different from UserID,
	// e.g. an admin changing another account's status or role.
	ActorID string
}

type AuditEvent string

const (
	EventUserRegistered  AuditEvent = "user_registered"
	EventEmailVerified   AuditEvent = "email_verified"
	EventProfileUpdated  AuditEvent = "profile_updated"
	EventPasswordChanged AuditEvent = "password_changed"
	EventUserActivated   AuditEvent = "user_activated"
	EventUserDeactivated AuditEvent = "user_deactivated"
	EventRoleAssigned    AuditEvent = "role_assigned"
	EventAccessDenied    AuditEvent = "access_denied"
	EventWelcomeQueued   AuditEvent = "welcome_notification_queued"
	EventWelcomeFailed   AuditEvent = "welcome_notification_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserRegistered: CategoryCompliance,
	EventEmailVerified:  CategoryCompliance,

	EventPasswordChanged: CategorySecurity,
	EventUserActivated:   CategorySecurity,
	EventUserDeactivated: CategorySecurity,
	EventRoleAssigned:    CategorySecurity,
	EventAccessDenied:    CategorySecurity,

	EventProfileUpdated: CategoryOperations,
	EventWelcomeQueued:  CategoryOperations,
	EventWelcomeFailed:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
