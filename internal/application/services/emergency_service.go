package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/internal/domain/repositories"
	"github.com/eswasthya/portal/backend/internal/infrastructure/observability"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

// TriggerAlertInput is a request to raise an emergency alert
type TriggerAlertInput struct {
	Type     string `json:"type" validate:"required"`
	Location string `json:"location" validate:"max=255"`
	Message  string `json:"message"`
}

// AddContactInput is a request to add an emergency contact
type AddContactInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,max=20"`
	Relationship string `json:"relationship" validate:"required,max=50"`
	IsPrimary    bool   `json:"is_primary"`
}

// EmergencyService handles emergency alerts and contacts
type EmergencyService struct {
	contacts      repositories.EmergencyContactRepository
	alerts        repositories.EmergencyAlertRepository
	notifier      providers.AlertNotifier
	events        providers.EventBus
	defaultRegion string
	now           func() time.Time
}

// NewEmergencyService creates a new emergency service. notifier and events may be nil.
func NewEmergencyService(
	contacts repositories.EmergencyContactRepository,
	alerts repositories.EmergencyAlertRepository,
	notifier providers.AlertNotifier,
	events providers.EventBus,
	defaultRegion string,
) *EmergencyService {
	if defaultRegion == "" {
		defaultRegion = "IN"
	}
	return &EmergencyService{
		contacts:      contacts,
		alerts:        alerts,
		notifier:      notifier,
		events:        events,
		defaultRegion: defaultRegion,
		now:           time.Now,
	}
}

// WithClock replaces the clock that stamps alerts, contacts and events
func (s *EmergencyService) WithClock(now func() time.Time) *EmergencyService {
	s.now = now
	return s
}

// TriggerAlert records an alert and moves it to completed in the same request.
// Contact notification and event publishing never fail the alert.
func (s *EmergencyService) TriggerAlert(ctx context.Context, in TriggerAlertInput) (*entities.EmergencyAlert, error) {
	logger := observability.LoggerFromContext(ctx)

	alertType := entities.AlertType(strings.TrimSpace(in.Type))
	if !alertType.Valid() {
		return nil, apperrors.NewValidationError("Invalid alert type")
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	alert := &entities.EmergencyAlert{
		ID:        uuid.NewString(),
		AlertType: alertType,
		Status:    entities.AlertStatusPending,
		Location:  strings.TrimSpace(in.Location),
		Message:   in.Message,
		CreatedAt: s.now(),
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}

	userMessage := alert.Message
	alert.Message = alertType.CompletionMessage()
	alert.Status = entities.AlertStatusCompleted
	if err := s.alerts.UpdateStatus(ctx, alert.ID, alert.Status, alert.Message); err != nil {
		return nil, err
	}

	notified := 0
	if alertType == entities.AlertTypeFamily || alertType == entities.AlertTypeLocation {
		notified = s.notifyContacts(ctx, alert, userMessage)
	}

	if s.events != nil {
		event := entities.NewAlertEvent(alert, notified, s.now())
		if err := s.events.Publish(ctx, providers.EventChannelEmergencyAlerts, event); err != nil {
			logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert event")
		}
	}

	logger.Info().
		Str("alert_id", alert.ID).
		Str("alert_type", string(alert.AlertType)).
		Int("notified", notified).
		Msg("emergency alert completed")

	return alert, nil
}

func (s *EmergencyService) notifyContacts(ctx context.Context, alert *entities.EmergencyAlert, userMessage string) int {
	if s.notifier == nil {
		return 0
	}
	logger := observability.LoggerFromContext(ctx)

	contacts, err := s.contacts.List(ctx)
	if err != nil {
		logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("failed to load emergency contacts")
		return 0
	}
	if len(contacts) == 0 {
		return 0
	}

	// contacts see what the user wrote, not the completion text
	outgoing := *alert
	outgoing.Message = userMessage

	notified, err := s.notifier.NotifyContacts(ctx, &outgoing, contacts)
	if err != nil {
		logger.Warn().Err(err).Str("alert_id", alert.ID).Int("notified", notified).Msg("some emergency contacts were not notified")
	}
	return notified
}

// AddContact validates and stores a new emergency contact
func (s *EmergencyService) AddContact(ctx context.Context, in AddContactInput) (*entities.EmergencyContact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Relationship = strings.TrimSpace(in.Relationship)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	phone, err := normalizePhone(in.Phone, s.defaultRegion)
	if err != nil {
		return nil, err
	}

	contact := &entities.EmergencyContact{
		ID:           uuid.NewString(),
		Name:         in.Name,
		PhoneNumber:  phone,
		Relationship: in.Relationship,
		IsPrimary:    in.IsPrimary,
		CreatedAt:    s.now(),
	}
	if err := s.contacts.Create(ctx, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

// ListContacts returns contacts, primary first
func (s *EmergencyService) ListContacts(ctx context.Context) ([]*entities.EmergencyContact, error) {
	return s.contacts.List(ctx)
}

// DeleteContact removes a contact by id
func (s *EmergencyService) DeleteContact(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFoundError("Contact not found")
	}
	return s.contacts.Delete(ctx, id)
}
