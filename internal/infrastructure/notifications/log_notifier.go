package notifications

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
)

// LogNotifier records alert notifications in the log instead of sending them.
// It is used when no messaging provider is configured.
type LogNotifier struct{}

var _ providers.AlertNotifier = LogNotifier{}

// NotifyContacts logs one line per contact and reports all of them as notified
func (LogNotifier) NotifyContacts(ctx context.Context, alert *entities.EmergencyAlert, contacts []*entities.EmergencyContact) (int, error) {
	for _, c := range contacts {
		log.Info().
			Str("alert_id", alert.ID).
			Str("alert_type", string(alert.AlertType)).
			Str("contact_id", c.ID).
			Str("phone", c.PhoneNumber).
			Msg("emergency contact notification (delivery disabled)")
	}
	return len(contacts), nil
}
