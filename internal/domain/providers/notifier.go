package providers

import (
	"context"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// AlertNotifier tells emergency contacts about an alert. It returns the
// number of contacts reached.
type AlertNotifier interface {
	NotifyContacts(ctx context.Context, alert *entities.EmergencyAlert, contacts []*entities.EmergencyContact) (int, error)
}
