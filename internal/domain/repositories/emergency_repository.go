package repositories

import (
	"context"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// EmergencyContactRepository defines persistence for emergency contacts
type EmergencyContactRepository interface {
	// Create inserts the contact; a primary contact demotes any existing primary
	Create(ctx context.Context, contact *entities.EmergencyContact) error
	List(ctx context.Context) ([]*entities.EmergencyContact, error)
	Delete(ctx context.Context, id string) error
}

// EmergencyAlertRepository defines persistence for emergency alerts
type EmergencyAlertRepository interface {
	Create(ctx context.Context, alert *entities.EmergencyAlert) error
	UpdateStatus(ctx context.Context, id string, status entities.AlertStatus, message string) error
}
