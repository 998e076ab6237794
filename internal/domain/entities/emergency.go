package entities

import (
	"time"

	"github.com/google/uuid"
)

// AlertType is the kind of emergency a user triggered
type AlertType string

const (
	AlertTypeAmbulance AlertType = "ambulance"
	AlertTypeFamily    AlertType = "family"
	AlertTypeLocation  AlertType = "location"
)

// Valid reports whether t is one of the known alert types.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeAmbulance, AlertTypeFamily, AlertTypeLocation:
		return true
	}
	return false
}

// CompletionMessage is the user-facing message recorded when an alert completes.
func (t AlertType) CompletionMessage() string {
	switch t {
	case AlertTypeAmbulance:
		return "Ambulance has been called and is on the way."
	case AlertTypeFamily:
		return "Family members have been notified."
	case AlertTypeLocation:
		return "Location has been shared with emergency contacts."
	}
	return ""
}

// AlertStatus tracks an alert through pending -> completed
type AlertStatus string

const (
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusCompleted AlertStatus = "completed"
)

// EmergencyContact is a person to reach during an emergency
type EmergencyContact struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	PhoneNumber  string    `json:"phone" db:"phone_number"`
	Relationship string    `json:"relationship" db:"relationship"`
	IsPrimary    bool      `json:"is_primary" db:"is_primary"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// EmergencyAlert records one triggered emergency
type EmergencyAlert struct {
	ID        string      `json:"id" db:"id"`
	AlertType AlertType   `json:"alert_type" db:"alert_type"`
	Status    AlertStatus `json:"status" db:"status"`
	Location  string      `json:"location,omitempty" db:"location"`
	Message   string      `json:"message,omitempty" db:"message"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// AlertEvent is published on the event bus after an alert completes
type AlertEvent struct {
	ID        string      `json:"id"`
	AlertID   string      `json:"alert_id"`
	AlertType AlertType   `json:"alert_type"`
	Status    AlertStatus `json:"status"`
	Location  string      `json:"location,omitempty"`
	Message   string      `json:"message"`
	Notified  int         `json:"notified"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAlertEvent creates an event describing alert, stamped at
func NewAlertEvent(alert *EmergencyAlert, notified int, at time.Time) *AlertEvent {
	return &AlertEvent{
		ID:        uuid.NewString(),
		AlertID:   alert.ID,
		AlertType: alert.AlertType,
		Status:    alert.Status,
		Location:  alert.Location,
		Message:   alert.Message,
		Notified:  notified,
		Timestamp: at,
	}
}
