package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// EmergencyOperations is the emergency service surface used by the handler
type EmergencyOperations interface {
	TriggerAlert(ctx context.Context, in services.TriggerAlertInput) (*entities.EmergencyAlert, error)
	AddContact(ctx context.Context, in services.AddContactInput) (*entities.EmergencyContact, error)
	ListContacts(ctx context.Context) ([]*entities.EmergencyContact, error)
	DeleteContact(ctx context.Context, id string) error
}

// EmergencyHandler handles emergency alert and contact requests
type EmergencyHandler struct {
	emergency EmergencyOperations
}

// NewEmergencyHandler creates a new emergency handler
func NewEmergencyHandler(emergency EmergencyOperations) *EmergencyHandler {
	return &EmergencyHandler{emergency: emergency}
}

type contactDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Relationship string    `json:"relationship"`
	IsPrimary    bool      `json:"is_primary"`
	CreatedAt    time.Time `json:"created_at"`
}

func newContactDTO(c *entities.EmergencyContact) contactDTO {
	return contactDTO{
		ID:           c.ID,
		Name:         c.Name,
		Phone:        c.PhoneNumber,
		Relationship: c.Relationship,
		IsPrimary:    c.IsPrimary,
		CreatedAt:    c.CreatedAt,
	}
}

// TriggerEmergency handles POST /trigger-emergency/
func (h *EmergencyHandler) TriggerEmergency(w http.ResponseWriter, r *http.Request) {
	var in services.TriggerAlertInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}

	alert, err := h.emergency.TriggerAlert(r.Context(), in)
	if err != nil {
		handleSubmissionError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":   statusSuccess,
		"message":  alert.Message,
		"alert_id": alert.ID,
	})
}

// ListContacts handles GET /emergency-contacts/
func (h *EmergencyHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.emergency.ListContacts(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}

	dtos := make([]contactDTO, 0, len(contacts))
	for _, c := range contacts {
		dtos = append(dtos, newContactDTO(c))
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":   statusSuccess,
		"contacts": dtos,
	})
}

// AddContact handles POST /emergency-contacts/ and POST /emergency-contacts/add/
func (h *EmergencyHandler) AddContact(w http.ResponseWriter, r *http.Request) {
	var in services.AddContactInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleError(w, r, err)
		return
	}

	contact, err := h.emergency.AddContact(r.Context(), in)
	if err != nil {
		handleError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":  statusSuccess,
		"message": "Contact added successfully",
		"contact": newContactDTO(contact),
	})
}

// DeleteContact handles DELETE /emergency-contacts/{id}/ and its /delete/ alias
func (h *EmergencyHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.emergency.DeleteContact(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  statusSuccess,
		"message": "Contact deleted successfully",
	})
}
