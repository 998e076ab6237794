package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/providers"
	"github.com/eswasthya/portal/backend/pkg/config"
)

// WhatsAppCloudSender sends alert messages through the WhatsApp Cloud API
type WhatsAppCloudSender struct {
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
	baseURL       string
}

var _ providers.AlertNotifier = (*WhatsAppCloudSender)(nil)

// NewWhatsAppCloudSender creates a sender from the notification settings
func NewWhatsAppCloudSender(cfg *config.NotificationsConfig) (*WhatsAppCloudSender, error) {
	if cfg.WhatsAppAccessToken == "" || cfg.WhatsAppPhoneNumberID == "" {
		return nil, fmt.Errorf("WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID must be set")
	}
	baseURL := strings.TrimRight(cfg.WhatsAppBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v18.0"
	}

	return &WhatsAppCloudSender{
		accessToken:   cfg.WhatsAppAccessToken,
		phoneNumberID: cfg.WhatsAppPhoneNumberID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: baseURL,
	}, nil
}

// WhatsAppTextMessage represents a text message
type WhatsAppTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

// WhatsAppResponse represents the API response
type WhatsAppResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// NotifyContacts texts every contact about alert. A failure for one contact
// does not stop the others; the joined error lists every failure.
func (w *WhatsAppCloudSender) NotifyContacts(ctx context.Context, alert *entities.EmergencyAlert, contacts []*entities.EmergencyContact) (int, error) {
	body := AlertText(alert)

	sent := 0
	var errs []error
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		id, err := w.SendText(ctx, c.PhoneNumber, body)
		if err != nil {
			errs = append(errs, fmt.Errorf("contact %s: %w", c.ID, err))
			continue
		}
		log.Debug().Str("alert_id", alert.ID).Str("contact_id", c.ID).Str("message_id", id).Msg("alert message sent")
		sent++
	}
	return sent, errors.Join(errs...)
}

// SendText sends a text message and returns its message id
func (w *WhatsAppCloudSender) SendText(ctx context.Context, to, body string) (string, error) {
	message := WhatsAppTextMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		// the API wants the number without the leading plus
		To:   strings.TrimPrefix(to, "+"),
		Type: "text",
	}
	message.Text.PreviewURL = true
	message.Text.Body = body

	return w.sendMessage(ctx, message)
}

// sendMessage sends a message to WhatsApp Cloud API
func (w *WhatsAppCloudSender) sendMessage(ctx context.Context, message interface{}) (string, error) {
	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)

	jsonData, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("WhatsApp API error (status %d): %s", resp.StatusCode, string(body))
	}

	var whatsappResp WhatsAppResponse
	if err := json.Unmarshal(body, &whatsappResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(whatsappResp.Messages) > 0 {
		return whatsappResp.Messages[0].ID, nil
	}

	return "", fmt.Errorf("no message ID in response")
}

// AlertText is the message contacts receive for alert
func AlertText(alert *entities.EmergencyAlert) string {
	var b strings.Builder
	switch alert.AlertType {
	case entities.AlertTypeLocation:
		b.WriteString("EMERGENCY: your contact has shared their location with you.")
	default:
		b.WriteString("EMERGENCY: your contact has triggered an emergency alert and needs help.")
	}
	if alert.Location != "" {
		b.WriteString("\nLocation: ")
		b.WriteString(alert.Location)
	}
	if alert.Message != "" && alert.Message != alert.AlertType.CompletionMessage() {
		b.WriteString("\nMessage: ")
		b.WriteString(alert.Message)
	}
	return b.String()
}
