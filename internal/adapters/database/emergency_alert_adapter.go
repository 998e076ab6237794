package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/repositories"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const alertsTable = "emergency_alerts"

// EmergencyAlertAdapter implements EmergencyAlertRepository in Postgres
type EmergencyAlertAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEmergencyAlertAdapter creates a new alert adapter
func NewEmergencyAlertAdapter(client *postgres.Client) repositories.EmergencyAlertRepository {
	return &EmergencyAlertAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts an alert
func (a *EmergencyAlertAdapter) Create(ctx context.Context, alert *entities.EmergencyAlert) error {
	if alert == nil {
		return apperrors.NewInternalError("alert is nil", fmt.Errorf("alert is nil"))
	}

	query, args, err := a.db.Insert(alertsTable).Rows(goqu.Record{
		"id":         alert.ID,
		"alert_type": string(alert.AlertType),
		"status":     string(alert.Status),
		"location":   alert.Location,
		"message":    alert.Message,
		"created_at": alert.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build alert insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create alert", err)
	}
	return nil
}

// UpdateStatus sets the status and message of an alert
func (a *EmergencyAlertAdapter) UpdateStatus(ctx context.Context, id string, status entities.AlertStatus, message string) error {
	query, args, err := a.db.Update(alertsTable).
		Set(goqu.Record{"status": string(status), "message": message}).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build alert update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update alert", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError("Alert not found")
	}
	return nil
}

