package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"

	"github.com/eswasthya/portal/backend/internal/domain/entities"
	"github.com/eswasthya/portal/backend/internal/domain/repositories"
	"github.com/eswasthya/portal/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

const contactsTable = "emergency_contacts"

var contactColumns = []interface{}{"id", "name", "phone_number", "relationship", "is_primary", "created_at"}

// EmergencyContactAdapter implements EmergencyContactRepository in Postgres
type EmergencyContactAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEmergencyContactAdapter creates a new contact adapter
func NewEmergencyContactAdapter(client *postgres.Client) repositories.EmergencyContactRepository {
	return &EmergencyContactAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a contact. Inserting a primary contact demotes the current
// primary in the same transaction.
func (a *EmergencyContactAdapter) Create(ctx context.Context, contact *entities.EmergencyContact) error {
	if contact == nil {
		return apperrors.NewInternalError("contact is nil", fmt.Errorf("contact is nil"))
	}

	insert, args, err := a.db.Insert(contactsTable).Rows(goqu.Record{
		"id":           contact.ID,
		"name":         contact.Name,
		"phone_number": contact.PhoneNumber,
		"relationship": contact.Relationship,
		"is_primary":   contact.IsPrimary,
		"created_at":   contact.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build contact insert query", err)
	}

	if !contact.IsPrimary {
		if _, err := a.client.DB().ExecContext(ctx, insert, args...); err != nil {
			return apperrors.NewInternalError("failed to create contact", err)
		}
		return nil
	}

	demote, demoteArgs, err := a.db.Update(contactsTable).
		Set(goqu.Record{"is_primary": false}).
		Where(goqu.C("is_primary").IsTrue()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build contact update query", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Warn().Err(err).Msg("contact transaction rollback failed")
		}
	}()

	if _, err := tx.ExecContext(ctx, demote, demoteArgs...); err != nil {
		return apperrors.NewInternalError("failed to demote primary contact", err)
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		// a concurrent primary insert won the single-primary index
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("Another primary contact was added at the same time")
		}
		return apperrors.NewInternalError("failed to create contact", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit contact", err)
	}
	return nil
}

// List returns every contact, primary first then oldest first
func (a *EmergencyContactAdapter) List(ctx context.Context) ([]*entities.EmergencyContact, error) {
	query, args, err := a.db.From(contactsTable).
		Select(contactColumns...).
		Order(goqu.C("is_primary").Desc(), goqu.C("created_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build contact list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list contacts", err)
	}
	defer rows.Close()

	contacts := make([]*entities.EmergencyContact, 0)
	for rows.Next() {
		c := &entities.EmergencyContact{}
		if err := rows.Scan(&c.ID, &c.Name, &c.PhoneNumber, &c.Relationship, &c.IsPrimary, &c.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan contact", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to list contacts", err)
	}
	return contacts, nil
}

// Delete removes a contact
func (a *EmergencyContactAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(contactsTable).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build contact delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete contact", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to delete contact", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("Contact not found")
	}
	return nil
}
