package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"contactbook/internal/models"
)

var ErrContactNotFound = errors.New("contact not found")

// API sort keys to columns. Only values from this map are ever spliced into
// SQL.
var contactSortColumns = map[string]string{
	models.SortByName:        "name",
	models.SortByPhoneNumber: "phone_number",
	models.SortByEmail:       "email",
	models.SortByIsFavourite: "is_favourite",
	models.SortByContactType: "contact_type",
	models.SortByCreatedAt:   "created_at",
	models.SortByUpdatedAt:   "updated_at",
}

const contactColumns = `id, user_id, name, phone_number, email, is_favourite, contact_type, photo_url, created_at, updated_at`

type ContactRepository struct {
	db DB
}

func NewContactRepository(db DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// List returns one page of the user's contacts and the number of contacts
// matching the filter across all pages.
func (r *ContactRepository) List(ctx context.Context, params models.ContactListParams) ([]models.Contact, int, error) {
	where, args := contactFilter(params)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM contacts WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	column, ok := contactSortColumns[params.SortBy]
	if !ok {
		column = "name"
	}
	direction := "ASC"
	if params.SortOrder == models.SortDesc {
		direction = "DESC"
	}

	// id breaks ties so consecutive pages never overlap
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE ` + where +
		` ORDER BY ` + column + ` ` + direction + `, id ` + direction +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]models.Contact, 0, params.Limit)
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, int(total), nil
}

func contactFilter(params models.ContactListParams) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{params.UserID}

	if params.Filter.IsFavourite != nil {
		args = append(args, *params.Filter.IsFavourite)
		conds = append(conds, "is_favourite = $"+strconv.Itoa(len(args)))
	}
	if params.Filter.ContactType != nil {
		args = append(args, string(*params.Filter.ContactType))
		conds = append(conds, "contact_type = $"+strconv.Itoa(len(args)))
	}
	return strings.Join(conds, " AND "), args
}

func (r *ContactRepository) GetByID(ctx context.Context, id string, userID string) (models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1 AND user_id = $2`

	contact, err := scanContact(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Contact{}, ErrContactNotFound
		}
		return models.Contact{}, fmt.Errorf("select contact: %w", err)
	}
	return contact, nil
}

func (r *ContactRepository) Create(ctx context.Context, contact models.Contact) (models.Contact, error) {
	query := `
		INSERT INTO contacts (
			id, user_id, name, phone_number, email, is_favourite, contact_type, photo_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + contactColumns

	created, err := scanContact(r.db.QueryRow(ctx, query,
		contact.ID,
		contact.UserID,
		contact.Name,
		contact.PhoneNumber,
		contact.Email,
		contact.IsFavourite,
		string(contact.ContactType),
		contact.PhotoURL,
	))
	if err != nil {
		return models.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return created, nil
}

// Update applies the non-nil fields of patch to the user's contact and
// returns the stored row plus the photo url it held before the update.
func (r *ContactRepository) Update(ctx context.Context, id string, userID string, patch models.ContactPatch) (models.Contact, *string, error) {
	query := `
		WITH previous AS (
			SELECT photo_url FROM contacts WHERE id = $1 AND user_id = $2 FOR UPDATE
		)
		UPDATE contacts SET
			name = COALESCE($3, name),
			phone_number = COALESCE($4, phone_number),
			email = COALESCE($5, email),
			is_favourite = COALESCE($6, is_favourite),
			contact_type = COALESCE($7, contact_type),
			photo_url = COALESCE($8, contacts.photo_url),
			updated_at = NOW()
		FROM previous
		WHERE id = $1 AND user_id = $2
		RETURNING ` + qualified("contacts", contactColumns) + `, previous.photo_url`

	var contactType *string
	if patch.ContactType != nil {
		s := string(*patch.ContactType)
		contactType = &s
	}

	var (
		contact  models.Contact
		kind     string
		previous *string
	)
	err := r.db.QueryRow(ctx, query,
		id,
		userID,
		patch.Name,
		patch.PhoneNumber,
		patch.Email,
		patch.IsFavourite,
		contactType,
		patch.PhotoURL,
	).Scan(
		&contact.ID,
		&contact.UserID,
		&contact.Name,
		&contact.PhoneNumber,
		&contact.Email,
		&contact.IsFavourite,
		&kind,
		&contact.PhotoURL,
		&contact.CreatedAt,
		&contact.UpdatedAt,
		&previous,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Contact{}, nil, ErrContactNotFound
		}
		return models.Contact{}, nil, fmt.Errorf("update contact: %w", err)
	}
	contact.ContactType = models.ContactType(kind)
	return contact, previous, nil
}

// Delete removes the user's contact and returns the photo url it held.
func (r *ContactRepository) Delete(ctx context.Context, id string, userID string) (*string, error) {
	const query = `DELETE FROM contacts WHERE id = $1 AND user_id = $2 RETURNING photo_url`

	var photoURL *string
	if err := r.db.QueryRow(ctx, query, id, userID).Scan(&photoURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("delete contact: %w", err)
	}
	return photoURL, nil
}

func scanContact(row pgx.Row) (models.Contact, error) {
	var (
		contact models.Contact
		kind    string
	)
	if err := row.Scan(
		&contact.ID,
		&contact.UserID,
		&contact.Name,
		&contact.PhoneNumber,
		&contact.Email,
		&contact.IsFavourite,
		&kind,
		&contact.PhotoURL,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	); err != nil {
		return models.Contact{}, err
	}
	contact.ContactType = models.ContactType(kind)
	return contact, nil
}

func qualified(table string, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = table + "." + p
	}
	return strings.Join(parts, ", ")
}
