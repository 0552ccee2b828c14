package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"contactbook/internal/apperr"
	"contactbook/internal/ids"
	"contactbook/internal/models"
	"contactbook/internal/repository"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100
)

type ContactStore interface {
	List(ctx context.Context, params models.ContactListParams) ([]models.Contact, int, error)
	GetByID(ctx context.Context, id string, userID string) (models.Contact, error)
	Create(ctx context.Context, contact models.Contact) (models.Contact, error)
	Update(ctx context.Context, id string, userID string, patch models.ContactPatch) (models.Contact, *string, error)
	Delete(ctx context.Context, id string, userID string) (*string, error)
}

type PhotoUploader interface {
	Upload(ctx context.Context, userID string, photo Photo) (string, error)
	Remove(ctx context.Context, url string)
}

type ContactService struct {
	contacts ContactStore
	photos   PhotoUploader
	log      zerolog.Logger
}

func NewContactService(contacts ContactStore, photos PhotoUploader, log zerolog.Logger) *ContactService {
	return &ContactService{
		contacts: contacts,
		photos:   photos,
		log:      log,
	}
}

// ListQuery is a listing request as parsed from the query string. Zero or
// unknown values fall back to defaults.
type ListQuery struct {
	Page        int
	PerPage     int
	SortBy      string
	SortOrder   string
	IsFavourite *bool
	ContactType *models.ContactType
}

type ContactPage struct {
	Items           []models.Contact
	Page            int
	PerPage         int
	TotalItems      int
	TotalPages      int
	HasPreviousPage bool
	HasNextPage     bool
}

func (q ListQuery) params(userID string) models.ContactListParams {
	page, perPage := q.Page, q.PerPage
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	sortBy := q.SortBy
	if !models.ValidContactSortField(sortBy) {
		sortBy = models.SortByName
	}
	order := models.SortAsc
	if strings.EqualFold(q.SortOrder, string(models.SortDesc)) {
		order = models.SortDesc
	}

	filter := models.ContactFilter{IsFavourite: q.IsFavourite}
	if q.ContactType != nil && q.ContactType.Valid() {
		filter.ContactType = q.ContactType
	}

	return models.ContactListParams{
		UserID:    userID,
		Limit:     perPage,
		Offset:    (page - 1) * perPage,
		SortBy:    sortBy,
		SortOrder: order,
		Filter:    filter,
	}
}

func (s *ContactService) List(ctx context.Context, userID string, q ListQuery) (ContactPage, error) {
	params := q.params(userID)

	items, total, err := s.contacts.List(ctx, params)
	if err != nil {
		return ContactPage{}, apperr.Internal(err)
	}

	page := params.Offset/params.Limit + 1
	totalPages := (total + params.Limit - 1) / params.Limit
	return ContactPage{
		Items:           items,
		Page:            page,
		PerPage:         params.Limit,
		TotalItems:      total,
		TotalPages:      totalPages,
		HasPreviousPage: page > 1,
		HasNextPage:     page < totalPages,
	}, nil
}

func (s *ContactService) GetByID(ctx context.Context, contactID string, userID string) (models.Contact, error) {
	contact, err := s.contacts.GetByID(ctx, contactID, userID)
	if err != nil {
		return models.Contact{}, mapContactErr(err)
	}
	return contact, nil
}

type CreateContactInput struct {
	Name        string
	PhoneNumber string
	Email       string
	IsFavourite bool
	ContactType models.ContactType
}

// Create stores a new contact for userID. The photo, when given, is uploaded
// first and removed again if the insert fails.
func (s *ContactService) Create(ctx context.Context, userID string, input CreateContactInput, photo *Photo) (models.Contact, error) {
	contact := models.Contact{
		ID:          ids.New(),
		UserID:      userID,
		Name:        strings.TrimSpace(input.Name),
		PhoneNumber: strings.TrimSpace(input.PhoneNumber),
		Email:       strings.TrimSpace(input.Email),
		IsFavourite: input.IsFavourite,
		ContactType: input.ContactType,
	}
	if contact.Name == "" || contact.PhoneNumber == "" {
		return models.Contact{}, apperr.InvalidInput("Name and phoneNumber are required")
	}
	if contact.ContactType == "" {
		contact.ContactType = models.ContactTypePersonal
	}
	if !contact.ContactType.Valid() {
		return models.Contact{}, ErrInvalidType
	}

	if photo != nil {
		url, err := s.photos.Upload(ctx, userID, *photo)
		if err != nil {
			return models.Contact{}, err
		}
		contact.PhotoURL = &url
	}

	created, err := s.contacts.Create(ctx, contact)
	if err != nil {
		if contact.PhotoURL != nil {
			s.photos.Remove(context.WithoutCancel(ctx), *contact.PhotoURL)
		}
		return models.Contact{}, apperr.Internal(err)
	}
	return created, nil
}

// Update applies patch to the user's contact. A new photo replaces the old
// one, which is then removed from storage.
func (s *ContactService) Update(ctx context.Context, contactID string, userID string, patch models.ContactPatch, photo *Photo) (models.Contact, error) {
	patch.PhotoURL = nil
	if patch.Empty() && photo == nil {
		return models.Contact{}, ErrEmptyPatch
	}
	if patch.ContactType != nil && !patch.ContactType.Valid() {
		return models.Contact{}, ErrInvalidType
	}

	if photo != nil {
		url, err := s.photos.Upload(ctx, userID, *photo)
		if err != nil {
			return models.Contact{}, err
		}
		patch.PhotoURL = &url
	}

	updated, previous, err := s.contacts.Update(ctx, contactID, userID, patch)
	if err != nil {
		if patch.PhotoURL != nil {
			s.photos.Remove(context.WithoutCancel(ctx), *patch.PhotoURL)
		}
		return models.Contact{}, mapContactErr(err)
	}

	if patch.PhotoURL != nil && previous != nil && *previous != *patch.PhotoURL {
		s.photos.Remove(context.WithoutCancel(ctx), *previous)
	}
	return updated, nil
}

func (s *ContactService) Delete(ctx context.Context, contactID string, userID string) error {
	photoURL, err := s.contacts.Delete(ctx, contactID, userID)
	if err != nil {
		return mapContactErr(err)
	}
	if photoURL != nil {
		s.photos.Remove(context.WithoutCancel(ctx), *photoURL)
	}
	return nil
}

func mapContactErr(err error) error {
	if errors.Is(err, repository.ErrContactNotFound) {
		return ErrContactNotFound
	}
	return apperr.Internal(err)
}
