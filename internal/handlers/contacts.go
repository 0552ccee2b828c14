package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"contactbook/internal/apperr"
	"contactbook/internal/models"
	"contactbook/internal/response"
	"contactbook/internal/service"
)

const photoField = "photo"

type createContactRequest struct {
	Name        string `json:"name" form:"name" binding:"required,max=30"`
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber" binding:"required,min=3,max=30"`
	Email       string `json:"email" form:"email" binding:"omitempty,email,max=30"`
	IsFavourite bool   `json:"isFavourite" form:"isFavourite"`
	ContactType string `json:"contactType" form:"contactType" binding:"omitempty,oneof=work home personal"`
}

type updateContactRequest struct {
	Name        *string `json:"name" form:"name" binding:"omitnil,min=1,max=30"`
	PhoneNumber *string `json:"phoneNumber" form:"phoneNumber" binding:"omitnil,min=3,max=30"`
	Email       *string `json:"email" form:"email" binding:"omitempty,email,max=30"`
	IsFavourite *bool   `json:"isFavourite" form:"isFavourite"`
	ContactType *string `json:"contactType" form:"contactType" binding:"omitnil,oneof=work home personal"`
}

func (r updateContactRequest) patch() models.ContactPatch {
	patch := models.ContactPatch{
		Name:        r.Name,
		PhoneNumber: r.PhoneNumber,
		Email:       r.Email,
		IsFavourite: r.IsFavourite,
	}
	if r.ContactType != nil {
		ct := models.ContactType(*r.ContactType)
		patch.ContactType = &ct
	}
	return patch
}

type contactResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phoneNumber"`
	Email       string    `json:"email"`
	IsFavourite bool      `json:"isFavourite"`
	ContactType string    `json:"contactType"`
	Photo       *string   `json:"photo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newContactResponse(c models.Contact) contactResponse {
	return contactResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
		IsFavourite: c.IsFavourite,
		ContactType: string(c.ContactType),
		Photo:       c.PhotoURL,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type contactPageResponse struct {
	Data            []contactResponse `json:"data"`
	Page            int               `json:"page"`
	PerPage         int               `json:"perPage"`
	TotalItems      int               `json:"totalItems"`
	TotalPages      int               `json:"totalPages"`
	HasPreviousPage bool              `json:"hasPreviousPage"`
	HasNextPage     bool              `json:"hasNextPage"`
}

func newContactPageResponse(p service.ContactPage) contactPageResponse {
	items := make([]contactResponse, 0, len(p.Items))
	for _, c := range p.Items {
		items = append(items, newContactResponse(c))
	}
	return contactPageResponse{
		Data:            items,
		Page:            p.Page,
		PerPage:         p.PerPage,
		TotalItems:      p.TotalItems,
		TotalPages:      p.TotalPages,
		HasPreviousPage: p.HasPreviousPage,
		HasNextPage:     p.HasNextPage,
	}
}

// parseListQuery reads pagination, sort and filter parameters. Malformed
// values are dropped and the service substitutes its defaults.
func parseListQuery(c *gin.Context) service.ListQuery {
	q := service.ListQuery{
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		q.Page = page
	}
	if perPage, err := strconv.Atoi(c.Query("perPage")); err == nil {
		q.PerPage = perPage
	}
	if fav, err := strconv.ParseBool(c.Query("isFavourite")); err == nil {
		q.IsFavourite = &fav
	}
	if ct := models.ContactType(c.Query("contactType")); ct.Valid() {
		q.ContactType = &ct
	}
	return q
}

// photoFromRequest returns the optional multipart photo. The returned closer
// is always safe to call.
func photoFromRequest(c *gin.Context) (*service.Photo, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return nil, noop, nil
	}

	fh, err := c.FormFile(photoField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, apperr.Wrap(apperr.KindInvalidInput, "Invalid photo upload", err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, noop, apperr.Internal(fmt.Errorf("open photo: %w", err))
	}

	photo := &service.Photo{
		File:   f,
		Size:   fh.Size,
		Header: http.Header(fh.Header),
	}
	return photo, func() { _ = f.Close() }, nil
}

func (h HandlerSet) ListContacts(c *gin.Context) {
	page, err := h.contacts.List(c.Request.Context(), userID(c), parseListQuery(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, "Successfully found contacts!", newContactPageResponse(page))
}

func (h HandlerSet) GetContact(c *gin.Context) {
	id := c.Param("contactId")
	contact, err := h.contacts.GetByID(c.Request.Context(), id, userID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, fmt.Sprintf("Successfully found contact with id %s!", id), newContactResponse(contact))
}

func (h HandlerSet) CreateContact(c *gin.Context) {
	var req createContactRequest
	if err := bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	photo, closePhoto, err := photoFromRequest(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer closePhoto()

	contact, err := h.contacts.Create(c.Request.Context(), userID(c), service.CreateContactInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		IsFavourite: req.IsFavourite,
		ContactType: models.ContactType(req.ContactType),
	}, photo)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, "Successfully created a contact!", newContactResponse(contact))
}

func (h HandlerSet) UpdateContact(c *gin.Context) {
	var req updateContactRequest
	if err := bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	photo, closePhoto, err := photoFromRequest(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer closePhoto()

	contact, err := h.contacts.Update(c.Request.Context(), c.Param("contactId"), userID(c), req.patch(), photo)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, "Successfully patched a contact!", newContactResponse(contact))
}

func (h HandlerSet) DeleteContact(c *gin.Context) {
	if err := h.contacts.Delete(c.Request.Context(), c.Param("contactId"), userID(c)); err != nil {
		_ = c.Error(err)
		return
	}

	response.NoContent(c)
}
