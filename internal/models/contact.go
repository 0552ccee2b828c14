package models

import "time"

type ContactType string

const (
	ContactTypeWork     ContactType = "work"
	ContactTypeHome     ContactType = "home"
	ContactTypePersonal ContactType = "personal"
)

func (t ContactType) Valid() bool {
	switch t {
	case ContactTypeWork, ContactTypeHome, ContactTypePersonal:
		return true
	}
	return false
}

type Contact struct {
	ID          string
	UserID      string
	Name        string
	PhoneNumber string
	Email       string
	IsFavourite bool
	ContactType ContactType
	PhotoURL    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContactPatch carries a partial update; nil fields are left untouched.
type ContactPatch struct {
	Name        *string
	PhoneNumber *string
	Email       *string
	IsFavourite *bool
	ContactType *ContactType
	PhotoURL    *string
}

func (p ContactPatch) Empty() bool {
	return p.Name == nil &&
		p.PhoneNumber == nil &&
		p.Email == nil &&
		p.IsFavourite == nil &&
		p.ContactType == nil &&
		p.PhotoURL == nil
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ContactFilter narrows a listing; nil fields do not filter.
type ContactFilter struct {
	IsFavourite *bool
	ContactType *ContactType
}

// ContactListParams is a fully normalized listing request.
type ContactListParams struct {
	UserID    string
	Limit     int
	Offset    int
	SortBy    string
	SortOrder SortOrder
	Filter    ContactFilter
}

// Contact listing sort keys, as exposed on the API.
const (
	SortByName        = "name"
	SortByPhoneNumber = "phoneNumber"
	SortByEmail       = "email"
	SortByIsFavourite = "isFavourite"
	SortByContactType = "contactType"
	SortByCreatedAt   = "createdAt"
	SortByUpdatedAt   = "updatedAt"
)

func ValidContactSortField(field string) bool {
	switch field {
	case SortByName, SortByPhoneNumber, SortByEmail, SortByIsFavourite,
		SortByContactType, SortByCreatedAt, SortByUpdatedAt:
		return true
	}
	return false
}
