package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"contactbook/internal/mail"
	"contactbook/internal/models"
	"contactbook/internal/repository"
	"contactbook/internal/security"
)

var cheapParams = security.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type memUsers struct {
	mu        sync.Mutex
	byID      map[string]models.User
	sessions  *memSessions
	createErr error
}

func newMemUsers(sessions *memSessions) *memUsers {
	return &memUsers{byID: map[string]models.User{}, sessions: sessions}
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.byID {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = *user
	return nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) ResetPassword(_ context.Context, id string, email string, passwordHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.Email != email {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	m.byID[id] = u
	m.sessions.deleteUser(id)
	return nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// memSessions keeps one session per user, keyed by user id.
type memSessions struct {
	mu     sync.Mutex
	byUser map[string]models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{byUser: map[string]models.Session{}}
}

func (m *memSessions) Replace(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[session.UserID] = session
	return nil
}

func (m *memSessions) Rotate(_ context.Context, oldRefreshHash []byte, now time.Time, next models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[next.UserID]
	if !ok || !bytes.Equal(s.RefreshTokenHash, oldRefreshHash) || !s.RefreshTokenValidUntil.After(now) {
		return repository.ErrSessionNotFound
	}
	s.AccessTokenHash = next.AccessTokenHash
	s.RefreshTokenHash = next.RefreshTokenHash
	s.AccessTokenValidUntil = next.AccessTokenValidUntil
	s.RefreshTokenValidUntil = next.RefreshTokenValidUntil
	m.byUser[next.UserID] = s
	return nil
}

func (m *memSessions) FindByAccessHash(_ context.Context, accessHash []byte) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byUser {
		if bytes.Equal(s.AccessTokenHash, accessHash) {
			return s, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (m *memSessions) DeleteByRefreshHash(_ context.Context, refreshHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, s := range m.byUser {
		if bytes.Equal(s.RefreshTokenHash, refreshHash) {
			delete(m.byUser, userID)
			return nil
		}
	}
	return repository.ErrSessionNotFound
}

func (m *memSessions) deleteUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser, userID)
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser)
}

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type memContacts struct {
	mu        sync.Mutex
	rows      map[string]models.Contact
	createErr error
}

func newMemContacts() *memContacts {
	return &memContacts{rows: map[string]models.Contact{}}
}

func (m *memContacts) List(_ context.Context, p models.ContactListParams) ([]models.Contact, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.Contact
	for _, c := range m.rows {
		if c.UserID != p.UserID {
			continue
		}
		if p.Filter.IsFavourite != nil && c.IsFavourite != *p.Filter.IsFavourite {
			continue
		}
		if p.Filter.ContactType != nil && c.ContactType != *p.Filter.ContactType {
			continue
		}
		matched = append(matched, c)
	}

	key := func(c models.Contact) string {
		switch p.SortBy {
		case models.SortByPhoneNumber:
			return c.PhoneNumber
		case models.SortByEmail:
			return c.Email
		case models.SortByContactType:
			return string(c.ContactType)
		default:
			return c.Name
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := key(matched[i])+"\x00"+matched[i].ID, key(matched[j])+"\x00"+matched[j].ID
		if p.SortOrder == models.SortDesc {
			return a > b
		}
		return a < b
	})

	total := len(matched)
	if p.Offset >= total {
		return []models.Contact{}, total, nil
	}
	end := p.Offset + p.Limit
	if end > total {
		end = total
	}
	return matched[p.Offset:end], total, nil
}

func (m *memContacts) GetByID(_ context.Context, id string, userID string) (models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.UserID != userID {
		return models.Contact{}, repository.ErrContactNotFound
	}
	return c, nil
}

func (m *memContacts) Create(_ context.Context, contact models.Contact) (models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return models.Contact{}, m.createErr
	}
	contact.CreatedAt = time.Now()
	contact.UpdatedAt = contact.CreatedAt
	m.rows[contact.ID] = contact
	return contact, nil
}

func (m *memContacts) Update(_ context.Context, id string, userID string, patch models.ContactPatch) (models.Contact, *string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.UserID != userID {
		return models.Contact{}, nil, repository.ErrContactNotFound
	}
	previous := c.PhotoURL
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.PhoneNumber != nil {
		c.PhoneNumber = *patch.PhoneNumber
	}
	if patch.Email != nil {
		c.Email = *patch.Email
	}
	if patch.IsFavourite != nil {
		c.IsFavourite = *patch.IsFavourite
	}
	if patch.ContactType != nil {
		c.ContactType = *patch.ContactType
	}
	if patch.PhotoURL != nil {
		c.PhotoURL = patch.PhotoURL
	}
	c.UpdatedAt = time.Now()
	m.rows[id] = c
	return c, previous, nil
}

func (m *memContacts) Delete(_ context.Context, id string, userID string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrContactNotFound
	}
	delete(m.rows, id)
	return c.PhotoURL, nil
}

// memPhotoStore implements storage.PhotoStore in memory.
type memPhotoStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	putErr    error
	deleteErr error
}

func newMemPhotoStore() *memPhotoStore {
	return &memPhotoStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memPhotoStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "mem://" + key
	m.objects[url] = data
	m.types[url] = contentType
	return url, nil
}

func (m *memPhotoStore) Delete(_ context.Context, url string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !strings.HasPrefix(url, "mem://") {
		return errors.New("foreign url")
	}
	delete(m.objects, url)
	return nil
}

func (m *memPhotoStore) has(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[url]
	return ok
}

func (m *memPhotoStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
