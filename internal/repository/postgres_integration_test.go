//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactbook/internal/config"
	"contactbook/internal/database"
	"contactbook/internal/ids"
	"contactbook/internal/models"
)

// Run with: CONTACTBOOK_TEST_POSTGRES_DSN=postgres://... go test -tags integration ./internal/repository/
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("CONTACTBOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CONTACTBOOK_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, config.PostgresConfig{DSN: dsn, MaxOpen: 4, MaxIdle: 1}, false)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

func createTestUser(t *testing.T, users *UserRepository) models.User {
	t.Helper()
	user := models.User{
		ID:           ids.New(),
		Name:         "Jo",
		Email:        ids.New() + "@example.com",
		PasswordHash: []byte("hash"),
	}
	require.NoError(t, users.Create(context.Background(), &user))
	t.Cleanup(func() {
		_, _ = users.db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, user.ID)
	})
	return user
}

func TestPostgres_SessionRotateIsSingleUse(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	users, sessions := NewUserRepository(pool), NewSessionRepository(pool)
	user := createTestUser(t, users)

	now := time.Now().UTC().Truncate(time.Microsecond)
	first := models.Session{
		ID:                     ids.New(),
		UserID:                 user.ID,
		AccessTokenHash:        []byte(ids.New()),
		RefreshTokenHash:       []byte(ids.New()),
		AccessTokenValidUntil:  now.Add(15 * time.Minute),
		RefreshTokenValidUntil: now.Add(time.Hour),
	}
	require.NoError(t, sessions.Replace(ctx, first))

	next := first
	next.AccessTokenHash = []byte(ids.New())
	next.RefreshTokenHash = []byte(ids.New())
	require.NoError(t, sessions.Rotate(ctx, first.RefreshTokenHash, now, next))

	assert.ErrorIs(t, sessions.Rotate(ctx, first.RefreshTokenHash, now, next), ErrSessionNotFound)
	assert.ErrorIs(t, sessions.Rotate(ctx, next.RefreshTokenHash, now.Add(2*time.Hour), first), ErrSessionNotFound)

	got, err := sessions.FindByAccessHash(ctx, next.AccessTokenHash)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)

	n, err := sessions.DeleteExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
	_, err = sessions.FindByAccessHash(ctx, next.AccessTokenHash)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPostgres_ContactListOrderAndPaging(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	users, contacts := NewUserRepository(pool), NewContactRepository(pool)
	owner := createTestUser(t, users)
	other := createTestUser(t, users)

	for _, name := range []string{"Cid", "Ann", "Bob", "Ann"} {
		_, err := contacts.Create(ctx, models.Contact{
			ID: ids.New(), UserID: owner.ID, Name: name, PhoneNumber: "123", ContactType: models.ContactTypeWork,
		})
		require.NoError(t, err)
	}
	_, err := contacts.Create(ctx, models.Contact{
		ID: ids.New(), UserID: other.ID, Name: "Aaron", PhoneNumber: "123", ContactType: models.ContactTypeHome,
	})
	require.NoError(t, err)

	var names []string
	seen := map[string]bool{}
	for offset := 0; offset < 4; offset += 2 {
		page, total, err := contacts.List(ctx, models.ContactListParams{
			UserID: owner.ID, Limit: 2, Offset: offset, SortBy: models.SortByName, SortOrder: models.SortAsc,
		})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		for _, c := range page {
			assert.False(t, seen[c.ID])
			seen[c.ID] = true
			names = append(names, c.Name)
		}
	}
	assert.Equal(t, []string{"Ann", "Ann", "Bob", "Cid"}, names)

	desc, _, err := contacts.List(ctx, models.ContactListParams{
		UserID: owner.ID, Limit: 1, SortBy: models.SortByName, SortOrder: models.SortDesc,
	})
	require.NoError(t, err)
	require.Len(t, desc, 1)
	assert.Equal(t, "Cid", desc[0].Name)
}

func TestPostgres_ContactUpdateReturnsPreviousPhoto(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	users, contacts := NewUserRepository(pool), NewContactRepository(pool)
	owner := createTestUser(t, users)
	other := createTestUser(t, users)

	oldURL := "http://cdn/old.png"
	created, err := contacts.Create(ctx, models.Contact{
		ID: ids.New(), UserID: owner.ID, Name: "Jo", PhoneNumber: "123",
		ContactType: models.ContactTypePersonal, PhotoURL: &oldURL,
	})
	require.NoError(t, err)

	newURL := "http://cdn/new.png"
	name := "Joanna"
	updated, previous, err := contacts.Update(ctx, created.ID, owner.ID, models.ContactPatch{Name: &name, PhotoURL: &newURL})
	require.NoError(t, err)
	assert.Equal(t, "Joanna", updated.Name)
	assert.Equal(t, "123", updated.PhoneNumber)
	require.NotNil(t, updated.PhotoURL)
	assert.Equal(t, newURL, *updated.PhotoURL)
	require.NotNil(t, previous)
	assert.Equal(t, oldURL, *previous)

	_, _, err = contacts.Update(ctx, created.ID, other.ID, models.ContactPatch{Name: &name})
	assert.ErrorIs(t, err, ErrContactNotFound)

	photo, err := contacts.Delete(ctx, created.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, photo)
	assert.Equal(t, newURL, *photo)

	_, err = contacts.GetByID(ctx, created.ID, owner.ID)
	assert.ErrorIs(t, err, ErrContactNotFound)
}
