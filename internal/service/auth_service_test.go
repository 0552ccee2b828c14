package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactbook/internal/apperr"
	"contactbook/internal/mail"
	"contactbook/internal/repository"
	"contactbook/internal/security"
)

type authFixture struct {
	svc      *AuthService
	users    *memUsers
	sessions *memSessions
	mailer   *fakeMailer
	now      time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	f := &authFixture{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.sessions = newMemSessions()
	f.users = newMemUsers(f.sessions)
	f.mailer = &fakeMailer{}

	renderer, err := mail.NewRenderer()
	require.NoError(t, err)

	tokens := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		ResetSecret:   "reset",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    720 * time.Hour,
		ResetTTL:      15 * time.Minute,
	}).WithClock(clock)

	f.svc = NewAuthService(
		f.users,
		f.sessions,
		tokens,
		security.NewPasswordHasher(cheapParams),
		f.mailer,
		renderer,
		"https://app.example.com/",
		nopLogger(),
	).WithClock(clock)
	return f
}

func (f *authFixture) register(t *testing.T, email string, password string) string {
	t.Helper()
	user, err := f.svc.Register(context.Background(), RegisterInput{Name: "Jo", Email: email, Password: password})
	require.NoError(t, err)
	return user.ID
}

func TestAuthService_Register(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{Name: " Jo ", Email: " Jo@Example.com ", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "Jo", user.Name)
	assert.Equal(t, "jo@example.com", user.Email)
	assert.Len(t, user.ID, 27)
	assert.NotEqual(t, []byte("secret"), user.PasswordHash)

	_, err = f.svc.Register(ctx, RegisterInput{Name: "Other", Email: "jo@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrEmailInUse)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 1, f.users.count())
}

func TestAuthService_RegisterRejectsBlankPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Jo", Email: "jo@example.com", Password: "   "})
	assert.ErrorIs(t, err, ErrPasswordRequired)
	assert.Zero(t, f.users.count())
}

func TestAuthService_RegisterInsertRace(t *testing.T) {
	f := newAuthFixture(t)
	f.users.createErr = repository.ErrEmailTaken

	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Jo", Email: "jo@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "jo@example.com", "right")

	_, wrongPassword := f.svc.Login(context.Background(), LoginInput{Email: "jo@example.com", Password: "wrong"})
	_, unknownEmail := f.svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "right"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Zero(t, f.sessions.count())
}

func TestAuthService_LoginReplacesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "jo@example.com", "pw")

	first, err := f.svc.Login(ctx, LoginInput{Email: "JO@example.com", Password: "pw"})
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, LoginInput{Email: "jo@example.com", Password: "pw"})
	require.NoError(t, err)

	assert.Equal(t, 1, f.sessions.count())
	assert.Equal(t, f.now.Add(720*time.Hour), second.RefreshExpiresAt)

	_, err = f.svc.RefreshSession(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.Authenticate(ctx, first.AccessToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.Authenticate(ctx, second.AccessToken)
	assert.NoError(t, err)
}

func TestAuthService_RefreshIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "jo@example.com", "pw")

	login, err := f.svc.Login(ctx, LoginInput{Email: "jo@example.com", Password: "pw"})
	require.NoError(t, err)

	rotated, err := f.svc.RefreshSession(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.AccessToken, rotated.AccessToken)

	_, err = f.svc.RefreshSession(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	// the old access token died with the rotation
	_, err = f.svc.Authenticate(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.svc.RefreshSession(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthService_RefreshRejectsForeignTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "jo@example.com", "pw")

	login, err := f.svc.Login(ctx, LoginInput{Email: "jo@example.com", Password: "pw"})
	require.NoError(t, err)

	_, err = f.svc.RefreshSession(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = f.svc.RefreshSession(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "jo@example.com", "pw")

	login, err := f.svc.Login(ctx, LoginInput{Email: "jo@example.com", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.RefreshToken))
	assert.Zero(t, f.sessions.count())

	err = f.svc.Logout(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrLogoutSessionNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = f.svc.Logout(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_AuthenticateExpiry(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	userID := f.register(t, "jo@example.com", "pw")

	login, err := f.svc.Login(ctx, LoginInput{Email: "jo@example.com", Password: "pw"})
	require.NoError(t, err)

	user, err := f.svc.Authenticate(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)

	f.now = f.now.Add(16 * time.Minute)
	_, err = f.svc.Authenticate(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrAccessTokenExpired)

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func resetTokenFrom(t *testing.T, html string) string {
	t.Helper()
	m := regexp.MustCompile(`reset-password\?token=([^"&]+)`).FindStringSubmatch(html)
	require.Len(t, m, 2)
	token, err := url.QueryUnescape(m[1])
	require.NoError(t, err)
	return token
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.register(t, "jo@example.com", "old-pw")

	login, err := f.svc.Login(ctx, LoginInput{Email: "jo@example.com", Password: "old-pw"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "jo@example.com"))
	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, "jo@example.com", msg.To)
	assert.Contains(t, msg.HTML, "https://app.example.com/reset-password?token=")

	// requesting a reset leaves the session alone
	_, err = f.svc.Authenticate(ctx, login.AccessToken)
	require.NoError(t, err)

	token := resetTokenFrom(t, msg.HTML)
	require.NoError(t, f.svc.ResetPassword(ctx, token, "new-pw"))

	_, err = f.svc.Authenticate(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.RefreshSession(ctx, login.RefreshToken)
	assert.Error(t, err)

	_, err = f.svc.Login(ctx, LoginInput{Email: "jo@example.com", Password: "old-pw"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, LoginInput{Email: "jo@example.com", Password: "new-pw"})
	assert.NoError(t, err)
}

func TestAuthService_RequestPasswordResetFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	err := f.svc.RequestPasswordReset(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	f.register(t, "jo@example.com", "pw")
	f.mailer.err = errors.New("smtp: 421 service not available")

	err = f.svc.RequestPasswordReset(ctx, "jo@example.com")
	assert.ErrorIs(t, err, ErrMailDelivery)
	assert.Equal(t, "Failed to send the email, please try again later.", apperr.From(err).Message)
}

func TestAuthService_ResetPasswordValidation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "garbage", ""), ErrPasswordRequired)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "garbage", "pw"), ErrResetTokenInvalid)

	f.register(t, "jo@example.com", "pw")
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "jo@example.com"))
	token := resetTokenFrom(t, f.mailer.sent[0].HTML)

	f.now = f.now.Add(16 * time.Minute)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "new"), ErrResetTokenInvalid)
}
