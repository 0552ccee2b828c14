package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"contactbook/internal/apperr"
	"contactbook/internal/ids"
	"contactbook/internal/mail"
	"contactbook/internal/models"
	"contactbook/internal/repository"
	"contactbook/internal/security"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	ResetPassword(ctx context.Context, id string, email string, passwordHash []byte) error
}

type SessionStore interface {
	Replace(ctx context.Context, session models.Session) error
	Rotate(ctx context.Context, oldRefreshHash []byte, now time.Time, next models.Session) error
	FindByAccessHash(ctx context.Context, accessHash []byte) (models.Session, error)
	DeleteByRefreshHash(ctx context.Context, refreshHash []byte) error
}

type AuthService struct {
	users    UserStore
	sessions SessionStore
	tokens   *security.TokenIssuer
	hasher   *security.PasswordHasher
	mailer   mail.Sender
	renderer *mail.Renderer
	domain   string
	now      func() time.Time
	log      zerolog.Logger
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	tokens *security.TokenIssuer,
	hasher *security.PasswordHasher,
	mailer mail.Sender,
	renderer *mail.Renderer,
	domain string,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		mailer:   mailer,
		renderer: renderer,
		domain:   strings.TrimSuffix(domain, "/"),
		now:      time.Now,
		log:      log,
	}
}

// WithClock replaces the time source used for session expiry checks. The
// token issuer keeps its own clock.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Tokens is a freshly issued access/refresh pair.
type Tokens struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if input.Name == "" || input.Email == "" {
		return models.User{}, apperr.InvalidInput("Name and email are required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return models.User{}, ErrPasswordRequired
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return models.User{}, ErrEmailInUse
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, apperr.Internal(err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.User{}, apperr.Internal(err)
	}

	user := models.User{
		ID:           ids.New(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: passwordHash,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.User{}, ErrEmailInUse
		}
		return models.User{}, apperr.Internal(err)
	}
	return user, nil
}

type LoginInput struct {
	Email    string
	Password string
}

// Login verifies the credentials and replaces the user's session with a new
// token pair. Unknown email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (Tokens, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Tokens{}, ErrInvalidCredentials
		}
		return Tokens{}, apperr.Internal(err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return Tokens{}, ErrInvalidCredentials
	}
	if !ok {
		return Tokens{}, ErrInvalidCredentials
	}

	tokens, session, err := s.issuePair(user.ID)
	if err != nil {
		return Tokens{}, apperr.Internal(err)
	}
	if err := s.sessions.Replace(ctx, session); err != nil {
		return Tokens{}, apperr.Internal(err)
	}
	return tokens, nil
}

// RefreshSession trades a live refresh token for a new pair. The old pair
// stops working in the same statement, so a refresh token is single use.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (Tokens, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return Tokens{}, ErrInvalidRefreshToken
	}

	tokens, next, err := s.issuePair(claims.UserID())
	if err != nil {
		return Tokens{}, apperr.Internal(err)
	}

	if err := s.sessions.Rotate(ctx, security.HashToken(refreshToken), s.now(), next); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return Tokens{}, ErrSessionNotFound
		}
		return Tokens{}, apperr.Internal(err)
	}
	return tokens, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if _, err := s.tokens.ParseRefresh(refreshToken); err != nil {
		return ErrInvalidRefreshToken
	}

	if err := s.sessions.DeleteByRefreshHash(ctx, security.HashToken(refreshToken)); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrLogoutSessionNotFound
		}
		return apperr.Internal(err)
	}
	return nil
}

// RequestPasswordReset mails a short-lived reset link to the account owner.
// Sessions are left alone until the reset actually happens.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return apperr.Internal(err)
	}

	token, err := s.tokens.IssueReset(user.ID, user.Email)
	if err != nil {
		return apperr.Internal(err)
	}

	link := s.domain + "/reset-password?token=" + url.QueryEscape(token.Value)
	html, err := s.renderer.Render(mail.ResetPasswordTemplate, mail.ResetPasswordData{
		Name: user.Name,
		Link: link,
	})
	if err != nil {
		return apperr.Internal(err)
	}

	if err := s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Reset your password",
		HTML:    html,
	}); err != nil {
		return apperr.Wrap(apperr.KindInternal, ErrMailDelivery.Message, err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset email sent")
	return nil
}

// ResetPassword sets a new password for the user named by a reset token and
// ends every session that user holds.
func (s *AuthService) ResetPassword(ctx context.Context, token string, password string) error {
	if strings.TrimSpace(password) == "" {
		return ErrPasswordRequired
	}

	claims, err := s.tokens.ParseReset(token)
	if err != nil || claims.Email == "" {
		return ErrResetTokenInvalid
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return apperr.Internal(err)
	}

	if err := s.users.ResetPassword(ctx, claims.UserID(), claims.Email, passwordHash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return apperr.Internal(err)
	}
	return nil
}

// Authenticate resolves an access token to its user. The token must verify,
// belong to the user's current session and be within the session's access
// window.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return models.User{}, ErrAccessTokenExpired
		}
		return models.User{}, ErrInvalidAccessToken
	}

	session, err := s.sessions.FindByAccessHash(ctx, security.HashToken(accessToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.User{}, ErrSessionNotFound
		}
		return models.User{}, apperr.Internal(err)
	}
	if session.UserID != claims.UserID() {
		return models.User{}, ErrInvalidAccessToken
	}
	if !s.now().Before(session.AccessTokenValidUntil) {
		return models.User{}, ErrAccessTokenExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserGone
		}
		return models.User{}, apperr.Internal(err)
	}
	return user, nil
}

func (s *AuthService) issuePair(userID string) (Tokens, models.Session, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return Tokens{}, models.Session{}, err
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return Tokens{}, models.Session{}, err
	}

	session := models.Session{
		ID:                     ids.New(),
		UserID:                 userID,
		AccessTokenHash:        security.HashToken(access.Value),
		RefreshTokenHash:       security.HashToken(refresh.Value),
		AccessTokenValidUntil:  access.ExpiresAt,
		RefreshTokenValidUntil: refresh.ExpiresAt,
	}
	return Tokens{
		AccessToken:      access.Value,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, session, nil
}
