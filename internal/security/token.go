package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"contactbook/internal/ids"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"
	audienceReset   = "password-reset"
)

// Claims is shared by every token the service mints. Subject always holds
// the user id; Email is only set on password-reset tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	ResetSecret   string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS512 JWTs. Each token kind has its own
// secret and audience, so one kind can never be replayed as another.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source used for issuing and validation.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

func (i *TokenIssuer) IssueAccess(userID string) (IssuedToken, error) {
	return i.issue(i.cfg.AccessSecret, audienceAccess, userID, "", i.cfg.AccessTTL)
}

func (i *TokenIssuer) IssueRefresh(userID string) (IssuedToken, error) {
	return i.issue(i.cfg.RefreshSecret, audienceRefresh, userID, "", i.cfg.RefreshTTL)
}

func (i *TokenIssuer) IssueReset(userID string, email string) (IssuedToken, error) {
	return i.issue(i.cfg.ResetSecret, audienceReset, userID, email, i.cfg.ResetTTL)
}

func (i *TokenIssuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, i.cfg.AccessSecret, audienceAccess)
}

func (i *TokenIssuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, i.cfg.RefreshSecret, audienceRefresh)
}

func (i *TokenIssuer) ParseReset(token string) (*Claims, error) {
	return i.parse(token, i.cfg.ResetSecret, audienceReset)
}

func (i *TokenIssuer) issue(secret string, audience string, userID string, email string, ttl time.Duration) (IssuedToken, error) {
	now := i.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			// jti keeps two tokens minted in the same second distinct
			ID: ids.New(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign jwt: %w", err)
	}
	return IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

func (i *TokenIssuer) parse(tokenStr string, secret string, audience string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// HashToken is the lookup key persisted for a token instead of the token
// itself.
func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
