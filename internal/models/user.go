package models

import "time"

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session binds a user to the currently valid access/refresh pair. Only
// SHA-256 digests of the signed tokens are persisted.
type Session struct {
	ID                     string
	UserID                 string
	AccessTokenHash        []byte
	RefreshTokenHash       []byte
	AccessTokenValidUntil  time.Time
	RefreshTokenValidUntil time.Time
	CreatedAt              time.Time
}
