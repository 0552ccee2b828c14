package service

import "contactbook/internal/apperr"

// Client-facing failures. Compare with errors.Is; apperr matches on kind and
// message, so wrapped copies still match.
var (
	ErrEmailInUse            = apperr.Conflict("Email in use")
	ErrInvalidCredentials    = apperr.Unauthorized("Invalid email or password")
	ErrInvalidRefreshToken   = apperr.Unauthorized("Invalid refresh token")
	ErrSessionNotFound       = apperr.Unauthorized("Session not found")
	ErrLogoutSessionNotFound = apperr.NotFound("Session not found")
	ErrAccessTokenExpired    = apperr.Unauthorized("Access token expired")
	ErrInvalidAccessToken    = apperr.Unauthorized("Invalid access token")
	ErrUserGone              = apperr.Unauthorized("User not found")
	ErrUserNotFound          = apperr.NotFound("User not found")
	ErrResetTokenInvalid     = apperr.Unauthorized("Token is expired or invalid.")
	ErrPasswordRequired      = apperr.InvalidInput("Password is required")
	ErrMailDelivery          = apperr.New(apperr.KindInternal, "Failed to send the email, please try again later.")

	ErrContactNotFound  = apperr.NotFound("Contact not found")
	ErrEmptyPatch       = apperr.InvalidInput("At least one field must be provided")
	ErrInvalidType      = apperr.InvalidInput("contactType must be one of: work, home, personal")
	ErrUnsupportedPhoto = apperr.InvalidInput("Unsupported file format. Only JPEG, JPG, and PNG are allowed.")
	ErrPhotoMismatch    = apperr.InvalidInput("Photo content does not match its declared type")
)
