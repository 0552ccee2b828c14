package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"contactbook/internal/apperr"
	"contactbook/internal/models"
)

const currentUserKey = "current_user"

var ErrMissingToken = apperr.Unauthorized("Authorization token is required")

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

type userIDKey struct{}

// Auth resolves the bearer token to a user and makes it available to the
// handlers through CurrentUser and UserID.
func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(authHeader, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			_ = c.Error(ErrMissingToken)
			c.Abort()
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), userIDKey{}, user.ID))

		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// UserID returns the authenticated user id carried by ctx.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}
