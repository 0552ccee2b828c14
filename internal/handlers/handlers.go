package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"contactbook/internal/middleware"
	"contactbook/internal/models"
	"contactbook/internal/service"
)

type AuthAPI interface {
	Register(ctx context.Context, input service.RegisterInput) (models.User, error)
	Login(ctx context.Context, input service.LoginInput) (service.Tokens, error)
	RefreshSession(ctx context.Context, refreshToken string) (service.Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, password string) error
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

type ContactAPI interface {
	List(ctx context.Context, userID string, q service.ListQuery) (service.ContactPage, error)
	GetByID(ctx context.Context, contactID string, userID string) (models.Contact, error)
	Create(ctx context.Context, userID string, input service.CreateContactInput, photo *service.Photo) (models.Contact, error)
	Update(ctx context.Context, contactID string, userID string, patch models.ContactPatch, photo *service.Photo) (models.Contact, error)
	Delete(ctx context.Context, contactID string, userID string) error
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// CookieConfig shapes the refresh token cookie.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

type HandlerSet struct {
	log         zerolog.Logger
	environment string
	auth        AuthAPI
	contacts    ContactAPI
	cookie      CookieConfig
	checks      []HealthCheck
}

func NewHandlerSet(
	log zerolog.Logger,
	environment string,
	auth AuthAPI,
	contacts ContactAPI,
	cookie CookieConfig,
	checks ...HealthCheck,
) HandlerSet {
	return HandlerSet{
		log:         log,
		environment: environment,
		auth:        auth,
		contacts:    contacts,
		cookie:      cookie,
		checks:      checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)
	router.GET("/api-docs/openapi.yaml", h.APIDocs)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.POST("/send-reset-email", h.SendResetEmail)
		auth.POST("/reset-pwd", h.ResetPassword)
	}

	contacts := router.Group("/contacts")
	contacts.Use(middleware.Auth(h.auth))
	{
		contacts.GET("", h.ListContacts)
		contacts.POST("", h.CreateContact)

		byID := contacts.Group("/:contactId", middleware.ValidID("contactId"))
		byID.GET("", h.GetContact)
		byID.PATCH("", h.UpdateContact)
		byID.DELETE("", h.DeleteContact)
	}
}

// userID returns the id set by the auth middleware. Routes calling it are
// always mounted behind middleware.Auth.
func userID(c *gin.Context) string {
	id, _ := middleware.UserID(c.Request.Context())
	return id
}
