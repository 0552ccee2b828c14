package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"contactbook/internal/apperr"
	"contactbook/internal/models"
	"contactbook/internal/response"
	"contactbook/internal/service"
)

const refreshCookie = "refreshToken"

var errNoRefreshToken = apperr.Unauthorized("No refresh token provided")

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type resetEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, "Successfully registered a user!", newUserResponse(user))
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	tokens, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setRefreshCookie(c, tokens.RefreshToken)
	response.OK(c, "Successfully logged in an user!", accessTokenResponse{AccessToken: tokens.AccessToken})
}

func (h HandlerSet) Refresh(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		_ = c.Error(errNoRefreshToken)
		return
	}

	tokens, err := h.auth.RefreshSession(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setRefreshCookie(c, tokens.RefreshToken)
	response.OK(c, "Successfully refreshed a session!", accessTokenResponse{AccessToken: tokens.AccessToken})
}

func (h HandlerSet) Logout(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		_ = c.Error(errNoRefreshToken)
		return
	}

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		_ = c.Error(err)
		return
	}

	h.clearRefreshCookie(c)
	response.NoContent(c)
}

func (h HandlerSet) SendResetEmail(c *gin.Context) {
	var req resetEmailRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, "Reset password email has been successfully sent.", gin.H{})
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, "Password has been successfully reset.", gin.H{})
}

func (h HandlerSet) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookie, token, int(h.cookie.MaxAge.Seconds()), "/", "", h.cookie.Secure, true)
}

func (h HandlerSet) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookie, "", -1, "/", "", h.cookie.Secure, true)
}
