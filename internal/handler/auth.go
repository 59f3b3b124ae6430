package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-experience-booking/internal/model"
	"github.com/iliyamo/tour-experience-booking/internal/service"
)

// AuthAPI is the part of service.AuthService the auth endpoints use.
type AuthAPI interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Profile(ctx context.Context, userID uint64) (*model.User, error)
	Refresh(ctx context.Context, raw string) (*service.AuthResult, error)
	Logout(ctx context.Context, raw string, userID uint64) error
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
	Auth AuthAPI
}

func NewAuthHandler(a AuthAPI) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

type registerReq struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,max=72"`
	Name     string  `json:"name" validate:"omitempty,max=120"`
	Role     string  `json:"role" validate:"omitempty,oneof=traveler guide"`
	Phone    *string `json:"phone" validate:"omitempty,max=40"`
	Location *string `json:"location" validate:"omitempty,max=120"`
	Bio      *string `json:"bio" validate:"omitempty,max=2000"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type authResp struct {
	User         *model.User `json:"user"`
	Token        string      `json:"token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	RefreshToken string      `json:"refresh_token"`
}

func toAuthResp(r *service.AuthResult) authResp {
	return authResp{User: r.User, Token: r.AccessToken, ExpiresAt: r.ExpiresAt, RefreshToken: r.RefreshToken}
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if msg, ok := bind(c, &req); !ok {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Auth.Register(ctx, service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Name:     req.Name,
		Phone:    req.Phone,
		Location: req.Location,
		Bio:      req.Bio,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toAuthResp(res))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if msg, ok := bind(c, &req); !ok {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthResp(res))
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(c echo.Context) error {
	who, ok := caller(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "unauthorized")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Auth.Profile(ctx, who.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// Refresh rotates the refresh token and issues a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if msg, ok := bind(c, &req); !ok {
		return errorJSON(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAuthResp(res))
}

// Logout revokes the given refresh token, or every token of the
// authenticated user when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid body")
	}
	who, _ := caller(c)
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Auth.Logout(ctx, req.RefreshToken, who.UserID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
