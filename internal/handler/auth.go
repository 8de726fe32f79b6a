package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/evermart/storefront-api/internal/config"
	"github.com/evermart/storefront-api/internal/middleware"
	"github.com/evermart/storefront-api/internal/model"
	"github.com/evermart/storefront-api/internal/repository"
	"github.com/evermart/storefront-api/internal/utils"
)

// UserStore is the user persistence surface auth needs.
type UserStore interface {
	Create(ctx context.Context, name, email, password string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// SessionManager tracks the one active refresh token per user.
type SessionManager interface {
	Save(ctx context.Context, userID uint64, token string, ttl time.Duration) error
	Validate(ctx context.Context, userID uint64, token string) error
	Delete(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions SessionManager
	Log      zerolog.Logger
}

func NewAuthHandler(cfg config.Config, users UserStore, sessions SessionManager, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Sessions: sessions, Log: log}
}

// ----- DTOs -----

type signupReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) accessTTL() time.Duration {
	return time.Duration(h.Cfg.AccessTTLMin) * time.Minute
}
func (h *AuthHandler) refreshTTL() time.Duration {
	return time.Duration(h.Cfg.RefreshTTLDays) * 24 * time.Hour
}

// cookie builds a session cookie. Both tokens are http-only and
// SameSite=Strict; Secure everywhere except local development.
func (h *AuthHandler) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.Cfg.Env != "dev",
	}
}

// issueSession creates the token pair, persists the refresh token and
// sets both cookies. Shared by signup and login.
func (h *AuthHandler) issueSession(ctx context.Context, c echo.Context, userID uint64) error {
	access, err := utils.NewToken(h.Cfg.AccessSecret, userID, h.accessTTL())
	if err != nil {
		return err
	}
	refresh, err := utils.NewToken(h.Cfg.RefreshSecret, userID, h.refreshTTL())
	if err != nil {
		return err
	}
	if err := h.Sessions.Save(ctx, userID, refresh.Value, h.refreshTTL()); err != nil {
		return err
	}
	c.SetCookie(h.cookie("accessToken", access.Value, h.accessTTL()))
	c.SetCookie(h.cookie("refreshToken", refresh.Value, h.refreshTTL()))
	return nil
}

// Signup creates the user and logs them in immediately.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name/email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		h.Log.Error().Err(err).Msg("signup: create user failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	if err := h.issueSession(ctx, c, uid); err != nil {
		h.Log.Error().Err(err).Msg("signup: issue session failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}

	return c.JSON(http.StatusCreated, model.PublicUser{
		ID: uid, Name: req.Name, Email: req.Email, Role: model.RoleCustomer,
	})
}

// Login verifies credentials and issues a fresh session, superseding
// any previous refresh token for the user.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
		}
		h.Log.Error().Err(err).Msg("login: query failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid email or password"})
	}

	if err := h.issueSession(ctx, c, u.ID); err != nil {
		h.Log.Error().Err(err).Msg("login: issue session failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}

	return c.JSON(http.StatusOK, u.Public())
}

// Logout deletes the session entry when the refresh cookie decodes,
// and clears both cookies regardless. A missing or mangled token
// never fails the caller-visible response: the point of logout is to
// end up logged out.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie("refreshToken"); err == nil && cookie.Value != "" {
		if userID, err := utils.VerifyToken(h.Cfg.RefreshSecret, cookie.Value); err == nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			if err := h.Sessions.Delete(ctx, userID); err != nil {
				h.Log.Warn().Err(err).Uint64("user_id", userID).Msg("logout: session delete failed")
			}
		}
	}

	c.SetCookie(h.cookie("accessToken", "", -time.Second))
	c.SetCookie(h.cookie("refreshToken", "", -time.Second))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

// Refresh exchanges a valid refresh token for a new access token.
// The refresh token itself is not rotated on this path; it stays
// valid until its own expiry or the next login. The presented token
// must match the value on record, which catches reuse after logout
// or after a newer login superseded it.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie("refreshToken")
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no refresh token provided"})
	}

	userID, err := utils.VerifyToken(h.Cfg.RefreshSecret, cookie.Value)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token expired"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.Validate(ctx, userID, cookie.Value); err != nil {
		if errors.Is(err, repository.ErrTokenMismatch) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		h.Log.Error().Err(err).Msg("refresh: session lookup failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session lookup failed"})
	}

	access, err := utils.NewToken(h.Cfg.AccessSecret, userID, h.accessTTL())
	if err != nil {
		h.Log.Error().Err(err).Msg("refresh: issue access failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	c.SetCookie(h.cookie("accessToken", access.Value, h.accessTTL()))
	return c.JSON(http.StatusOK, echo.Map{"message": "token refreshed successfully"})
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.CurrentUser(c).Public())
}
