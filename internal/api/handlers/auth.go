package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/acumant/ai-portal/internal/api/dto"
	"github.com/acumant/ai-portal/internal/api/middleware"
	"github.com/acumant/ai-portal/internal/auth"
)

type AuthHandler struct {
	authService  auth.Authenticator
	users        middleware.UserLoader
	secureCookie bool
	cookieMaxAge time.Duration
}

func NewAuthHandler(authService auth.Authenticator, users middleware.UserLoader, secureCookie bool, cookieMaxAge time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		users:        users,
		secureCookie: secureCookie,
		cookieMaxAge: cookieMaxAge,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials"})
		case errors.Is(err, auth.ErrInactiveUser):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Account is inactive"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Login failed"})
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    resp.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.cookieMaxAge.Seconds()),
	})

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token: resp.Token,
		User:  dto.NewUserDTO(resp.User),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

// Session reports the signed-in user or null. It never answers 401 so the
// portal shell can call it before deciding where to route.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.CurrentUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load session"})
		return
	}

	var resp dto.SessionResponse
	if user != nil {
		u := dto.NewUserDTO(user)
		resp.User = &u
	}
	writeJSON(w, http.StatusOK, resp)
}
