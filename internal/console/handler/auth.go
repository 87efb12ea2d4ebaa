package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/xdr-console/internal/console/session"
	"github.com/xela07ax/xdr-console/internal/domain"
)

type SessionService interface {
	State() session.State
	Login(ctx context.Context, username, password string) (*domain.LoginResponse, error)
	Logout()
	RefreshToken(ctx context.Context) bool
}

type AuthHandler struct {
	service SessionService
}

func NewAuthHandler(s SessionService) *AuthHandler {
	return &AuthHandler{service: s}
}

func (h *AuthHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.State())
}

// Login наружу отдает только состояние сессии, токен остается внутри процесса.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if _, err := h.service.Login(r.Context(), req.Username, req.Password); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Code:    "LOGIN_FAILED",
			Message: h.service.State().Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, h.service.State())
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.service.RefreshToken(r.Context()) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, h.service.State())
}
