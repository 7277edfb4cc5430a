package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mahmoudessam700/electronics-cart/internal/cartd/auth"
)

type AuthHandler struct {
	authenticator *auth.Authenticator
	timeout       time.Duration
}

func NewAuthHandler(authenticator *auth.Authenticator, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		timeout:       timeout,
	}
}

type CredentialsDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponseDTO struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CredentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	token, accountID, err := h.authenticator.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is wrong")
			return
		}
		log.Printf("login failed request_id=%s: %v", getRequestID(r.Context()), err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not log in")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponseDTO{Token: token, AccountID: accountID})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CredentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and a password of at least 6 characters are required")
		return
	}

	if err := h.authenticator.Register(ctx, req.Email, req.Password); err != nil {
		log.Printf("register failed request_id=%s: %v", getRequestID(r.Context()), err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not register")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	if err := h.authenticator.Revoke(ctx, token); err != nil {
		log.Printf("logout failed request_id=%s: %v", getRequestID(r.Context()), err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not log out")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
