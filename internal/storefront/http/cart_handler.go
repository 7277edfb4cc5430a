package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mahmoudessam700/electronics-cart/internal/cartclient"
	"github.com/mahmoudessam700/electronics-cart/internal/domain"
	"github.com/mahmoudessam700/electronics-cart/internal/reconcile"
)

// AuthClient is what the login/logout handlers need from the backend.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (token string, accountID string, err error)
	Logout(ctx context.Context, token string) error
}

type CartHandler struct {
	sessions *SessionManager
	auth     AuthClient
	timeout  time.Duration
}

func NewCartHandler(sessions *SessionManager, auth AuthClient, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		auth:     auth,
		timeout:  timeout,
	}
}

type EntryRequestDTO struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
}

// AddItemDTO carries the full product record the storefront UI submits.
// Only the validated ref and the quantity reach the cart stores.
type AddItemDTO struct {
	Product  domain.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

type CredentialsDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CartResponseDTO struct {
	Entries []domain.CartEntry `json:"entries"`
	Warning string             `json:"warning,omitempty"`
}

type LoginResponseDTO struct {
	AccountID string             `json:"account_id"`
	Entries   []domain.CartEntry `json:"entries"`
	Warning   string             `json:"warning,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (h *CartHandler) session(r *http.Request) *reconcile.Session {
	return h.sessions.Session(getSessionIDFromContext(r.Context()))
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	respondJSON(w, http.StatusOK, CartResponseDTO{Entries: entriesOrEmpty(session.Entries())})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := req.Product.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product", err.Error())
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	entries, err := h.session(r).Add(ctx, req.Product.ProductRef, req.Quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CartResponseDTO{Entries: entriesOrEmpty(entries)})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productRef := chi.URLParam(r, "product_ref")
	if productRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_ref", "product_ref must not be empty")
		return
	}

	var req EntryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	entries, err := h.session(r).Update(ctx, productRef, req.Quantity)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{Entries: entriesOrEmpty(entries)})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productRef := chi.URLParam(r, "product_ref")
	if productRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_ref", "product_ref must not be empty")
		return
	}

	entries, err := h.session(r).Remove(ctx, productRef)
	if err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{Entries: entriesOrEmpty(entries)})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.session(r).Clear(ctx); err != nil {
		handleCartError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{Entries: []domain.CartEntry{}})
}

// Login authenticates against the backend and runs the guest cart
// migration before answering. A partial migration does not fail the
// login; the response carries a warning instead.
func (h *CartHandler) Login(w http.ResponseWriter, r *http.Request) {
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

	token, accountID, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, cartclient.ErrUnauthorized) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is wrong")
			return
		}
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "login is temporarily unavailable")
		return
	}

	session := h.session(r)
	report, errLogin := session.Login(ctx, token, accountID)
	if errLogin != nil {
		// token was rejected right after being issued; the guest cart
		// is untouched and the shopper stays signed out
		log.Printf("reconciliation aborted for account %s: %v", accountID, errLogin)
		respondError(w, http.StatusUnauthorized, "session_rejected", "session could not be established")
		return
	}

	respondJSON(w, http.StatusOK, LoginResponseDTO{
		AccountID: accountID,
		Entries:   entriesOrEmpty(session.Entries()),
		Warning:   report.Warning(),
	})
}

func (h *CartHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	session := h.session(r)
	if token := session.Token(); token != "" {
		if err := h.auth.Logout(ctx, token); err != nil {
			// the local session ends regardless; the token will expire
			log.Printf("token revocation failed: %v", err)
		}
	}
	session.Logout()

	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func entriesOrEmpty(entries []domain.CartEntry) []domain.CartEntry {
	if entries == nil {
		return []domain.CartEntry{}
	}
	return entries
}

func handleCartError(w http.ResponseWriter, err error) {
	if errors.Is(err, cartclient.ErrUnauthorized) {
		respondError(w, http.StatusUnauthorized, "unauthorized", "session expired, please sign in again")
		return
	}
	respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart is temporarily unavailable")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
