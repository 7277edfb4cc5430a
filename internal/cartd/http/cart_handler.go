package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/mahmoudessam700/electronics-cart/internal/cartd/repository"
	"github.com/mahmoudessam700/electronics-cart/internal/cartd/service"
	"github.com/mahmoudessam700/electronics-cart/internal/domain"
)

type CartHandler struct {
	service *service.CartService
	timeout time.Duration
}

func NewCartHandler(service *service.CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		service: service,
		timeout: timeout,
	}
}

type EntryRequestDTO struct {
	ProductRef string `json:"product_ref"`
	Quantity   int    `json:"quantity"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// GetCart returns the account's entries as a bare JSON array. An account
// with no cart document gets an empty array, never a 404; unavailability
// is a 5xx so clients can tell "empty" from "unknown".
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	cart, err := h.service.GetCart(ctx, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cart_unavailable", "could not load cart")
		return
	}

	entries := cart.Entries
	if entries == nil {
		entries = []domain.CartEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// AddEntry is the additive upsert: POST /cart increases an existing
// ref's quantity, it never replaces it.
func (h *CartHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req EntryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_ref", "product_ref must not be empty")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	err := h.service.AddEntry(ctx, userID, domain.CartEntry{
		ProductRef: req.ProductRef,
		Quantity:   req.Quantity,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not add entry")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

// SetQuantity is the absolute update: PUT /cart replaces the quantity.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req EntryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_ref", "product_ref must not be empty")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	err := h.service.SetQuantity(ctx, userID, req.ProductRef, req.Quantity)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) || errors.Is(err, repository.ErrCartNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "entry not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not update entry")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Delete handles both removal shapes of the contract:
// DELETE /cart?productId=<ref> removes one entry,
// DELETE /cart?clearAll=true empties the cart.
func (h *CartHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if r.URL.Query().Get("clearAll") == "true" {
		if err := h.service.ClearCart(ctx, userID); err != nil {
			respondError(w, http.StatusInternalServerError, "internal_error", "could not clear cart")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		return
	}

	productRef := r.URL.Query().Get("productId")
	if productRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "productId or clearAll=true is required")
		return
	}

	err := h.service.RemoveEntry(ctx, userID, productRef)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) || errors.Is(err, repository.ErrCartNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "entry not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not remove entry")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
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
