package repository

import (
	"context"

	"github.com/mahmoudessam700/electronics-cart/internal/domain"
)

// CartRepository defines the interface for server-side cart persistence.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	// AddEntry is additive: if the ref already exists its quantity is
	// increased, never replaced.
	AddEntry(ctx context.Context, userID string, entry domain.CartEntry) error
	// SetQuantity replaces the quantity of an existing entry absolutely.
	SetQuantity(ctx context.Context, userID string, productRef string, quantity int) error
	RemoveEntry(ctx context.Context, userID string, productRef string) error
	DeleteCart(ctx context.Context, userID string) error
}
