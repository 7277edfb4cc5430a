package domain

import "time"

type Cart struct {
	ID        string      `bson:"_id,omitempty" json:"-"`
	UserID    string      `bson:"user_id" json:"user_id"`
	Entries   []CartEntry `bson:"entries" json:"entries"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time   `bson:"updated_at" json:"updated_at"`
}

// CartEntry is one product line. ProductRef is an opaque key; the cart
// never dereferences it.
type CartEntry struct {
	ProductRef string    `bson:"product_ref" json:"product_ref"`
	Quantity   int       `bson:"quantity" json:"quantity"`
	AddedAt    time.Time `bson:"added_at" json:"added_at,omitempty"`
}

// Normalize merges duplicate ProductRef lines by summing quantities and
// drops entries with an empty ref or a non-positive quantity. Order of
// first appearance is preserved. Loaded lists (local record, server
// response) pass through here before any other operation touches them.
func Normalize(entries []CartEntry) []CartEntry {
	if len(entries) == 0 {
		return nil
	}

	index := make(map[string]int, len(entries))
	out := make([]CartEntry, 0, len(entries))
	for _, e := range entries {
		if e.ProductRef == "" || e.Quantity <= 0 {
			continue
		}
		if i, ok := index[e.ProductRef]; ok {
			out[i].Quantity += e.Quantity
			continue
		}
		index[e.ProductRef] = len(out)
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Merge applies an additive upsert of (productRef, quantity) to entries
// and returns the new list. Matches the server's POST /cart semantics.
func Merge(entries []CartEntry, productRef string, quantity int) []CartEntry {
	for i := range entries {
		if entries[i].ProductRef == productRef {
			out := make([]CartEntry, len(entries))
			copy(out, entries)
			out[i].Quantity += quantity
			return out
		}
	}
	out := make([]CartEntry, len(entries), len(entries)+1)
	copy(out, entries)
	return append(out, CartEntry{ProductRef: productRef, Quantity: quantity})
}
