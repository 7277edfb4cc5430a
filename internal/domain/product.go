package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidProduct = errors.New("invalid product record")

// Product is the validated shape of a catalog record as seen by the cart.
// NameAr and ImageURL are optional; everything else is required at the
// store boundary.
type Product struct {
	ProductRef string  `bson:"product_ref" json:"product_ref"`
	Name       string  `bson:"name" json:"name"`
	NameAr     string  `bson:"name_ar,omitempty" json:"name_ar,omitempty"`
	UnitPrice  float64 `bson:"unit_price" json:"unit_price"`
	ImageURL   string  `bson:"image_url,omitempty" json:"image_url,omitempty"`
}

func (p Product) Validate() error {
	if p.ProductRef == "" {
		return fmt.Errorf("%w: empty product_ref", ErrInvalidProduct)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidProduct)
	}
	if p.UnitPrice < 0 {
		return fmt.Errorf("%w: negative unit_price", ErrInvalidProduct)
	}
	return nil
}
