package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mahmoudessam700/electronics-cart/internal/cartd/cache"
	"github.com/mahmoudessam700/electronics-cart/internal/cartd/repository"
	"github.com/mahmoudessam700/electronics-cart/internal/domain"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache) *CartService {
	return &CartService{
		repo:  repo,
		cache: cache,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v \n", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) {
			// a user with no cart document has an empty cart, not an error
			return &domain.Cart{
				UserID:    userID,
				Entries:   nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// set cache off the request path
		go func() {
			errSet := s.cache.Set(context.Background(), userID, cart)
			if errSet != nil {
				log.Printf("cache set error: %v \n", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddEntry has additive semantics: an existing ref gets its quantity
// increased by entry.Quantity.
func (s *CartService) AddEntry(ctx context.Context, userID string, entry domain.CartEntry) error {
	errAdd := s.repo.AddEntry(ctx, userID, entry)
	if errAdd != nil {
		log.Printf("repo add entry error: %v \n", errAdd)
		return errAdd
	}

	invalidateCache(s, userID)
	return nil
}

// SetQuantity replaces the quantity absolutely.
func (s *CartService) SetQuantity(ctx context.Context, userID string, productRef string, quantity int) error {
	errUpdate := s.repo.SetQuantity(ctx, userID, productRef, quantity)
	if errUpdate != nil {
		log.Printf("repo set quantity error: %v \n", errUpdate)
		return errUpdate
	}

	invalidateCache(s, userID)
	return nil
}

func (s *CartService) RemoveEntry(ctx context.Context, userID string, productRef string) error {
	errRemove := s.repo.RemoveEntry(ctx, userID, productRef)
	if errRemove != nil {
		log.Printf("repo remove entry error: %v \n", errRemove)
		return errRemove
	}

	invalidateCache(s, userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	errDelete := s.repo.DeleteCart(ctx, userID)
	if errDelete != nil && !errors.Is(errDelete, repository.ErrCartNotFound) {
		log.Printf("repo delete cart error: %v \n", errDelete)
		return errDelete
	}

	invalidateCache(s, userID)
	return nil
}

func invalidateCache(s *CartService, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errInvalidate := s.cache.Delete(ctx, userID)
	if errInvalidate != nil {
		log.Printf("cache invalidate error: %v \n", errInvalidate)
	}
}
