package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mahmoudessam700/electronics-cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrEntryNotFound = errors.New("entry not found in cart")
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

// EnsureIndexes creates the cart collection indexes. Index creation is
// idempotent, so this runs at every startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	m := &mongoRepository{collection: db.Collection("carts")}
	return m.CreateIndexes(ctx)
}

func (m mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	// persisted documents are trusted, but older writers may have left
	// duplicate refs behind
	cart.Entries = domain.Normalize(cart.Entries)
	return &cart, nil
}

func (m mongoRepository) AddEntry(ctx context.Context, userID string, entry domain.CartEntry) error {
	now := time.Now()
	entry.AddedAt = now

	filter := bson.M{"user_id": userID}

	var existing domain.Cart
	err := m.collection.FindOne(ctx, filter).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			cart := &domain.Cart{
				UserID:    userID,
				Entries:   []domain.CartEntry{entry},
				CreatedAt: now,
				UpdatedAt: now,
			}

			_, err = m.collection.InsertOne(ctx, cart)
			if err != nil {
				return fmt.Errorf("failed to create cart with entry: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	entryExists := false
	for _, e := range existing.Entries {
		if e.ProductRef == entry.ProductRef {
			entryExists = true
			break
		}
	}

	if entryExists {
		// additive: $inc, never $set
		update := bson.M{
			"$inc": bson.M{"entries.$[elem].quantity": entry.Quantity},
			"$set": bson.M{"updated_at": now},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_ref": entry.ProductRef},
			},
		})

		_, err = m.collection.UpdateOne(ctx, filter, update, arrayFilters)
		if err != nil {
			return fmt.Errorf("failed to increment existing entry: %w", err)
		}
	} else {
		update := bson.M{
			"$push": bson.M{"entries": entry},
			"$set":  bson.M{"updated_at": now},
		}

		_, err = m.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to add new entry: %w", err)
		}
	}

	return nil
}

func (m mongoRepository) SetQuantity(ctx context.Context, userID string, productRef string, quantity int) error {
	filter := bson.M{
		"user_id":             userID,
		"entries.product_ref": productRef,
	}

	update := bson.M{
		"$set": bson.M{
			"entries.$[elem].quantity": quantity,
			"updated_at":               time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_ref": productRef},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to set entry quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (m mongoRepository) RemoveEntry(ctx context.Context, userID string, productRef string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"entries": bson.M{"product_ref": productRef},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove entry: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
