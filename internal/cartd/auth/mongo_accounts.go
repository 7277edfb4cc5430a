package auth

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoAccountStore struct {
	collection *mongo.Collection
}

func NewMongoAccountStore(db *mongo.Database) AccountStore {
	return &mongoAccountStore{
		collection: db.Collection("accounts"),
	}
}

// EnsureIndexes creates the unique email index on the accounts
// collection. Without it duplicate registrations would race past the
// application-level check.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	m := &mongoAccountStore{collection: db.Collection("accounts")}
	return m.CreateIndexes(ctx)
}

func (m mongoAccountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var account Account
	err := m.collection.FindOne(ctx, bson.M{"email": email}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return &account, nil
}

func (m mongoAccountStore) Create(ctx context.Context, account *Account) error {
	_, err := m.collection.InsertOne(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (m *mongoAccountStore) CreateIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := m.collection.Indexes().CreateOne(ctx, index)
	if err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}
