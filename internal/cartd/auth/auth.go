package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenNotFound      = errors.New("token not found or expired")
	ErrAccountNotFound    = errors.New("account not found")
)

// TokenTTL is how long an issued bearer token stays valid in redis.
const TokenTTL = 24 * time.Hour

type Account struct {
	ID           string `bson:"_id,omitempty"`
	Email        string `bson:"email"`
	PasswordHash string `bson:"password_hash"`
}

// AccountStore is the persistence the authenticator needs; the MongoDB
// implementation lives next to it.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, account *Account) error
}

// Authenticator verifies credentials against the account store and keeps
// issued bearer tokens in redis with a TTL.
type Authenticator struct {
	accounts AccountStore
	tokens   *redis.Client
}

func NewAuthenticator(accounts AccountStore, tokens *redis.Client) *Authenticator {
	return &Authenticator{
		accounts: accounts,
		tokens:   tokens,
	}
}

// Register creates an account with a bcrypt-hashed password.
func (a *Authenticator) Register(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// the id is assigned here so the stored _id stays a plain string
	errCreate := a.accounts.Create(ctx, &Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	})
	if errCreate != nil {
		return fmt.Errorf("failed to create account: %w", errCreate)
	}
	return nil
}

// Login checks the password and issues a bearer token bound to the account.
func (a *Authenticator) Login(ctx context.Context, email, password string) (token string, accountID string, err error) {
	account, errFind := a.accounts.FindByEmail(ctx, email)
	if errFind != nil {
		if errors.Is(errFind, ErrAccountNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", fmt.Errorf("failed to look up account: %w", errFind)
	}

	if errCmp := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); errCmp != nil {
		return "", "", ErrInvalidCredentials
	}

	token = uuid.New().String()
	if errSet := a.tokens.Set(ctx, tokenKey(token), account.ID, TokenTTL).Err(); errSet != nil {
		return "", "", fmt.Errorf("failed to store token: %w", errSet)
	}

	return token, account.ID, nil
}

// Verify resolves a bearer token to its account id.
func (a *Authenticator) Verify(ctx context.Context, token string) (string, error) {
	accountID, err := a.tokens.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to check token: %w", err)
	}
	return accountID, nil
}

// Revoke drops the token so the session ends server-side too.
func (a *Authenticator) Revoke(ctx context.Context, token string) error {
	if err := a.tokens.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func tokenKey(token string) string {
	return fmt.Sprintf("token:%s", token)
}
