package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockAccountStore struct {
	m        sync.Mutex
	accounts map[string]*Account
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{accounts: make(map[string]*Account)}
}

func (s *mockAccountStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.m.Lock()
	defer s.m.Unlock()
	account, ok := s.accounts[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

func (s *mockAccountStore) Create(_ context.Context, account *Account) error {
	s.m.Lock()
	defer s.m.Unlock()
	if account.ID == "" {
		account.ID = "acc-1"
	}
	s.accounts[account.Email] = account
	return nil
}

func setupAuth(t *testing.T) (*Authenticator, *mockAccountStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newMockAccountStore()
	return NewAuthenticator(store, client), store, mr
}

func TestLogin_Success(t *testing.T) {
	sut, store, _ := setupAuth(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	store.accounts["omar@example.com"] = &Account{ID: "acc-42", Email: "omar@example.com", PasswordHash: string(hash)}

	token, accountID, err := sut.Login(ctx, "omar@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "acc-42", accountID)

	resolved, err := sut.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "acc-42", resolved)
}

func TestLogin_WrongPassword(t *testing.T) {
	sut, store, _ := setupAuth(t)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	store.accounts["omar@example.com"] = &Account{ID: "acc-42", Email: "omar@example.com", PasswordHash: string(hash)}

	_, _, err := sut.Login(ctx, "omar@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	sut, _, _ := setupAuth(t)

	_, _, err := sut.Login(context.Background(), "nobody@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterThenLogin(t *testing.T) {
	sut, _, _ := setupAuth(t)
	ctx := context.Background()

	require.NoError(t, sut.Register(ctx, "sara@example.com", "pw123"))

	token, accountID, err := sut.Login(ctx, "sara@example.com", "pw123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, accountID)
}

func TestVerify_ExpiredToken(t *testing.T) {
	sut, store, mr := setupAuth(t)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	store.accounts["a@b.c"] = &Account{ID: "acc-1", Email: "a@b.c", PasswordHash: string(hash)}

	token, _, err := sut.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)

	mr.FastForward(TokenTTL + 1)

	_, err = sut.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRevoke(t *testing.T) {
	sut, store, _ := setupAuth(t)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	store.accounts["a@b.c"] = &Account{ID: "acc-1", Email: "a@b.c", PasswordHash: string(hash)}

	token, _, err := sut.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)

	require.NoError(t, sut.Revoke(ctx, token))

	_, err = sut.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
