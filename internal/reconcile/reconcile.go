// Package reconcile owns the guest-to-authenticated cart hand-over.
// A Session is the single owner of the active cart target: guest store
// while signed out, server cart after a successful login. The migration
// between the two is an awaited, sequential, failure-tracked phase, not
// a fire-and-forget side effect of login.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/mahmoudessam700/electronics-cart/internal/cartclient"
	"github.com/mahmoudessam700/electronics-cart/internal/domain"
)

// ServerCart is the remote cart contract the session consumes. All
// calls can fail; none are retried here.
type ServerCart interface {
	Fetch(ctx context.Context, token string) ([]domain.CartEntry, error)
	Upsert(ctx context.Context, token string, productRef string, quantity int) error
	SetQuantity(ctx context.Context, token string, productRef string, quantity int) error
	Remove(ctx context.Context, token string, productRef string) error
	Clear(ctx context.Context, token string) error
}

// GuestCart is the local durable store for signed-out sessions.
type GuestCart interface {
	Load() []domain.CartEntry
	Save(entries []domain.CartEntry)
	Add(productRef string, quantity int) []domain.CartEntry
	Update(productRef string, quantity int) []domain.CartEntry
	Remove(productRef string) []domain.CartEntry
	Clear()
	Drain() []domain.CartEntry
}

type State int

const (
	StateGuest State = iota
	StateReconciling
	StateAuthenticated
)

var (
	ErrReconciliationAborted = errors.New("reconciliation aborted")
	ErrNotAuthenticated      = errors.New("not authenticated")
)

// Report sums up one reconciliation run. FailedEntries stayed in the
// guest store and will be retried on the next login.
type Report struct {
	Migrated      []domain.CartEntry
	FailedEntries []domain.CartEntry
	FetchFailed   bool
}

// Warning renders the non-blocking notice for partial restores; empty
// when everything went through.
func (r *Report) Warning() string {
	var parts []string
	if len(r.FailedEntries) > 0 {
		refs := make([]string, len(r.FailedEntries))
		for i, e := range r.FailedEntries {
			refs[i] = e.ProductRef
		}
		parts = append(parts, fmt.Sprintf("some saved items could not be restored: %s", strings.Join(refs, ", ")))
	}
	if r.FetchFailed {
		parts = append(parts, "your cart could not be loaded, please refresh")
	}
	return strings.Join(parts, "; ")
}

// Session routes cart operations to the active target and performs the
// login reconciliation. One Session belongs to one shopper; it is safe
// for concurrent use, and any mutation issued while a reconciliation is
// in flight queues behind it.
type Session struct {
	mu sync.Mutex

	state     State
	token     string
	accountID string

	guest  GuestCart
	server ServerCart

	// active mirrors the server cart while authenticated
	active []domain.CartEntry
}

func NewSession(guest GuestCart, server ServerCart) *Session {
	return &Session{
		state:  StateGuest,
		guest:  guest,
		server: server,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Entries returns the current view of the active cart.
func (s *Session) Entries() []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAuthenticated {
		return append([]domain.CartEntry(nil), s.active...)
	}
	return s.guest.Load()
}

// Login migrates the guest cart into the server cart and switches the
// active target. The per-entry upserts run strictly one after another:
// the additive upsert reads server state before writing, so concurrent
// writes for the same ref could double-apply or lose an increment.
// Holding the session lock for the whole phase also means user
// mutations queue behind the migration instead of interleaving.
//
// Failure policy is continue-on-error: a failed entry stays in the
// guest store for the next login, the rest keep migrating. An auth
// failure aborts the whole phase and leaves the guest cart intact.
func (s *Session) Login(ctx context.Context, token, accountID string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAuthenticated {
		// the guest store was already drained, so there is nothing to
		// migrate, but the session must adopt the new identity: a
		// re-issued token or an account switch would otherwise keep
		// routing calls with the stale credentials
		return s.adoptIdentityLocked(ctx, token, accountID)
	}

	s.state = StateReconciling
	report := &Report{}

	pending := s.guest.Drain()
	if len(pending) > 0 {
		for _, entry := range pending {
			err := s.server.Upsert(ctx, token, entry.ProductRef, entry.Quantity)
			if err == nil {
				report.Migrated = append(report.Migrated, entry)
				continue
			}

			if errors.Is(err, cartclient.ErrUnauthorized) {
				// token rejected: nothing about this cart will succeed,
				// put everything back and fall back to guest state
				s.guest.Save(pending)
				s.state = StateGuest
				return nil, fmt.Errorf("%w: %v", ErrReconciliationAborted, err)
			}

			log.Printf("cart migration failed for %s: %v", entry.ProductRef, err)
			report.FailedEntries = append(report.FailedEntries, entry)
		}

		if len(report.FailedEntries) > 0 {
			// only migrated entries leave the guest store; the rest
			// wait for the next login
			s.guest.Save(report.FailedEntries)
		} else {
			s.guest.Clear()
		}
	}

	entries, errFetch := s.server.Fetch(ctx, token)
	if errFetch != nil {
		if errors.Is(errFetch, cartclient.ErrUnauthorized) {
			s.state = StateGuest
			return nil, fmt.Errorf("%w: %v", ErrReconciliationAborted, errFetch)
		}
		// unavailable is not empty; sign the user in with an unknown
		// cart and let the next read repopulate it
		log.Printf("cart fetch after migration failed: %v", errFetch)
		report.FetchFailed = true
		entries = nil
	}

	s.state = StateAuthenticated
	s.token = token
	s.accountID = accountID
	s.active = entries
	return report, nil
}

// adoptIdentityLocked switches an already-authenticated session to a
// new token and account without re-running the migration. The active
// view is re-read under the new credentials; a transient fetch failure
// empties the view and reports a warning, a rejected token drops the
// session back to guest state.
func (s *Session) adoptIdentityLocked(ctx context.Context, token, accountID string) (*Report, error) {
	report := &Report{}

	entries, err := s.server.Fetch(ctx, token)
	if err != nil {
		if errors.Is(err, cartclient.ErrUnauthorized) {
			s.state = StateGuest
			s.token = ""
			s.accountID = ""
			s.active = nil
			return nil, fmt.Errorf("%w: %v", ErrReconciliationAborted, err)
		}
		log.Printf("cart fetch on re-login failed: %v", err)
		report.FetchFailed = true
		entries = nil
	}

	s.token = token
	s.accountID = accountID
	s.active = entries
	return report, nil
}

// Logout discards the server cart reference and falls back to the
// (empty) guest store as the active target.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateGuest
	s.token = ""
	s.accountID = ""
	s.active = nil
}

// AccountID returns the authenticated account, empty for guests.
func (s *Session) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID
}

// Token returns the bearer token of the authenticated session, empty
// for guests.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Add applies an additive upsert against the active target.
func (s *Session) Add(ctx context.Context, productRef string, quantity int) ([]domain.CartEntry, error) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return s.guest.Add(productRef, quantity), nil
	}

	if err := s.server.Upsert(ctx, s.token, productRef, quantity); err != nil {
		return nil, err
	}
	s.active = domain.Merge(s.active, productRef, quantity)
	return append([]domain.CartEntry(nil), s.active...), nil
}

// Update sets the quantity of an entry absolutely, clamped to >= 1.
func (s *Session) Update(ctx context.Context, productRef string, quantity int) ([]domain.CartEntry, error) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return s.guest.Update(productRef, quantity), nil
	}

	if err := s.server.SetQuantity(ctx, s.token, productRef, quantity); err != nil {
		return nil, err
	}
	for i := range s.active {
		if s.active[i].ProductRef == productRef {
			s.active[i].Quantity = quantity
		}
	}
	return append([]domain.CartEntry(nil), s.active...), nil
}

// Remove drops one entry from the active target.
func (s *Session) Remove(ctx context.Context, productRef string) ([]domain.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return s.guest.Remove(productRef), nil
	}

	if err := s.server.Remove(ctx, s.token, productRef); err != nil {
		return nil, err
	}
	out := s.active[:0]
	for _, e := range s.active {
		if e.ProductRef != productRef {
			out = append(out, e)
		}
	}
	s.active = out
	return append([]domain.CartEntry(nil), s.active...), nil
}

// Clear empties the active target.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		s.guest.Clear()
		return nil
	}

	if err := s.server.Clear(ctx, s.token); err != nil {
		return err
	}
	s.active = nil
	return nil
}

// Refresh re-reads the server cart; no-op for guests.
func (s *Session) Refresh(ctx context.Context) ([]domain.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return s.guest.Load(), nil
	}

	entries, err := s.server.Fetch(ctx, s.token)
	if err != nil {
		return nil, err
	}
	s.active = entries
	return append([]domain.CartEntry(nil), s.active...), nil
}
