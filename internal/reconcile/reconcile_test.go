package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mahmoudessam700/electronics-cart/internal/cartclient"
	"github.com/mahmoudessam700/electronics-cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// guestMock is an in-memory GuestCart with the same semantics as the
// sqlite store: Save normalizes, Clear removes everything.
type guestMock struct {
	m       sync.Mutex
	entries []domain.CartEntry
}

func (g *guestMock) Load() []domain.CartEntry {
	g.m.Lock()
	defer g.m.Unlock()
	return append([]domain.CartEntry(nil), g.entries...)
}

func (g *guestMock) Save(entries []domain.CartEntry) {
	g.m.Lock()
	defer g.m.Unlock()
	g.entries = domain.Normalize(entries)
}

func (g *guestMock) Add(productRef string, quantity int) []domain.CartEntry {
	g.m.Lock()
	defer g.m.Unlock()
	g.entries = domain.Merge(g.entries, productRef, quantity)
	return append([]domain.CartEntry(nil), g.entries...)
}

func (g *guestMock) Update(productRef string, quantity int) []domain.CartEntry {
	g.m.Lock()
	defer g.m.Unlock()
	for i := range g.entries {
		if g.entries[i].ProductRef == productRef {
			g.entries[i].Quantity = quantity
		}
	}
	return append([]domain.CartEntry(nil), g.entries...)
}

func (g *guestMock) Remove(productRef string) []domain.CartEntry {
	g.m.Lock()
	defer g.m.Unlock()
	out := g.entries[:0]
	for _, e := range g.entries {
		if e.ProductRef != productRef {
			out = append(out, e)
		}
	}
	g.entries = out
	return append([]domain.CartEntry(nil), g.entries...)
}

func (g *guestMock) Clear() {
	g.m.Lock()
	defer g.m.Unlock()
	g.entries = nil
}

func (g *guestMock) Drain() []domain.CartEntry {
	g.m.Lock()
	defer g.m.Unlock()
	entries := g.entries
	g.entries = nil
	return entries
}

// serverMock is an in-memory ServerCart that records call order and can
// fail individual refs.
type serverMock struct {
	m        sync.Mutex
	entries  []domain.CartEntry
	failRefs map[string]error
	fetchErr error
	calls    []string
	delay    time.Duration
}

func (s *serverMock) Fetch(_ context.Context, _ string) ([]domain.CartEntry, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, "fetch")
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return append([]domain.CartEntry(nil), s.entries...), nil
}

func (s *serverMock) Upsert(_ context.Context, _ string, productRef string, quantity int) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, "upsert:"+productRef)
	if err, ok := s.failRefs[productRef]; ok {
		return err
	}
	s.entries = domain.Merge(s.entries, productRef, quantity)
	return nil
}

func (s *serverMock) SetQuantity(_ context.Context, _ string, productRef string, quantity int) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, "set:"+productRef)
	for i := range s.entries {
		if s.entries[i].ProductRef == productRef {
			s.entries[i].Quantity = quantity
		}
	}
	return nil
}

func (s *serverMock) Remove(_ context.Context, _ string, productRef string) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, "remove:"+productRef)
	out := s.entries[:0]
	for _, e := range s.entries {
		if e.ProductRef != productRef {
			out = append(out, e)
		}
	}
	s.entries = out
	return nil
}

func (s *serverMock) Clear(_ context.Context, _ string) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.calls = append(s.calls, "clear")
	s.entries = nil
	return nil
}

func (s *serverMock) entriesByRef() map[string]int {
	s.m.Lock()
	defer s.m.Unlock()
	out := make(map[string]int, len(s.entries))
	for _, e := range s.entries {
		out[e.ProductRef] = e.Quantity
	}
	return out
}

func (s *serverMock) callLog() []string {
	s.m.Lock()
	defer s.m.Unlock()
	return append([]string(nil), s.calls...)
}

func TestLogin_MigratesGuestCart(t *testing.T) {
	guest := &guestMock{entries: []domain.CartEntry{
		{ProductRef: "A", Quantity: 1},
		{ProductRef: "B", Quantity: 2},
	}}
	server := &serverMock{entries: []domain.CartEntry{
		{ProductRef: "A", Quantity: 3},
	}}

	sut := NewSession(guest, server)
	report, err := sut.Login(context.Background(), "tok-1", "acc-1")
	require.NoError(t, err)
	assert.Empty(t, report.Warning())
	assert.Len(t, report.Migrated, 2)

	assert.Equal(t, StateAuthenticated, sut.State())
	assert.Equal(t, map[string]int{"A": 4, "B": 2}, server.entriesByRef())
	assert.Empty(t, guest.Load(), "guest store is cleared after full migration")

	// active view adopted from the authoritative fetch
	entries := sut.Entries()
	require.Len(t, entries, 2)
}

func TestLogin_PartialFailure_KeepsFailedEntriesInGuestStore(t *testing.T) {
	guest := &guestMock{entries: []domain.CartEntry{
		{ProductRef: "A", Quantity: 1},
		{ProductRef: "B", Quantity: 2},
		{ProductRef: "C", Quantity: 1},
	}}
	server := &serverMock{
		failRefs: map[string]error{"B": cartclient.ErrUnavailable},
	}

	sut := NewSession(guest, server)
	report, err := sut.Login(context.Background(), "tok-1", "acc-1")
	require.NoError(t, err, "partial failure does not block the sign-in")

	assert.Equal(t, map[string]int{"A": 1, "C": 1}, server.entriesByRef())

	remaining := guest.Load()
	require.Len(t, remaining, 1)
	assert.Equal(t, "B", remaining[0].ProductRef)
	assert.Equal(t, 2, remaining[0].Quantity)

	assert.Contains(t, report.Warning(), "B")
	assert.Equal(t, StateAuthenticated, sut.State())
}

func TestLogin_PartialFailure_RetryOnNextLoginPicksUpRest(t *testing.T) {
	guest := &guestMock{entries: []domain.CartEntry{
		{ProductRef: "A", Quantity: 1},
		{ProductRef: "B", Quantity: 2},
	}}
	server := &serverMock{
		failRefs: map[string]error{"B": cartclient.ErrUnavailable},
	}

	sut := NewSession(guest, server)
	_, err := sut.Login(context.Background(), "tok-1", "acc-1")
	require.NoError(t, err)

	sut.Logout()
	server.failRefs = nil

	report, err := sut.Login(context.Background(), "tok-2", "acc-1")
	require.NoError(t, err)
	assert.Empty(t, report.Warning())

	assert.Equal(t, map[string]int{"A": 1, "B": 2}, server.entriesByRef())
	assert.Empty(t, guest.Load())
}

func TestLogin_AuthError_LeavesGuestCartIntact(t *testing.T) {
	original := []domain.CartEntry{
		{ProductRef: "A", Quantity: 1},
		{ProductRef: "B", Quantity: 2},
	}
	guest := &guestMock{entries: append([]domain.CartEntry(nil), original...)}
	server := &serverMock{
		failRefs: map[string]error{"A": cartclient.ErrUnauthorized},
	}

	sut := NewSession(guest, server)
	_, err := sut.Login(context.Background(), "bad-token", "acc-1")
	require.ErrorIs(t, err, ErrReconciliationAborted)

	assert.Equal(t, StateGuest, sut.State())
	assert.Equal(t, original, guest.Load())
	assert.Empty(t, server.entriesByRef())
}

func TestLogin_EmptyGuestCart_PerformsZeroUpserts(t *testing.T) {
	guest := &guestMock{}
	server := &serverMock{entries: []domain.CartEntry{
		{ProductRef: "X", Quantity: 3},
	}}

	sut := NewSession(guest, server)
	report, err := sut.Login(context.Background(), "tok-1", "acc-1")
	require.NoError(t, err)
	assert.Empty(t, report.Migrated)

	assert.Equal(t, []string{"fetch"}, server.callLog(), "no upserts for an empty guest cart")

	entries := sut.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "X", entries[0].ProductRef)
	assert.Equal(t, 3, entries[0].Quantity)
}

func TestLogin_TwiceIsIdempotent(t *testing.T) {
	guest := &guestMock{entries: []domain.CartEntry{
		{ProductRef: "A", Quantity: 2},
	}}
	server := &serverMock{}

	sut := NewSession(guest, server)
	_, err := sut.Login(context.Background(), "tok-1", "acc-1")
	require.NoError(t, err)
	_, err = sut.Login(context.Background(), "tok-1", "acc-1")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"A": 2}, server.entriesByRef(), "no double-count on duplicate login")
}

func TestLogin_WhileAuthenticated_AdoptsNewIdentity(t *testing.T) {
	guest := &guestMock{}
	server := &serverMock{entries: []domain.CartEntry{
		{ProductRef: "X", Quantity: 3},
	}}
	ctx := context.Background()

	sut := NewSession(guest, server)
	_, err := sut.Login(ctx, "tok-a", "acc-a")
	require.NoError(t, err)

	// token refresh or account switch without an intervening logout
	_, err = sut.Login(ctx, "tok-b", "acc-b")
	require.NoError(t, err)

	assert.Equal(t, "tok-b", sut.Token())
	assert.Equal(t, "acc-b", sut.AccountID())
	assert.Equal(t, StateAuthenticated, sut.State())

	entries := sut.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "X", entries[0].ProductRef, "active view re-read under the new credentials")
}

func TestLogin_WhileAuthenticated_RejectedTokenFallsBackToGuest(t *testing.T) {
	guest := &guestMock{}
	server := &serverMock{}
	ctx := context.Background()

	sut := NewSession(guest, server)
	_, err := sut.Login(ctx, "tok-a", "acc-a")
	require.NoError(t, err)

	server.fetchErr = cartclient.ErrUnauthorized
	_, err = sut.Login(ctx, "tok-b", "acc-b")
	require.ErrorIs(t, err, ErrReconciliationAborted)

	assert.Equal(t, StateGuest, sut.State())
	assert.Empty(t, sut.Token())
	assert.Empty(t, sut.AccountID())
}

func TestLogoutThenRelogin_MergesFreshGuestAdditions(t *testing.T) {
	guest := &guestMock{}
	server := &serverMock{entries: []domain.CartEntry{
		{ProductRef: "X", Quantity: 3},
	}}
	ctx := context.Background()

	sut := NewSession(guest, server)
	_, err := sut.Login(ctx, "tok-1", "acc-1")
	require.NoError(t, err)

	sut.Logout()
	assert.Equal(t, StateGuest, sut.State())
	assert.Empty(t, sut.Entries(), "guest cart starts empty after logout")

	entries, err := sut.Add(ctx, "X", 2)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Quantity, "guest cart is independent of prior server state")

	_, err = sut.Login(ctx, "tok-2", "acc-1")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"X": 5}, server.entriesByRef())
}

func TestLogin_FetchFailure_IsNonBlocking(t *testing.T) {
	guest := &guestMock{}
	server := &serverMock{fetchErr: cartclient.ErrUnavailable}

	sut := NewSession(guest, server)
	report, err := sut.Login(context.Background(), "tok-1", "acc-1")
	require.NoError(t, err, "the user is signed in even when the cart could not be loaded")
	assert.Equal(t, StateAuthenticated, sut.State())
	assert.NotEmpty(t, report.Warning())
}

func TestReport_Warning_CombinesFailuresAndFetchNotice(t *testing.T) {
	report := &Report{
		FailedEntries: []domain.CartEntry{{ProductRef: "B", Quantity: 2}},
		FetchFailed:   true,
	}

	warning := report.Warning()
	assert.Contains(t, warning, "B")
	assert.Contains(t, warning, "could not be loaded", "the stale-view notice must not be dropped")

	assert.Empty(t, (&Report{}).Warning())
}

func TestAdd_DuringReconciliation_QueuesBehindIt(t *testing.T) {
	guest := &guestMock{entries: []domain.CartEntry{
		{ProductRef: "A", Quantity: 1},
		{ProductRef: "B", Quantity: 1},
		{ProductRef: "C", Quantity: 1},
	}}
	server := &serverMock{delay: 20 * time.Millisecond}
	ctx := context.Background()

	sut := NewSession(guest, server)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := sut.Login(ctx, "tok-1", "acc-1")
		assert.NoError(t, err)
	}()

	// wait until the migration is mid-flight, then race an add against it
	require.Eventually(t, func() bool {
		return len(server.callLog()) > 0
	}, time.Second, time.Millisecond)
	_, err := sut.Add(ctx, "A", 1)
	require.NoError(t, err)
	<-done

	calls := server.callLog()
	require.Len(t, calls, 5)
	assert.Equal(t, []string{"upsert:A", "upsert:B", "upsert:C", "fetch", "upsert:A"}, calls,
		"the user add must not interleave with the migration batch")

	assert.Equal(t, map[string]int{"A": 2, "B": 1, "C": 1}, server.entriesByRef())
}

func TestAuthenticatedMutations_RouteToServer(t *testing.T) {
	guest := &guestMock{}
	server := &serverMock{}
	ctx := context.Background()

	sut := NewSession(guest, server)
	_, err := sut.Login(ctx, "tok-1", "acc-1")
	require.NoError(t, err)

	_, err = sut.Add(ctx, "A", 2)
	require.NoError(t, err)
	_, err = sut.Update(ctx, "A", 5)
	require.NoError(t, err)
	_, err = sut.Remove(ctx, "A")
	require.NoError(t, err)
	require.NoError(t, sut.Clear(ctx))

	assert.Equal(t, []string{"fetch", "upsert:A", "set:A", "remove:A", "clear"}, server.callLog())
	assert.Empty(t, guest.Load(), "server-routed operations never touch the guest store")
}

func TestGuestMutations_NeverTouchServer(t *testing.T) {
	guest := &guestMock{}
	server := &serverMock{}
	ctx := context.Background()

	sut := NewSession(guest, server)

	_, err := sut.Add(ctx, "A", 2)
	require.NoError(t, err)
	_, err = sut.Update(ctx, "A", 5)
	require.NoError(t, err)

	assert.Empty(t, server.callLog())

	entries := sut.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].Quantity)
}

func TestAdd_ClampsQuantityToOne(t *testing.T) {
	guest := &guestMock{}
	sut := NewSession(guest, &serverMock{})

	entries, err := sut.Add(context.Background(), "A", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Quantity)
}
