// Package guest holds cart state for sessions that have not signed in.
// Entries live in memory and are mirrored to a local sqlite record; the
// in-memory list stays authoritative for the session even when the
// mirror write fails, so a persistence problem never surfaces to the
// shopper. The accepted cost is that unsaved changes are lost on a
// process restart.
package guest

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mahmoudessam700/electronics-cart/internal/domain"
)

// Store is the guest cart for one session. All mutating operations
// persist through Save and return the updated list.
type Store struct {
	mu        sync.Mutex
	db        *sqlx.DB
	sessionID string
	entries   []domain.CartEntry
	loaded    bool
}

func NewStore(db *sqlx.DB, sessionID string) *Store {
	return &Store{
		db:        db,
		sessionID: sessionID,
	}
}

// Load returns the persisted entries. A missing record, a malformed
// record and an empty record all read as an empty list; storage
// problems are logged, never returned.
func (s *Store) Load() []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() []domain.CartEntry {
	if s.loaded {
		return append([]domain.CartEntry(nil), s.entries...)
	}

	s.loaded = true
	s.entries = nil

	var raw string
	err := s.db.Get(&raw, "SELECT entries FROM guest_carts WHERE session_id = ?", s.sessionID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("guest cart read failed session=%s: %v", s.sessionID, err)
		}
		return nil
	}

	var entries []domain.CartEntry
	if errUnmarshal := json.Unmarshal([]byte(raw), &entries); errUnmarshal != nil {
		log.Printf("guest cart record malformed session=%s, treating as empty: %v", s.sessionID, errUnmarshal)
		return nil
	}

	s.entries = domain.Normalize(entries)
	return append([]domain.CartEntry(nil), s.entries...)
}

// Save overwrites the persisted record with the given entries. Failures
// are logged and swallowed; the in-memory list is updated regardless.
func (s *Store) Save(entries []domain.CartEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked(entries)
}

func (s *Store) saveLocked(entries []domain.CartEntry) {
	s.entries = domain.Normalize(entries)
	s.loaded = true

	raw, err := json.Marshal(s.entries)
	if err != nil {
		log.Printf("guest cart marshal failed session=%s: %v", s.sessionID, err)
		return
	}

	_, errExec := s.db.Exec(
		`INSERT INTO guest_carts (session_id, entries, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(session_id) DO UPDATE SET entries = excluded.entries, updated_at = CURRENT_TIMESTAMP`,
		s.sessionID, string(raw),
	)
	if errExec != nil {
		log.Printf("guest cart write failed session=%s, keeping in-memory state: %v", s.sessionID, errExec)
	}
}

// Add applies an additive upsert for productRef and persists.
func (s *Store) Add(productRef string, quantity int) []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked()
	entries = domain.Merge(entries, productRef, quantity)
	s.saveLocked(entries)
	return append([]domain.CartEntry(nil), s.entries...)
}

// Update replaces the quantity of productRef absolutely. Callers clamp
// to >= 1 before calling; a ref that is not present is a no-op.
func (s *Store) Update(productRef string, quantity int) []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked()
	for i := range entries {
		if entries[i].ProductRef == productRef {
			entries[i].Quantity = quantity
			break
		}
	}
	s.saveLocked(entries)
	return append([]domain.CartEntry(nil), s.entries...)
}

// Remove drops the entry for productRef and persists.
func (s *Store) Remove(productRef string) []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked()
	out := entries[:0]
	for _, e := range entries {
		if e.ProductRef != productRef {
			out = append(out, e)
		}
	}
	s.saveLocked(out)
	return append([]domain.CartEntry(nil), s.entries...)
}

// Clear empties the store and deletes the persisted record entirely, so
// a later Load sees "no record" exactly like a fresh session would.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.loaded = true

	if _, err := s.db.Exec("DELETE FROM guest_carts WHERE session_id = ?", s.sessionID); err != nil {
		log.Printf("guest cart delete failed session=%s: %v", s.sessionID, err)
	}
}

// Drain atomically takes the current entries out of memory without
// touching the persisted record; the reconciler writes back whatever
// could not be migrated.
func (s *Store) Drain() []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.loadLocked()
	s.entries = nil
	return entries
}

// Open opens (or creates) the local guest cart database and applies the
// schema migration.
func Open(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open guest cart db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping guest cart db: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
