package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mahmoudessam700/electronics-cart/internal/guest"
	"github.com/mahmoudessam700/electronics-cart/internal/reconcile"
)

const sessionCookie = "storefront_session"

type contextKey string

const sessionIDKey contextKey = "session_id"

// SessionManager hands out one reconcile.Session per browser session,
// each with its own guest store record over the shared local database.
type SessionManager struct {
	mu       sync.Mutex
	db       *sqlx.DB
	server   reconcile.ServerCart
	sessions map[string]*reconcile.Session
}

func NewSessionManager(db *sqlx.DB, server reconcile.ServerCart) *SessionManager {
	return &SessionManager{
		db:       db,
		server:   server,
		sessions: make(map[string]*reconcile.Session),
	}
}

func (m *SessionManager) Session(sessionID string) *reconcile.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	s := reconcile.NewSession(guest.NewStore(m.db, sessionID), m.server)
	m.sessions[sessionID] = s
	return s
}

// SessionMiddleware makes sure every request carries a session cookie
// and exposes the id through the request context.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
			sessionID = cookie.Value
		} else {
			sessionID = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getSessionIDFromContext(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}
