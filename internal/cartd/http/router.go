package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mahmoudessam700/electronics-cart/internal/cartd/auth"
)

// NewRouter wires the REST surface consumed by storefront sessions:
//
//	GET    /cart                  entries of the authenticated account
//	POST   /cart                  additive upsert
//	PUT    /cart                  absolute quantity set
//	DELETE /cart?productId=<ref>  remove one entry
//	DELETE /cart?clearAll=true    clear the whole cart
func NewRouter(cartHandler *CartHandler, authHandler *AuthHandler, authenticator *auth.Authenticator) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(authenticator))
		r.Get("/", cartHandler.GetCart)
		r.Post("/", cartHandler.AddEntry)
		r.Put("/", cartHandler.SetQuantity)
		r.Delete("/", cartHandler.Delete)
	})

	return r
}
