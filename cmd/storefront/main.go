package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mahmoudessam700/electronics-cart/internal/cartclient"
	"github.com/mahmoudessam700/electronics-cart/internal/guest"
	h "github.com/mahmoudessam700/electronics-cart/internal/storefront/http"
)

type Config struct {
	HTTPPort        string
	CartServiceURL  string
	GuestDBPath     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		CartServiceURL:  getEnv("CART_SERVICE_URL", "http://localhost:8081"),
		GuestDBPath:     getEnv("GUEST_DB_PATH", "guest-carts.db"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	guestDB, err := guest.Open(cfg.GuestDBPath)
	if err != nil {
		log.Fatalf("Failed to open guest cart store: %v", err)
	}
	defer guestDB.Close()
	log.Printf("Guest cart store ready at %s", cfg.GuestDBPath)

	client := cartclient.New(cfg.CartServiceURL, cfg.RequestTimeout)

	sessions := h.NewSessionManager(guestDB, client)
	cartHandler := h.NewCartHandler(sessions, client, cfg.RequestTimeout)
	router := h.NewRouter(cartHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storefront listening on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	log.Println("storefront stopped")
}
