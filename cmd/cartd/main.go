package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mahmoudessam700/electronics-cart/internal/cartd/auth"
	c "github.com/mahmoudessam700/electronics-cart/internal/cartd/cache"
	h "github.com/mahmoudessam700/electronics-cart/internal/cartd/http"
	"github.com/mahmoudessam700/electronics-cart/internal/cartd/poller"
	"github.com/mahmoudessam700/electronics-cart/internal/cartd/repository"
	s "github.com/mahmoudessam700/electronics-cart/internal/cartd/service"
)

func main() {
	// Configuration
	httpPort := getEnv("CARTD_HTTP_PORT", "8081")
	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017")
	mongoDBName := getEnv("MONGO_DB_NAME", "cartdb")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	requestTimeout := 30 * time.Second

	ctx := context.Background()
	mongoDB, err := repository.ConnectMongoDB(ctx, mongoURI, mongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", mongoURI)

	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("Failed to create cart indexes: %v", err)
	}
	if err := auth.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("Failed to create account indexes: %v", err)
	}

	repo := repository.NewMongoRepository(mongoDB)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	cache := c.NewRedisCache(redisClient)
	service := s.NewCartService(repo, cache)

	accounts := auth.NewMongoAccountStore(mongoDB)
	authenticator := auth.NewAuthenticator(accounts, redisClient)

	cartHandler := h.NewCartHandler(service, requestTimeout)
	authHandler := h.NewAuthHandler(authenticator, requestTimeout)
	router := h.NewRouter(cartHandler, authHandler, authenticator)

	// Checkout events empty the cart once an order exists
	pollerCtx, cancelPoller := context.WithCancel(ctx)
	checkoutPoller := poller.NewPoller(repo, cache, strings.Split(kafkaBrokers, ",")...)
	go checkoutPoller.Run(pollerCtx)

	srv := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("cartd listening on port %s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down cartd...")
	cancelPoller()
	checkoutPoller.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	mongoDB.Client().Disconnect(ctx)
	log.Println("cartd stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
