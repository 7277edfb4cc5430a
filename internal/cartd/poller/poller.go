package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	c "github.com/mahmoudessam700/electronics-cart/internal/cartd/cache"
	r "github.com/mahmoudessam700/electronics-cart/internal/cartd/repository"
	"github.com/segmentio/kafka-go"
)

// Poller consumes checkout-completed events and empties the matching
// server cart: once an order exists the cart's job is done.
type Poller struct {
	repo   r.CartRepository
	reader *kafka.Reader
	cache  c.CartCache
}

func NewPoller(repo r.CartRepository, cache c.CartCache, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "checkout-completed",
		GroupID:  "cartd-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{repo, reader, cache}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			log.Printf("error reading message: %v", err)
			continue
		}
		p.handleMessage(ctx, m.Value)
	}
}

func (p *Poller) Close() {
	err := p.reader.Close()
	if err != nil {
		log.Printf("error closing reader: %v", err)
	}
}

func (p *Poller) handleMessage(ctx context.Context, value []byte) {
	var payload map[string]interface{}
	if errUnmarshal := json.Unmarshal(value, &payload); errUnmarshal != nil {
		log.Printf("error parsing message: %v", errUnmarshal)
		return
	}
	userID, ok := payload["user_id"].(string)
	if !ok {
		log.Println("missing or invalid user_id")
		return
	}

	errDelete := p.repo.DeleteCart(ctx, userID)
	if errDelete != nil && !errors.Is(errDelete, r.ErrCartNotFound) {
		log.Printf("failed to delete cart: %v", errDelete)
	}

	errCacheDelete := p.cache.Delete(ctx, userID)
	if errCacheDelete != nil {
		log.Printf("failed to delete cache: %v", errCacheDelete)
	}
}
