package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/shopmarcas/smallauctions/utils"
)

// DefaultChannel is the pub/sub channel auction events are published on
const DefaultChannel = "auction_events"

type EventType string

const (
	AuctionCreated   EventType = "auction_created"
	BidAccepted      EventType = "bid_accepted"
	AuctionEnded     EventType = "auction_ended"
	PaymentCompleted EventType = "payment_completed"
)

// Event is a notification about a change to an auction
type Event struct {
	Type      EventType       `json:"type"`
	AuctionID string          `json:"auction_id"`
	UserID    string          `json:"user_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher fans auction events out to interested listeners
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisPublisher publishes JSON-encoded events on a Redis channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher; an empty channel uses DefaultChannel
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// LogPublisher writes events to the application log. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	utils.Info("Auction event", map[string]any{
		"type":       event.Type,
		"auction_id": event.AuctionID,
		"user_id":    event.UserID,
		"amount":     event.Amount.StringFixed(2),
	})
	return nil
}
