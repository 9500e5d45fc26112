package feed

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel carrying request change notifications.
const Channel = "sampleflow:requests"

// Event is a change notification for a single request document. Consumers
// reload the full snapshot rather than patching incrementally, so the payload
// only identifies what changed.
type Event struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"` // created / decided / shipping_advanced / seeded
}

// Feed is the live change feed between the repository (publisher) and the
// request store mirror (subscriber).
type Feed interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel of events and a cancel func that tears the
	// subscription down. The channel is closed after cancel.
	Subscribe(ctx context.Context) (<-chan Event, func(), error)
}

// RedisFeed implements Feed on Redis pub/sub.
type RedisFeed struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(rdb *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, Channel, payload).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	sub := f.rdb.Subscribe(ctx, Channel)

	// Force the subscription to be established before returning so callers
	// can treat a connection failure as a subscribe error.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, err
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.logger.Warn("Dropping malformed feed message", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			select {
			case events <- ev:
			default:
				// Subscriber reloads the whole snapshot per event, so a
				// dropped event is caught up by the next one.
				f.logger.Warn("Feed subscriber lagging, dropping event", zap.String("request_id", ev.RequestID))
			}
		}
	}()

	cancel := func() { sub.Close() }
	return events, cancel, nil
}
