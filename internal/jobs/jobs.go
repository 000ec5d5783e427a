// Package jobs is the background-job bus: a Redis-streams dispatcher and a
// consumer-group worker.
//
// Both ends are explicitly constructed handles injected where needed — the
// server builds them at startup and owns their lifecycle; nothing in this
// package is a process-wide singleton.
//
// Delivery is Redis's: at-least-once within a consumer group. Handlers should
// tolerate the occasional redelivery.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

// stream is the single Redis stream all job events go through. One stream is
// plenty at this scale; the event name routes to the handler.
const stream = "splitr:jobs"

// Event is one unit of background work.
type Event struct {
	ID      string          // unique event id (xid), assigned at enqueue
	Name    string          // routing key, e.g. "user.created"
	Payload json.RawMessage // JSON-encoded event body
}

// NewRedisClient connects to Redis and verifies the connection with a ping,
// so a bad address fails at startup rather than on the first enqueue.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("jobs: connecting to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Dispatcher enqueues job events. It satisfies service.EventDispatcher.
type Dispatcher struct {
	rdb *redis.Client
}

// NewDispatcher creates a Dispatcher over an existing Redis client. The
// client's lifecycle stays with the caller.
func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// Enqueue JSON-encodes payload and appends the event to the job stream.
func (d *Dispatcher) Enqueue(ctx context.Context, name string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("jobs: encoding %s payload: %w", name, err)
	}

	err = d.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"id":      xid.New().String(),
			"name":    name,
			"payload": string(body),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("jobs: enqueueing %s: %w", name, err)
	}

	return nil
}
