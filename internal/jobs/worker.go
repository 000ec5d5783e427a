package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	group = "splitr-workers"

	// readBlock bounds how long one XREADGROUP call waits for new events, so
	// the loop re-checks ctx at least this often.
	readBlock = 5 * time.Second
)

// HandlerFunc processes one event. Returning an error leaves the event
// unacknowledged, so the group redelivers it to a future read.
type HandlerFunc func(ctx context.Context, evt Event) error

// Worker consumes the job stream through a consumer group and routes events
// to registered handlers by name.
//
// Register all handlers before calling Run; the handler map is not
// synchronized against a running worker.
type Worker struct {
	rdb      *redis.Client
	consumer string
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewWorker creates a Worker. consumer names this process within the group
// (e.g. the hostname), so pending entries can be traced to their owner.
func NewWorker(rdb *redis.Client, consumer string, logger *slog.Logger) *Worker {
	return &Worker{
		rdb:      rdb,
		consumer: consumer,
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Register routes events with the given name to fn.
func (w *Worker) Register(name string, fn HandlerFunc) {
	w.handlers[name] = fn
}

// Run consumes the stream until ctx is cancelled. It creates the consumer
// group on first use and blocks in batches of XREADGROUP reads.
func (w *Worker) Run(ctx context.Context) error {
	// MKSTREAM creates the stream if the dispatcher hasn't written yet.
	// BUSYGROUP just means a previous run already created the group.
	err := w.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("jobs: creating consumer group: %w", err)
	}

	w.logger.Info("job worker started",
		slog.String("stream", stream),
		slog.String("consumer", w.consumer),
	)

	for {
		if ctx.Err() != nil {
			w.logger.Info("job worker stopped")
			return nil
		}

		streams, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: w.consumer,
			Streams:  []string{stream, ">"},
			Count:    16,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // block timeout, nothing new
			}
			if ctx.Err() != nil {
				w.logger.Info("job worker stopped")
				return nil
			}
			w.logger.Error("job worker read failed", slog.String("error", err.Error()))
			time.Sleep(time.Second) // don't spin on a broken connection
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				w.process(ctx, msg)
			}
		}
	}
}

// process decodes and dispatches one stream message, acknowledging it on
// success. Undecodable messages are acknowledged too — redelivering them
// can never succeed.
func (w *Worker) process(ctx context.Context, msg redis.XMessage) {
	evt, err := eventFromValues(msg.Values)
	if err != nil {
		w.logger.Error("job worker: dropping malformed event",
			slog.String("messageID", msg.ID),
			slog.String("error", err.Error()),
		)
		w.ack(ctx, msg.ID)
		return
	}

	if err := w.dispatch(ctx, evt); err != nil {
		// Leave unacked: the pending entry is redelivered later.
		w.logger.Error("job handler failed",
			slog.String("event", evt.Name),
			slog.String("eventID", evt.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.ack(ctx, msg.ID)
}

// dispatch routes evt to its registered handler. Events with no handler are
// logged and treated as handled — an old worker seeing a new event name must
// not wedge the stream.
func (w *Worker) dispatch(ctx context.Context, evt Event) error {
	fn, ok := w.handlers[evt.Name]
	if !ok {
		w.logger.Warn("job worker: no handler for event", slog.String("event", evt.Name))
		return nil
	}
	return fn(ctx, evt)
}

func (w *Worker) ack(ctx context.Context, messageID string) {
	if err := w.rdb.XAck(ctx, stream, group, messageID).Err(); err != nil {
		w.logger.Error("job worker ack failed",
			slog.String("messageID", messageID),
			slog.String("error", err.Error()),
		)
	}
}

// eventFromValues rebuilds an Event from the XADD field map written by
// Dispatcher.Enqueue.
func eventFromValues(values map[string]any) (Event, error) {
	name, ok := values["name"].(string)
	if !ok || name == "" {
		return Event{}, errors.New("event has no name field")
	}

	payload, ok := values["payload"].(string)
	if !ok {
		return Event{}, errors.New("event has no payload field")
	}

	id, _ := values["id"].(string)

	return Event{
		ID:      id,
		Name:    name,
		Payload: []byte(payload),
	}, nil
}
