// Package checkpoint publishes phase-boundary observation events to a
// Redis Stream so external observers can watch coordination runs without
// being on the critical path.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nidhogg/foreman/internal/orchestrator"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultStream = "foreman:checkpoints"

// Publisher writes checkpoint events to a Redis Stream. It implements
// orchestrator.CheckpointSink.
type Publisher struct {
	rdb    *redis.Client
	stream string
	logger *zap.Logger
}

// NewPublisher connects to Redis. An empty stream name uses the default.
func NewPublisher(redisURL, stream string, logger *zap.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if stream == "" {
		stream = defaultStream
	}
	return &Publisher{rdb: rdb, stream: stream, logger: logger}, nil
}

// Emit appends one event to the stream.
func (p *Publisher) Emit(ctx context.Context, ev orchestrator.CheckpointEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("emit checkpoint to %s: %w", p.stream, err)
	}
	p.logger.Debug("checkpoint emitted",
		zap.String("session", ev.SessionID),
		zap.String("phase", ev.Phase),
		zap.String("kind", ev.Kind))
	return nil
}

// Recent returns up to count most recent events, newest first.
func (p *Publisher) Recent(ctx context.Context, count int64) ([]orchestrator.CheckpointEvent, error) {
	if count <= 0 {
		count = 50
	}
	msgs, err := p.rdb.XRevRangeN(ctx, p.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read checkpoints from %s: %w", p.stream, err)
	}
	events := make([]orchestrator.CheckpointEvent, 0, len(msgs))
	for _, m := range msgs {
		data, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var ev orchestrator.CheckpointEvent
		if json.Unmarshal([]byte(data), &ev) == nil {
			events = append(events, ev)
		}
	}
	return events, nil
}

// Subscribe tails the stream, emitting events on the returned channel.
// Cancel the context to stop.
func (p *Publisher) Subscribe(ctx context.Context) <-chan orchestrator.CheckpointEvent {
	ch := make(chan orchestrator.CheckpointEvent, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := p.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{p.stream, lastID},
				Count:   10,
				Block:   2 * time.Second,
			}).Result()
			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev orchestrator.CheckpointEvent
					if json.Unmarshal([]byte(data), &ev) == nil {
						ch <- ev
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
