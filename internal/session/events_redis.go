// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/gapgens/gapgens/internal/platform/constants"
)

// RedisEventBus is an [EventBus] over Redis pub/sub, one channel per user.
// It lets every API node reach the devices connected to it.
type RedisEventBus struct {
	client redis.UniversalClient
	logger *slog.Logger
	buffer int
}

// NewRedisEventBus creates a Redis-backed event bus.
func NewRedisEventBus(client redis.UniversalClient, logger *slog.Logger) *RedisEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisEventBus{client: client, logger: logger, buffer: DefaultSubscriberBuffer}
}

func eventChannel(userID string) string {
	return constants.RedisPrefixSessionEvents + userID
}

func (bus *RedisEventBus) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("session: encode event: %w", err)
	}

	if err := bus.client.Publish(ctx, eventChannel(event.UserID), payload).Err(); err != nil {
		return fmt.Errorf("session: publish event: %w", err)
	}

	return nil
}

/*
Subscribe opens a Redis subscription for the user's channel and waits for the
server to confirm it, so events published after Subscribe returns are seen.
*/
func (bus *RedisEventBus) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	pubsub := bus.client.Subscribe(ctx, eventChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("session: subscribe events: %w", err)
	}

	subscriptionCtx, stop := context.WithCancel(ctx)
	events := make(chan Event, bus.buffer)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(events)
		defer cancel()

		messages := pubsub.Channel()
		for {
			select {
			case <-subscriptionCtx.Done():
				return
			case message, ok := <-messages:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
					bus.logger.Warn("session_event_decode_failed",
						slog.String("channel", message.Channel),
						slog.Any("error", err),
					)
					continue
				}

				select {
				case events <- event:
				default:
					bus.logger.Warn("session_event_dropped",
						slog.String("user_id", event.UserID),
						slog.String("device_id", event.DeviceID),
						slog.String("kind", string(event.Kind)),
					)
				}
			}
		}
	}()

	return events, cancel, nil
}
