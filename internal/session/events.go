// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventKind distinguishes why a session ended.
type EventKind string

const (
	// EventEvicted is published when a session loses its seat to a newer device.
	EventEvicted EventKind = "evicted"
	// EventRevoked is published for explicit revocations (logout, admin, sign-out everywhere).
	EventRevoked EventKind = "revoked"
)

// Event notifies a device that one of its sessions is no longer valid.
type Event struct {
	Kind      EventKind `json:"kind"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Targets reports whether the event is addressed to deviceID.
func (event Event) Targets(deviceID string) bool {
	return deviceID != "" && event.DeviceID == deviceID
}

func newEvent(kind EventKind, record Record, reason string, at time.Time) Event {
	return Event{
		Kind:      kind,
		UserID:    record.UserID,
		DeviceID:  record.DeviceID,
		SessionID: record.ID,
		Reason:    reason,
		At:        at,
	}
}

// # Event Bus

// EventBus fans revocation events out to the devices of a user.
// Delivery is at-most-once; a device that misses an event learns on its next heartbeat.
type EventBus interface {

	// Publish delivers event to the current subscribers of event.UserID.
	Publish(ctx context.Context, event Event) error

	// Subscribe returns a channel of the user's events. The channel is closed
	// when ctx ends or the returned cancel func is called.
	Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error)
}

// DefaultSubscriberBuffer is the per-subscriber queue depth.
const DefaultSubscriberBuffer = 16

// MemoryEventBus is a process-local [EventBus]. Publish never blocks: a
// subscriber whose queue is full misses the event.
type MemoryEventBus struct {
	logger *slog.Logger
	buffer int

	mu          sync.RWMutex
	subscribers map[string]map[*memorySubscriber]struct{}
}

type memorySubscriber struct {
	events chan Event
	once   sync.Once
}

// NewMemoryEventBus creates an in-process event bus.
func NewMemoryEventBus(logger *slog.Logger) *MemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryEventBus{
		logger:      logger,
		buffer:      DefaultSubscriberBuffer,
		subscribers: make(map[string]map[*memorySubscriber]struct{}),
	}
}

func (bus *MemoryEventBus) Publish(_ context.Context, event Event) error {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for subscriber := range bus.subscribers[event.UserID] {
		select {
		case subscriber.events <- event:
		default:
			bus.logger.Warn("session_event_dropped",
				slog.String("user_id", event.UserID),
				slog.String("device_id", event.DeviceID),
				slog.String("kind", string(event.Kind)),
			)
		}
	}

	return nil
}

func (bus *MemoryEventBus) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	subscriber := &memorySubscriber{events: make(chan Event, bus.buffer)}

	bus.mu.Lock()
	if bus.subscribers[userID] == nil {
		bus.subscribers[userID] = make(map[*memorySubscriber]struct{})
	}
	bus.subscribers[userID][subscriber] = struct{}{}
	bus.mu.Unlock()

	// The channel is closed under the write lock so Publish never sends on it afterwards.
	release := func() {
		subscriber.once.Do(func() {
			bus.mu.Lock()
			delete(bus.subscribers[userID], subscriber)
			if len(bus.subscribers[userID]) == 0 {
				delete(bus.subscribers, userID)
			}
			close(subscriber.events)
			bus.mu.Unlock()
		})
	}

	stop := context.AfterFunc(ctx, release)
	cancel := func() {
		stop()
		release()
	}

	return subscriber.events, cancel, nil
}

// Subscribers returns the number of live subscriptions for userID.
func (bus *MemoryEventBus) Subscribers(userID string) int {
	bus.mu.RLock()
	defer bus.mu.RUnlock()
	return len(bus.subscribers[userID])
}
