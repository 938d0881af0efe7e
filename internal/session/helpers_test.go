// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gapgens/gapgens/internal/platform/sec"
	"github.com/gapgens/gapgens/internal/session"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// # Clock

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: baseTime} }

func (clock *fakeClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

func (clock *fakeClock) Advance(d time.Duration) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(d)
}

// # Service Fixture

func newHasher(t *testing.T) *sec.TokenHasher {
	t.Helper()
	hasher, err := sec.NewTokenHasher("test-session-secret")
	require.NoError(t, err)
	return hasher
}

func newService(t *testing.T, store session.Store, policy session.Policy, options ...session.Option) *session.Service {
	t.Helper()
	return session.NewService(store, newHasher(t), policy, nil, options...)
}

func activeCount(t *testing.T, store session.Store, userID string, now time.Time) int {
	t.Helper()
	active, err := store.ListActive(context.Background(), userID, now)
	require.NoError(t, err)
	return len(active)
}

func sequentialTokens() func() (string, error) {
	var counter atomic.Int64
	return func() (string, error) {
		return fmt.Sprintf("token-%d", counter.Add(1)), nil
	}
}

// # Fault-Injecting Stores

// countingStore records whether any store method was reached.
type countingStore struct {
	session.Store
	calls atomic.Int64
}

func (store *countingStore) ListActive(ctx context.Context, userID string, now time.Time) ([]session.Record, error) {
	store.calls.Add(1)
	return store.Store.ListActive(ctx, userID, now)
}

func (store *countingStore) Revoke(ctx context.Context, matcher session.Matcher, now time.Time, reason string) ([]session.Record, error) {
	store.calls.Add(1)
	return store.Store.Revoke(ctx, matcher, now, reason)
}

func (store *countingStore) TouchByTokenHash(ctx context.Context, hash string, now time.Time) (*session.Record, error) {
	store.calls.Add(1)
	return store.Store.TouchByTokenHash(ctx, hash, now)
}

func (store *countingStore) Atomically(ctx context.Context, userID string, fn func(tx session.Tx) error) error {
	store.calls.Add(1)
	return store.Store.Atomically(ctx, userID, fn)
}

// evictFailingStore makes every eviction inside Atomically fail.
type evictFailingStore struct {
	*session.MemoryStore
}

type evictFailingTx struct {
	session.Tx
}

func (evictFailingTx) Evict(context.Context, string, time.Time, string) error {
	return errors.New("connection reset by peer")
}

func (store evictFailingStore) Atomically(ctx context.Context, userID string, fn func(tx session.Tx) error) error {
	return store.MemoryStore.Atomically(ctx, userID, func(tx session.Tx) error {
		return fn(evictFailingTx{Tx: tx})
	})
}

// stallingStore blocks every call until ctx ends.
type stallingStore struct {
	*session.MemoryStore
}

func (stallingStore) ListActive(ctx context.Context, _ string, _ time.Time) ([]session.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stallingStore) Revoke(ctx context.Context, _ session.Matcher, _ time.Time, _ string) ([]session.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stallingStore) Atomically(ctx context.Context, _ string, _ func(tx session.Tx) error) error {
	<-ctx.Done()
	return ctx.Err()
}

// brokenStore fails every call with a driver-shaped error.
type brokenStore struct {
	*session.MemoryStore
}

var errDriver = errors.New("pgconn: dial tcp 10.0.0.5:5432: connection refused")

func (brokenStore) ListActive(context.Context, string, time.Time) ([]session.Record, error) {
	return nil, errDriver
}

func (brokenStore) Atomically(context.Context, string, func(tx session.Tx) error) error {
	return errDriver
}

// # Metrics Spy

type metricsSpy struct {
	mu          sync.Mutex
	admissions  map[string]int
	evictions   map[string]int
	revocations map[string]int
}

func newMetricsSpy() *metricsSpy {
	return &metricsSpy{admissions: map[string]int{}, evictions: map[string]int{}, revocations: map[string]int{}}
}

func (spy *metricsSpy) ObserveAdmission(status string, _ time.Duration) {
	spy.mu.Lock()
	defer spy.mu.Unlock()
	spy.admissions[status]++
}

func (spy *metricsSpy) ObserveEviction(result string) {
	spy.mu.Lock()
	defer spy.mu.Unlock()
	spy.evictions[result]++
}

func (spy *metricsSpy) ObserveRevocations(scope string, count int) {
	spy.mu.Lock()
	defer spy.mu.Unlock()
	spy.revocations[scope] += count
}
