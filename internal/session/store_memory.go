// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore is a process-local [Store] for development, the CLI demo and tests.
//
// A single mutex serializes every operation; [MemoryStore.Atomically] works on a
// staged copy that is committed only if fn succeeds and ctx is still live.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (store *MemoryStore) ListActive(ctx context.Context, userID string, now time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	return memoryListActive(store.records, userID, now), nil
}

func (store *MemoryStore) Insert(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	records, err := memoryInsert(store.records, record)
	if err != nil {
		return err
	}
	store.records = records
	return nil
}

func (store *MemoryStore) Revoke(ctx context.Context, matcher Matcher, now time.Time, reason string) ([]Record, error) {
	if matcher.IsEmpty() {
		return nil, fmt.Errorf("%w: empty revocation matcher", ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	var revoked []Record
	for i := range store.records {
		record := &store.records[i]
		if record.Revoked || !matcher.Matches(*record) {
			continue
		}
		markRevoked(record, now, reason)
		revoked = append(revoked, *record)
	}

	return revoked, nil
}

func (store *MemoryStore) TouchByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	for i := range store.records {
		record := &store.records[i]
		if record.TokenHash == tokenHash && record.IsActive(now) {
			record.LastSeenAt = now
			touched := *record
			return &touched, nil
		}
	}

	return nil, ErrSessionNotFound
}

func (store *MemoryStore) Atomically(ctx context.Context, userID string, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	staged := &memoryTx{records: slices.Clone(store.records)}
	if err := fn(staged); err != nil {
		return err
	}

	// A deadline that passed while fn ran rolls the transaction back.
	if err := ctx.Err(); err != nil {
		return err
	}

	store.records = staged.records
	return nil
}

// Snapshot returns a copy of every record, revoked and expired ones included.
func (store *MemoryStore) Snapshot() []Record {
	store.mu.Lock()
	defer store.mu.Unlock()

	return slices.Clone(store.records)
}

// # Transaction View

type memoryTx struct {
	records []Record
}

func (view *memoryTx) ListActive(ctx context.Context, userID string, now time.Time) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return memoryListActive(view.records, userID, now), nil
}

func (view *memoryTx) Insert(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := memoryInsert(view.records, record)
	if err != nil {
		return err
	}
	view.records = records
	return nil
}

func (view *memoryTx) Touch(ctx context.Context, sessionID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range view.records {
		if view.records[i].ID == sessionID {
			view.records[i].LastSeenAt = now
		}
	}
	return nil
}

func (view *memoryTx) Evict(ctx context.Context, sessionID string, now time.Time, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := range view.records {
		record := &view.records[i]
		if record.ID == sessionID && !record.Revoked {
			markRevoked(record, now, reason)
		}
	}
	return nil
}

// # Helpers

func memoryListActive(records []Record, userID string, now time.Time) []Record {
	var active []Record
	for _, record := range records {
		if record.UserID == userID && record.IsActive(now) {
			active = append(active, record)
		}
	}

	slices.SortStableFunc(active, func(a, b Record) int {
		if c := a.LastSeenAt.Compare(b.LastSeenAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return active
}

// memoryInsert mirrors the Postgres constraints: unique token hashes and at most
// one non-revoked row per (user, device). Expired rows are retired first.
func memoryInsert(records []Record, record *Record) ([]Record, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.LastSeenAt
	}

	for i := range records {
		existing := &records[i]
		if existing.TokenHash == record.TokenHash || existing.ID == record.ID {
			return records, fmt.Errorf("%w: duplicate session token or id", ErrConflict)
		}
		if existing.Revoked || existing.UserID != record.UserID || existing.DeviceID != record.DeviceID {
			continue
		}
		if existing.IsActive(record.CreatedAt) {
			return records, fmt.Errorf("%w: device already holds an active session", ErrConflict)
		}
	}

	for i := range records {
		existing := &records[i]
		if !existing.Revoked && existing.UserID == record.UserID && existing.DeviceID == record.DeviceID {
			markRevoked(existing, record.CreatedAt, ReasonExpired)
		}
	}

	return append(records, *record), nil
}

func markRevoked(record *Record, now time.Time, reason string) {
	revokedAt := now
	record.Revoked = true
	record.RevokedAt = &revokedAt
	record.RevokeReason = reason
}
