// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session

import (
	"context"
	"time"
)

// # Matchers

// Matcher selects the rows a revocation applies to. Empty fields are wildcards,
// but at least one field must be set.
type Matcher struct {
	ID       string
	UserID   string
	DeviceID string
}

// ByID matches a single session.
func ByID(id string) Matcher { return Matcher{ID: id} }

// ByDevice matches a device's sessions. userID may be empty, in which case the
// device id is matched across users.
func ByDevice(userID, deviceID string) Matcher { return Matcher{UserID: userID, DeviceID: deviceID} }

// ByUser matches every session of a user.
func ByUser(userID string) Matcher { return Matcher{UserID: userID} }

// IsEmpty reports whether the matcher would match every row.
func (matcher Matcher) IsEmpty() bool {
	return matcher.ID == "" && matcher.UserID == "" && matcher.DeviceID == ""
}

// Matches reports whether record satisfies the matcher (revocation state aside).
func (matcher Matcher) Matches(record Record) bool {
	if matcher.IsEmpty() {
		return false
	}
	return (matcher.ID == "" || matcher.ID == record.ID) &&
		(matcher.UserID == "" || matcher.UserID == record.UserID) &&
		(matcher.DeviceID == "" || matcher.DeviceID == record.DeviceID)
}

// # Session Data Access

// Store is the persisted collection of session records. It holds no policy.
//
// Implementations return [ErrConflict] for uniqueness violations and raw errors
// for everything else; the [Service] translates the latter to [ErrStoreUnavailable].
type Store interface {

	/*
		ListActive returns the user's non-revoked, unexpired sessions ordered by
		LastSeenAt ascending (oldest first).

		Parameters:
		  - ctx: context.Context
		  - userID: string
		  - now: time.Time (expiry reference)

		Returns:
		  - []Record: active sessions, oldest first
		  - error: retrieval failures
	*/
	ListActive(ctx context.Context, userID string, now time.Time) ([]Record, error)

	/*
		Insert persists a new session record.

		Returns:
		  - error: ErrConflict on token or active-device collision
	*/
	Insert(ctx context.Context, record *Record) error

	/*
		Revoke flags every matching non-revoked row as revoked. Matching nothing
		is not an error.

		Returns:
		  - []Record: the rows this call revoked
		  - error: persistence failures
	*/
	Revoke(ctx context.Context, matcher Matcher, now time.Time, reason string) ([]Record, error)

	/*
		TouchByTokenHash sets LastSeenAt on the active session owning tokenHash.

		Returns:
		  - *Record: the touched session
		  - error: ErrSessionNotFound when no active session matches
	*/
	TouchByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*Record, error)

	/*
		Atomically runs fn in a transaction serialized against every other
		Atomically call for the same user. If fn returns an error, or ctx ends,
		nothing fn wrote is kept.
	*/
	Atomically(ctx context.Context, userID string, fn func(tx Tx) error) error
}

// Tx is the view of the store inside [Store.Atomically].
type Tx interface {
	// ListActive behaves like [Store.ListActive] inside the transaction.
	ListActive(ctx context.Context, userID string, now time.Time) ([]Record, error)

	// Insert behaves like [Store.Insert] inside the transaction.
	Insert(ctx context.Context, record *Record) error

	// Touch sets LastSeenAt on a session.
	Touch(ctx context.Context, sessionID string, now time.Time) error

	// Evict revokes one session. A failed eviction leaves the transaction usable,
	// so the caller may still insert.
	Evict(ctx context.Context, sessionID string, now time.Time, reason string) error
}
