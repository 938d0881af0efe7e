// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

/*
Package session implements the per-user device seat controller.

A user may hold a fixed number of active device sessions ("seats"). Signing in
from a device either reuses that device's active session, evicts the least
recently seen session to make room, or (in the reject policy) is refused.

# Architecture

  - Store: durable records, with a per-user serialized transaction ([Store.Atomically]).
  - Service: the admission policy and the revocation gateway.
  - EventBus: notifies connected devices that their session was revoked.
  - Handler: the JSON and WebSocket transport.

Records are never deleted. Revocation flips a flag; expired and revoked rows stay
for audit and are excluded from the active set.
*/
package session

import (
	"net/url"
	"time"
)

// # Defaults

const (
	// DefaultSeatCap is the number of concurrently active device sessions per user.
	DefaultSeatCap = 3

	// DefaultSessionTTL is how long a session lives after creation.
	DefaultSessionTTL = 30 * 24 * time.Hour

	// DefaultStoreTimeout bounds every store round-trip made on behalf of a request.
	DefaultStoreTimeout = 10 * time.Second

	// SessionTokenLength is the byte length of the random session token.
	SessionTokenLength = 32
)

// # Domain Entities

// Record is one device session row.
type Record struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	DeviceID     string     `json:"device_id"`
	TokenHash    string     `json:"-"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Revoked      bool       `json:"revoked"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsActive reports whether the record holds a seat at now.
func (record Record) IsActive(now time.Time) bool {
	return !record.Revoked && record.ExpiresAt.After(now)
}

// Status is the outcome of an admission decision.
type Status string

const (
	// StatusReused means the device already held an active session.
	StatusReused Status = "reused"
	// StatusAdmitted means a new session was created, possibly after an eviction.
	StatusAdmitted Status = "admitted"
	// StatusRejected means the user is at the seat cap and eviction is disabled.
	StatusRejected Status = "rejected"
)

// Admission is the result of [Service.Admit].
type Admission struct {
	Status    Status
	SessionID string
	// SessionToken is only set for freshly admitted sessions; it is never stored in clear.
	SessionToken string
	ExpiresAt    time.Time
	// Evicted lists the sessions revoked to free a seat, oldest first.
	Evicted []Record
	// EvictionFailed is set when a best-effort eviction did not go through.
	EvictionFailed bool
}

// EvictedSessionID returns the id of the oldest evicted session, or "".
func (admission *Admission) EvictedSessionID() string {
	if len(admission.Evicted) == 0 {
		return ""
	}
	return admission.Evicted[0].ID
}

// EvictionMode controls what happens when a new device arrives at the seat cap.
type EvictionMode string

const (
	// EvictBestEffort evicts the oldest session; an eviction failure is logged
	// and the new session is admitted anyway.
	EvictBestEffort EvictionMode = "best-effort"
	// EvictStrict evicts the oldest session and fails the admission if that fails.
	EvictStrict EvictionMode = "strict"
	// EvictNever refuses new devices at the cap.
	EvictNever EvictionMode = "reject"
)

// # Reason Codes

// Machine-readable reasons carried by revocations, events and sign-in redirects.
const (
	ReasonSeatLimit = "seat-limit"
	ReasonSignedOut = "signed-out"
	ReasonExpired   = "expired"
)

// SignInURL builds the unauthenticated entry point a forced-out device is sent to.
//
// Example:
//
//	SignInURL("/sign-in", ReasonSeatLimit) // "/sign-in?error=seat-limit"
func SignInURL(signInPath, reason string) string {
	if reason == "" {
		return signInPath
	}
	return signInPath + "?" + url.Values{"error": {reason}}.Encode()
}

// # Field Identifiers

const (
	FieldUserID       = "user_id"
	FieldDeviceID     = "device_id"
	FieldSessionToken = "session_token"
)
