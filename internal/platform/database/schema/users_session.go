// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

// Package schema names the tables and columns of the relational store.
package schema

// UserSessionTable represents the 'users.session' table
type UserSessionTable struct {
	Table        string
	ID           string
	UserID       string
	DeviceID     string
	TokenHash    string
	LastSeenAt   string
	ExpiresAt    string
	IsRevoked    string
	RevokedAt    string
	RevokeReason string
	CreatedAt    string

	// ActiveDeviceIndex is the partial unique index over non-revoked (user, device) pairs.
	ActiveDeviceIndex string
	// TokenHashKey is the unique constraint over token hashes.
	TokenHashKey string
}

// UserSession is the schema definition for users.session
var UserSession = UserSessionTable{
	Table:        "users.session",
	ID:           "id",
	UserID:       "userid",
	DeviceID:     "deviceid",
	TokenHash:    "tokenhash",
	LastSeenAt:   "lastseenat",
	ExpiresAt:    "expiresat",
	IsRevoked:    "isrevoked",
	RevokedAt:    "revokedat",
	RevokeReason: "revokereason",
	CreatedAt:    "createdat",

	ActiveDeviceIndex: "session_active_device_idx",
	TokenHashKey:      "session_tokenhash_key",
}

// Columns returns all standard column names, in scan order.
func (t UserSessionTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.DeviceID, t.TokenHash, t.LastSeenAt, t.ExpiresAt, t.IsRevoked, t.RevokedAt, t.RevokeReason, t.CreatedAt,
	}
}
