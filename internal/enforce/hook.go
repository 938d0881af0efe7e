// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

/*
Package enforce signs a device out when the seat service says it must go.

# Triggers

  - A rejected admission (the user is at the seat cap and eviction is disabled).
  - An eviction or revocation event addressed to this device.

# Effects

Local state is cleared first and unconditionally: in-memory auth, then the
persisted credentials. Only then is the device navigated to the sign-in entry
point with a machine-readable reason, and the server is asked (best effort) to
revoke the device. The network never gates local sign-out.

A Hook fires once per signed-in session. [Hook.Reset] re-arms it after a
successful admission.
*/
package enforce

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gapgens/gapgens/internal/session"
)

// DefaultRemoteTimeout bounds the best-effort remote revoke.
const DefaultRemoteTimeout = 5 * time.Second

// LocalState is the device's view of its own sign-in.
type LocalState interface {
	// ClearAuth drops cached identity from memory.
	ClearAuth()
	// ClearCredentials removes persisted session credentials.
	ClearCredentials() error
}

// Navigator moves the device to another entry point.
type Navigator interface {
	Navigate(target string)
}

// RemoteRevoker asks the server to sign the device out.
type RemoteRevoker interface {
	RevokeDevice(ctx context.Context, deviceID string) (int, error)
}

// Config identifies the device and where it goes when forced out.
type Config struct {
	DeviceID      string
	SignInPath    string
	RemoteTimeout time.Duration
}

// Hook is the client enforcement hook.
type Hook struct {
	config    Config
	local     LocalState
	navigator Navigator
	remote    RemoteRevoker
	logger    *slog.Logger

	fired atomic.Bool
}

// Option customizes a [Hook].
type Option func(*Hook)

// WithRemoteRevoker enables the best-effort server-side revoke on forced logout.
func WithRemoteRevoker(remote RemoteRevoker) Option {
	return func(hook *Hook) { hook.remote = remote }
}

// New creates a hook for one device.
func New(config Config, local LocalState, navigator Navigator, logger *slog.Logger, options ...Option) *Hook {
	if config.SignInPath == "" {
		config.SignInPath = "/sign-in"
	}
	if config.RemoteTimeout <= 0 {
		config.RemoteTimeout = DefaultRemoteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	hook := &Hook{
		config:    config,
		local:     local,
		navigator: navigator,
		logger:    logger.With(slog.String("device_id", config.DeviceID)),
	}
	for _, option := range options {
		option(hook)
	}
	return hook
}

/*
ForceLogout signs the device out with reason.

Parameters:
  - ctx: bounds only the remote revoke.
  - reason: machine-readable, e.g. [session.ReasonSeatLimit].

Returns:
  - true when this call navigated; false when the hook had already fired.
*/
func (hook *Hook) ForceLogout(ctx context.Context, reason string) bool {
	// Clearing is idempotent and repeated on every call.
	hook.local.ClearAuth()
	if err := hook.local.ClearCredentials(); err != nil {
		hook.logger.Warn("enforce_clear_credentials_failed", slog.Any("error", err))
	}

	if !hook.fired.CompareAndSwap(false, true) {
		return false
	}

	target := session.SignInURL(hook.config.SignInPath, reason)
	hook.logger.Info("enforce_forced_logout", slog.String("reason", reason), slog.String("redirect", target))
	hook.navigator.Navigate(target)

	hook.revokeRemote(ctx)
	return true
}

func (hook *Hook) revokeRemote(ctx context.Context) {
	if hook.remote == nil || hook.config.DeviceID == "" {
		return
	}

	remoteCtx, cancel := context.WithTimeout(ctx, hook.config.RemoteTimeout)
	defer cancel()

	if _, err := hook.remote.RevokeDevice(remoteCtx, hook.config.DeviceID); err != nil {
		hook.logger.Warn("enforce_remote_revoke_failed", slog.Any("error", err))
	}
}

// Reset re-arms the hook for a new session.
func (hook *Hook) Reset() {
	hook.fired.Store(false)
}

// Fired reports whether the hook has signed the current session out.
func (hook *Hook) Fired() bool {
	return hook.fired.Load()
}

// OnAdmission applies a registration reply: a rejection forces logout, any
// other outcome re-arms the hook.
func (hook *Hook) OnAdmission(ctx context.Context, response *session.RegisterResponse) bool {
	if response == nil {
		return false
	}
	if response.Status != session.StatusRejected {
		hook.Reset()
		return false
	}

	reason := response.Reason
	if reason == "" {
		reason = session.ReasonSeatLimit
	}
	return hook.ForceLogout(ctx, reason)
}

// Run consumes events until ctx ends or events is closed, forcing logout on
// the first one addressed to this device.
func (hook *Hook) Run(ctx context.Context, events <-chan session.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !event.Targets(hook.config.DeviceID) {
				continue
			}
			hook.ForceLogout(ctx, event.Reason)
		}
	}
}
