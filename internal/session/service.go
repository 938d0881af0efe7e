// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gapgens/gapgens/internal/platform/sec"
	"github.com/gapgens/gapgens/pkg/uuid"
)

// # Policy

// Policy holds the seat admission settings.
type Policy struct {
	SeatCap      int
	SessionTTL   time.Duration
	StoreTimeout time.Duration
	EvictionMode EvictionMode
	// TouchOnReuse refreshes LastSeenAt when a known device is admitted again,
	// so an actively used device is not the next eviction candidate.
	TouchOnReuse bool
}

// DefaultPolicy returns three seats, 30-day sessions and best-effort eviction.
func DefaultPolicy() Policy {
	return Policy{
		SeatCap:      DefaultSeatCap,
		SessionTTL:   DefaultSessionTTL,
		StoreTimeout: DefaultStoreTimeout,
		EvictionMode: EvictBestEffort,
		TouchOnReuse: true,
	}
}

func (policy Policy) withDefaults() Policy {
	defaults := DefaultPolicy()
	if policy.SeatCap < 1 {
		policy.SeatCap = defaults.SeatCap
	}
	if policy.SessionTTL <= 0 {
		policy.SessionTTL = defaults.SessionTTL
	}
	if policy.StoreTimeout <= 0 {
		policy.StoreTimeout = defaults.StoreTimeout
	}
	if policy.EvictionMode == "" {
		policy.EvictionMode = defaults.EvictionMode
	}
	return policy
}

// # Collaborators

// Metrics receives admission and revocation outcomes.
type Metrics interface {
	ObserveAdmission(status string, elapsed time.Duration)
	ObserveEviction(result string)
	ObserveRevocations(scope string, count int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveAdmission(string, time.Duration) {}
func (noopMetrics) ObserveEviction(string)                 {}
func (noopMetrics) ObserveRevocations(string, int)         {}

// TokenHasher digests session tokens before they reach the store.
type TokenHasher interface {
	HashToken(token string) string
}

// Option configures a [Service].
type Option func(*Service)

// WithEventBus publishes evictions and revocations on bus.
func WithEventBus(bus EventBus) Option {
	return func(service *Service) { service.events = bus }
}

// WithMetrics records outcomes on metrics.
func WithMetrics(metrics Metrics) Option {
	return func(service *Service) { service.metrics = metrics }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(service *Service) { service.now = now }
}

// WithTokenGenerator overrides how fresh session tokens are produced.
func WithTokenGenerator(generate func() (string, error)) Option {
	return func(service *Service) { service.newToken = generate }
}

// # Service

// Service is the seat admission policy and the revocation gateway.
type Service struct {
	store   Store
	hasher  TokenHasher
	policy  Policy
	logger  *slog.Logger
	events  EventBus
	metrics Metrics

	now      func() time.Time
	newToken func() (string, error)
}

// NewService constructs a session service.
func NewService(store Store, hasher TokenHasher, policy Policy, logger *slog.Logger, options ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	service := &Service{
		store:   store,
		hasher:  hasher,
		policy:  policy.withDefaults(),
		logger:  logger,
		metrics: noopMetrics{},
		now:     func() time.Time { return time.Now().UTC() },
		newToken: func() (string, error) {
			return sec.GenerateSecureToken(SessionTokenLength)
		},
	}

	for _, option := range options {
		option(service)
	}

	return service
}

// Policy returns the effective admission settings.
func (service *Service) Policy() Policy {
	return service.policy
}

/*
Admit decides whether deviceID may hold one of userID's seats.

The list/decide/evict/insert sequence runs inside one [Store.Atomically] call,
so concurrent admissions for the same user never exceed the seat cap. A
conflict (token collision or duplicate device row) is retried once with a
fresh token and a fresh transaction.

Parameters:
  - ctx: context.Context
  - userID: string (issued by the auth provider)
  - deviceID: string (stable per client installation)

Returns:
  - *Admission: reused, admitted (with the clear-text token) or rejected
  - error: ErrInvalidArgument, ErrConflict, or ErrStoreUnavailable
*/
func (service *Service) Admit(ctx context.Context, userID, deviceID string) (*Admission, error) {
	if userID == "" {
		return nil, &ArgumentError{Field: FieldUserID}
	}
	if deviceID == "" {
		return nil, &ArgumentError{Field: FieldDeviceID}
	}

	started := time.Now()

	admission, err := service.admitOnce(ctx, userID, deviceID)
	if errors.Is(err, ErrConflict) {
		service.logger.Warn("seat_admission_conflict_retry",
			slog.String("user_id", userID),
			slog.String("device_id", deviceID),
		)
		admission, err = service.admitOnce(ctx, userID, deviceID)
	}

	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, storeUnavailable("admit", err)
	}

	service.metrics.ObserveAdmission(string(admission.Status), time.Since(started))
	for range admission.Evicted {
		service.metrics.ObserveEviction("evicted")
	}
	if admission.EvictionFailed {
		service.metrics.ObserveEviction("failed")
	}

	service.logger.Info("seat_admission_decided",
		slog.String("user_id", userID),
		slog.String("device_id", deviceID),
		slog.String("status", string(admission.Status)),
		slog.String("session_id", admission.SessionID),
		slog.Int("evicted", len(admission.Evicted)),
	)

	for _, victim := range admission.Evicted {
		service.publish(ctx, newEvent(EventEvicted, victim, ReasonSeatLimit, service.now()))
	}

	return admission, nil
}

func (service *Service) admitOnce(ctx context.Context, userID, deviceID string) (*Admission, error) {
	token, err := service.newToken()
	if err != nil {
		return nil, fmt.Errorf("session_token_generation_failed: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, service.policy.StoreTimeout)
	defer cancel()

	now := service.now()

	var admission *Admission
	err = service.store.Atomically(storeCtx, userID, func(tx Tx) error {
		admission = nil

		active, err := tx.ListActive(storeCtx, userID, now)
		if err != nil {
			return err
		}

		for _, record := range active {
			if record.DeviceID != deviceID {
				continue
			}
			if service.policy.TouchOnReuse {
				if err := tx.Touch(storeCtx, record.ID, now); err != nil {
					return err
				}
			}
			admission = &Admission{Status: StatusReused, SessionID: record.ID, ExpiresAt: record.ExpiresAt}
			return nil
		}

		result := &Admission{}
		if len(active) >= service.policy.SeatCap {
			if service.policy.EvictionMode == EvictNever {
				admission = &Admission{Status: StatusRejected}
				return nil
			}

			// Oldest first; more than one only if the cap was lowered.
			for _, victim := range active[:len(active)-service.policy.SeatCap+1] {
				if err := tx.Evict(storeCtx, victim.ID, now, ReasonSeatLimit); err != nil {
					if service.policy.EvictionMode == EvictStrict {
						return fmt.Errorf("seat_eviction_failed: %w", err)
					}

					service.logger.Warn("seat_eviction_failed",
						slog.String("user_id", userID),
						slog.String("session_id", victim.ID),
						slog.Any("error", err),
					)
					result.EvictionFailed = true
					continue
				}

				markRevoked(&victim, now, ReasonSeatLimit)
				result.Evicted = append(result.Evicted, victim)
			}
		}

		record := &Record{
			ID:         uuid.New(),
			UserID:     userID,
			DeviceID:   deviceID,
			TokenHash:  service.hasher.HashToken(token),
			LastSeenAt: now,
			ExpiresAt:  now.Add(service.policy.SessionTTL),
			CreatedAt:  now,
		}
		if err := tx.Insert(storeCtx, record); err != nil {
			return err
		}

		result.Status = StatusAdmitted
		result.SessionID = record.ID
		result.SessionToken = token
		result.ExpiresAt = record.ExpiresAt
		admission = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return admission, nil
}

// # Revocation Gateway

/*
RevokeByDevice revokes the device's active sessions. An empty userID matches
the device across users. Matching nothing is success.

Returns:
  - int: number of sessions revoked by this call
  - error: ErrInvalidArgument or ErrStoreUnavailable
*/
func (service *Service) RevokeByDevice(ctx context.Context, userID, deviceID string) (int, error) {
	if deviceID == "" {
		return 0, &ArgumentError{Field: FieldDeviceID}
	}
	return service.revoke(ctx, "device", ByDevice(userID, deviceID))
}

// RevokeAllForUser revokes every active session of userID.
func (service *Service) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, &ArgumentError{Field: FieldUserID}
	}
	return service.revoke(ctx, "user", ByUser(userID))
}

// RevokeSession revokes a single session. A non-empty userID restricts the
// match to that user's sessions.
func (service *Service) RevokeSession(ctx context.Context, userID, sessionID string) (int, error) {
	if sessionID == "" {
		return 0, &ArgumentError{Field: "session_id"}
	}
	return service.revoke(ctx, "session", Matcher{ID: sessionID, UserID: userID})
}

func (service *Service) revoke(ctx context.Context, scope string, matcher Matcher) (int, error) {
	storeCtx, cancel := context.WithTimeout(ctx, service.policy.StoreTimeout)
	defer cancel()

	now := service.now()

	revoked, err := service.store.Revoke(storeCtx, matcher, now, ReasonSignedOut)
	if err != nil {
		return 0, storeUnavailable("revoke", err)
	}

	service.metrics.ObserveRevocations(scope, len(revoked))
	service.logger.Info("session_revoked",
		slog.String("scope", scope),
		slog.String("user_id", matcher.UserID),
		slog.String("device_id", matcher.DeviceID),
		slog.Int("count", len(revoked)),
	)

	for _, record := range revoked {
		service.publish(ctx, newEvent(EventRevoked, record, ReasonSignedOut, now))
	}

	return len(revoked), nil
}

// # Heartbeat & Listing

/*
Heartbeat refreshes LastSeenAt of the active session identified by token.

Returns:
  - *Record: the refreshed session
  - error: ErrInvalidArgument, ErrSessionNotFound or ErrStoreUnavailable
*/
func (service *Service) Heartbeat(ctx context.Context, token string) (*Record, error) {
	if token == "" {
		return nil, &ArgumentError{Field: FieldSessionToken}
	}

	storeCtx, cancel := context.WithTimeout(ctx, service.policy.StoreTimeout)
	defer cancel()

	record, err := service.store.TouchByTokenHash(storeCtx, service.hasher.HashToken(token), service.now())
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, storeUnavailable("heartbeat", err)
	}

	return record, nil
}

// ListActive returns userID's active sessions, least recently seen first.
func (service *Service) ListActive(ctx context.Context, userID string) ([]Record, error) {
	if userID == "" {
		return nil, &ArgumentError{Field: FieldUserID}
	}

	storeCtx, cancel := context.WithTimeout(ctx, service.policy.StoreTimeout)
	defer cancel()

	records, err := service.store.ListActive(storeCtx, userID, service.now())
	if err != nil {
		return nil, storeUnavailable("list_active", err)
	}

	return records, nil
}

// Subscribe exposes the configured event bus to transports.
func (service *Service) Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error) {
	if service.events == nil {
		return nil, nil, errors.New("session: no event bus configured")
	}
	return service.events.Subscribe(ctx, userID)
}

// # Helpers

// publish runs after commit and outlives request cancellation; failures are logged only.
func (service *Service) publish(ctx context.Context, event Event) {
	if service.events == nil {
		return
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), service.policy.StoreTimeout)
	defer cancel()

	if err := service.events.Publish(publishCtx, event); err != nil {
		service.logger.Warn("session_event_publish_failed",
			slog.String("user_id", event.UserID),
			slog.String("session_id", event.SessionID),
			slog.Any("error", err),
		)
	}
}

func storeUnavailable(operation string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrInvalidArgument) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, operation, err)
}

var _ TokenHasher = (*sec.TokenHasher)(nil)
