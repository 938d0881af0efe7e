// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package enforce_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapgens/gapgens/internal/enforce"
	"github.com/gapgens/gapgens/internal/session"
)

// # Fakes

type fakeState struct {
	mutex        sync.Mutex
	authCleared  int
	credsCleared int
	clearErr     error
	signedIn     bool
}

func (state *fakeState) ClearAuth() {
	state.mutex.Lock()
	defer state.mutex.Unlock()
	state.authCleared++
	state.signedIn = false
}

func (state *fakeState) ClearCredentials() error {
	state.mutex.Lock()
	defer state.mutex.Unlock()
	state.credsCleared++
	return state.clearErr
}

type fakeNavigator struct {
	mutex   sync.Mutex
	targets []string
}

func (navigator *fakeNavigator) Navigate(target string) {
	navigator.mutex.Lock()
	defer navigator.mutex.Unlock()
	navigator.targets = append(navigator.targets, target)
}

func (navigator *fakeNavigator) visited() []string {
	navigator.mutex.Lock()
	defer navigator.mutex.Unlock()
	return append([]string(nil), navigator.targets...)
}

type fakeRevoker struct {
	mutex   sync.Mutex
	devices []string
	err     error
	block   bool
}

func (revoker *fakeRevoker) RevokeDevice(ctx context.Context, deviceID string) (int, error) {
	if revoker.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	revoker.mutex.Lock()
	defer revoker.mutex.Unlock()
	revoker.devices = append(revoker.devices, deviceID)
	return 1, revoker.err
}

func newHook(state *fakeState, navigator *fakeNavigator, options ...enforce.Option) *enforce.Hook {
	return enforce.New(enforce.Config{
		DeviceID:      "device-a",
		SignInPath:    "/sign-in",
		RemoteTimeout: 50 * time.Millisecond,
	}, state, navigator, slog.New(slog.DiscardHandler), options...)
}

// # Forced Logout

func TestForceLogout_ClearsThenNavigatesOnce(t *testing.T) {
	state := &fakeState{signedIn: true}
	navigator := &fakeNavigator{}
	revoker := &fakeRevoker{}
	hook := newHook(state, navigator, enforce.WithRemoteRevoker(revoker))

	assert.True(t, hook.ForceLogout(context.Background(), session.ReasonSeatLimit))
	assert.False(t, hook.ForceLogout(context.Background(), session.ReasonSeatLimit))

	assert.False(t, state.signedIn)
	assert.Equal(t, 2, state.authCleared, "local state is cleared on every call")
	assert.Equal(t, 2, state.credsCleared)
	assert.Equal(t, []string{"/sign-in?error=seat-limit"}, navigator.visited())
	assert.Equal(t, []string{"device-a"}, revoker.devices)
	assert.True(t, hook.Fired())
}

func TestForceLogout_LocalClearingSurvivesNetworkFailure(t *testing.T) {
	state := &fakeState{signedIn: true}
	navigator := &fakeNavigator{}
	hook := newHook(state, navigator, enforce.WithRemoteRevoker(&fakeRevoker{block: true}))

	started := time.Now()
	assert.True(t, hook.ForceLogout(context.Background(), session.ReasonSignedOut))

	assert.Less(t, time.Since(started), 2*time.Second, "remote revoke is bounded")
	assert.Equal(t, 1, state.credsCleared)
	assert.Equal(t, []string{"/sign-in?error=signed-out"}, navigator.visited())
}

func TestForceLogout_CredentialErrorStillNavigates(t *testing.T) {
	state := &fakeState{clearErr: errors.New("disk full")}
	navigator := &fakeNavigator{}
	hook := newHook(state, navigator)

	assert.True(t, hook.ForceLogout(context.Background(), session.ReasonSeatLimit))
	assert.Len(t, navigator.visited(), 1)
}

func TestForceLogout_RemoteErrorIgnored(t *testing.T) {
	navigator := &fakeNavigator{}
	hook := newHook(&fakeState{}, navigator, enforce.WithRemoteRevoker(&fakeRevoker{err: errors.New("offline")}))

	assert.True(t, hook.ForceLogout(context.Background(), session.ReasonSeatLimit))
	assert.Len(t, navigator.visited(), 1)
}

func TestForceLogout_ConcurrentCallsNavigateOnce(t *testing.T) {
	navigator := &fakeNavigator{}
	hook := newHook(&fakeState{}, navigator)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hook.ForceLogout(context.Background(), session.ReasonSeatLimit)
		}()
	}
	wg.Wait()

	assert.Len(t, navigator.visited(), 1)
}

// # Admission Replies

func TestOnAdmission(t *testing.T) {
	navigator := &fakeNavigator{}
	hook := newHook(&fakeState{}, navigator)
	ctx := context.Background()

	assert.False(t, hook.OnAdmission(ctx, nil))
	assert.False(t, hook.OnAdmission(ctx, &session.RegisterResponse{Success: true, Status: session.StatusAdmitted}))
	assert.Empty(t, navigator.visited())

	rejected := &session.RegisterResponse{Status: session.StatusRejected}
	assert.True(t, hook.OnAdmission(ctx, rejected), "missing reason defaults to seat-limit")
	assert.False(t, hook.OnAdmission(ctx, rejected))

	// A later successful sign-in re-arms the hook.
	assert.False(t, hook.OnAdmission(ctx, &session.RegisterResponse{Success: true, Status: session.StatusReused}))
	assert.False(t, hook.Fired())
	assert.True(t, hook.OnAdmission(ctx, rejected))

	assert.Equal(t, []string{"/sign-in?error=seat-limit", "/sign-in?error=seat-limit"}, navigator.visited())
}

// # Event Loop

func TestRun_IgnoresOtherDevices(t *testing.T) {
	navigator := &fakeNavigator{}
	hook := newHook(&fakeState{}, navigator)

	events := make(chan session.Event, 3)
	events <- session.Event{Kind: session.EventEvicted, DeviceID: "device-b", Reason: session.ReasonSeatLimit}
	events <- session.Event{Kind: session.EventEvicted, DeviceID: "device-a", Reason: session.ReasonSeatLimit}
	events <- session.Event{Kind: session.EventRevoked, DeviceID: "device-a", Reason: session.ReasonSignedOut}
	close(events)

	require.NoError(t, hook.Run(context.Background(), events))
	assert.Equal(t, []string{"/sign-in?error=seat-limit"}, navigator.visited())
}

func TestRun_StopsOnCancel(t *testing.T) {
	hook := newHook(&fakeState{}, &fakeNavigator{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := hook.Run(ctx, make(chan session.Event))
	assert.ErrorIs(t, err, context.Canceled)
}
