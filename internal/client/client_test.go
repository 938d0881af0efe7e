// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapgens/gapgens/internal/client"
	"github.com/gapgens/gapgens/internal/platform/sec"
	"github.com/gapgens/gapgens/internal/session"
)

// # Fixture

func newServer(t *testing.T) (*client.Client, *session.MemoryStore) {
	t.Helper()

	hasher, err := sec.NewTokenHasher("client-test-secret")
	require.NoError(t, err)

	store := session.NewMemoryStore()
	service := session.NewService(store, hasher, session.DefaultPolicy(), nil,
		session.WithEventBus(session.NewMemoryEventBus(nil)))

	router := chi.NewRouter()
	router.Mount("/session", session.NewHandler(service, session.HandlerConfig{
		SignInPath:   "/sign-in",
		PingInterval: time.Second,
	}).Routes())

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	api, err := client.New(server.URL, client.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return api, store
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := client.New("ftp://example.com")
	assert.Error(t, err)

	_, err = client.New("http://")
	assert.Error(t, err)
}

// # Seat Operations

func TestClient_RegisterReuseAndRevoke(t *testing.T) {
	api, _ := newServer(t)
	ctx := context.Background()

	first, err := api.Register(ctx, "user-1", "device-a")
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, session.StatusAdmitted, first.Status)
	assert.NotEmpty(t, first.SessionToken)

	again, err := api.Register(ctx, "user-1", "device-a")
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, first.SessionID, again.SessionID)

	beat, err := api.Heartbeat(ctx, first.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, beat.SessionID)

	active, err := api.Active(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	revoked, err := api.RevokeDevice(ctx, "device-a")
	require.NoError(t, err)
	assert.Equal(t, 1, revoked)

	revoked, err = api.RevokeDevice(ctx, "device-a")
	require.NoError(t, err)
	assert.Zero(t, revoked, "revoking twice is a no-op")
}

func TestClient_Logout(t *testing.T) {
	api, _ := newServer(t)
	ctx := context.Background()

	for _, device := range []string{"device-a", "device-b"} {
		_, err := api.Register(ctx, "user-1", device)
		require.NoError(t, err)
	}

	revoked, err := api.Logout(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	active, err := api.Active(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestClient_ValidationErrorIsAPIError(t *testing.T) {
	api, _ := newServer(t)

	_, err := api.Register(context.Background(), "", "device-a")

	var apiError *client.APIError
	require.ErrorAs(t, err, &apiError)
	assert.Equal(t, http.StatusBadRequest, apiError.StatusCode)
	assert.NotEmpty(t, apiError.Code)
	assert.True(t, client.IsCode(err, apiError.Code))
}

func TestClient_HeartbeatUnknownToken(t *testing.T) {
	api, _ := newServer(t)

	_, err := api.Heartbeat(context.Background(), "not-a-token")

	var apiError *client.APIError
	require.ErrorAs(t, err, &apiError)
	assert.Equal(t, http.StatusNotFound, apiError.StatusCode)
}

// # Revocation Feed

func TestClient_WatchRevocationsReceivesEviction(t *testing.T) {
	api, _ := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	oldest, err := api.Register(ctx, "user-1", "device-a")
	require.NoError(t, err)

	events, err := api.WatchRevocations(ctx, "user-1", "device-a")
	require.NoError(t, err)

	for _, device := range []string{"device-b", "device-c", "device-d"} {
		_, err := api.Register(ctx, "user-1", device)
		require.NoError(t, err)
	}

	select {
	case event, ok := <-events:
		require.True(t, ok, "feed closed before delivering the eviction")
		assert.Equal(t, session.EventEvicted, event.Kind)
		assert.Equal(t, oldest.SessionID, event.SessionID)
		assert.Equal(t, session.ReasonSeatLimit, event.Reason)
	case <-ctx.Done():
		t.Fatal("no eviction event received")
	}

	select {
	case _, ok := <-events:
		assert.False(t, ok, "feed closes after one event")
	case <-ctx.Done():
		t.Fatal("feed did not close")
	}
}

func TestClient_WatchRevocationsClosesOnCancel(t *testing.T) {
	api, _ := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := api.WatchRevocations(ctx, "user-1", "device-a")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("feed did not close after cancel")
	}
}

func TestClient_WatchRevocationsRefused(t *testing.T) {
	api, _ := newServer(t)

	_, err := api.WatchRevocations(context.Background(), "user-1", "")

	var apiError *client.APIError
	require.ErrorAs(t, err, &apiError)
	assert.Equal(t, http.StatusBadRequest, apiError.StatusCode)
}
