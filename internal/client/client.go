// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

/*
Package client is the device-side API client for the session seat service.

It speaks the same JSON envelopes the server writes, so callers get typed
responses and a single [*APIError] for every non-2xx reply.

Usage:

	api, err := client.New("https://api.gapgens.app", client.WithBearerToken(token))
	admission, err := api.Register(ctx, userID, deviceID)
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gapgens/gapgens/internal/platform/apperr"
	"github.com/gapgens/gapgens/internal/platform/constants"
	"github.com/gapgens/gapgens/internal/platform/respond"
	"github.com/gapgens/gapgens/internal/session"
)

// DefaultTimeout bounds each JSON round-trip.
const DefaultTimeout = 15 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// APIError is a non-2xx reply decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    []apperr.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsCode reports whether err is an [*APIError] with the given code.
func IsCode(err error, code string) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.Code == code
}

// # Construction

// Client calls the /session endpoints of one server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	bearer     string
}

// Option customizes a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithBearerToken attaches the auth provider's access token to every call.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearer = token }
}

// New creates a client for the server at baseURL (scheme and host, optional path prefix).
func New(baseURL string, options ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: invalid base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("client: base url is missing a host")
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, option := range options {
		option(c)
	}
	return c, nil
}

// # Seat Operations

// Register asks the server to admit deviceID into one of userID's seats.
// A rejection is a normal reply: check Success and Redirect, not the error.
func (c *Client) Register(ctx context.Context, userID, deviceID string) (*session.RegisterResponse, error) {
	var response session.RegisterResponse
	err := c.post(ctx, "/session/register", map[string]string{
		session.FieldUserID:   userID,
		session.FieldDeviceID: deviceID,
	}, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// RevokeDevice signs deviceID out and returns how many sessions were revoked.
func (c *Client) RevokeDevice(ctx context.Context, deviceID string) (int, error) {
	var response session.RevokeResponse
	if err := c.post(ctx, "/session/revoke", map[string]string{session.FieldDeviceID: deviceID}, &response); err != nil {
		return 0, err
	}
	return response.Revoked, nil
}

// RevokeSession signs out one session of userID.
func (c *Client) RevokeSession(ctx context.Context, userID, sessionID string) (int, error) {
	var response session.RevokeResponse
	err := c.post(ctx, "/session/revoke", map[string]string{
		session.FieldUserID: userID,
		"session_id":        sessionID,
	}, &response)
	if err != nil {
		return 0, err
	}
	return response.Revoked, nil
}

// Logout signs every device of userID out.
func (c *Client) Logout(ctx context.Context, userID string) (int, error) {
	var response session.RevokeResponse
	if err := c.post(ctx, "/session/logout", map[string]string{session.FieldUserID: userID}, &response); err != nil {
		return 0, err
	}
	return response.Revoked, nil
}

// Heartbeat refreshes the last-seen time of the session holding token.
func (c *Client) Heartbeat(ctx context.Context, token string) (*session.HeartbeatResponse, error) {
	var response session.HeartbeatResponse
	if err := c.post(ctx, "/session/heartbeat", map[string]string{session.FieldSessionToken: token}, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Active lists userID's active sessions, least recently seen first.
func (c *Client) Active(ctx context.Context, userID string) ([]session.Record, error) {
	var response session.ActiveResponse
	query := url.Values{session.FieldUserID: {userID}}
	if err := c.do(ctx, http.MethodGet, "/session/active?"+query.Encode(), nil, &response); err != nil {
		return nil, err
	}
	return response.Sessions, nil
}

// # Transport

func (c *Client) post(ctx context.Context, path string, body, target any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("client: encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(raw), target)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, target any) error {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	c.authorize(request.Header)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if response.StatusCode >= http.StatusBadRequest {
		return decodeError(response.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(header http.Header) {
	if c.bearer != "" {
		header.Set(constants.HeaderAuthorization, "Bearer "+c.bearer)
	}
}

func decodeError(status int, payload []byte) error {
	var envelope respond.ErrorEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Code == "" {
		return &APIError{
			StatusCode: status,
			Code:       "UNKNOWN",
			Message:    strings.TrimSpace(string(payload)),
		}
	}
	return &APIError{
		StatusCode: status,
		Code:       envelope.Code,
		Message:    envelope.Error,
		Details:    envelope.Details,
	}
}
