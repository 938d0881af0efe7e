// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/gapgens/gapgens/internal/session"
)

// maxEventBytes caps a single feed frame.
const maxEventBytes = 64 << 10

/*
WatchRevocations opens the revocation feed for deviceID.

The returned channel yields at most one [session.Event] (the server closes the
feed after delivering it) and is closed when the feed ends for any reason,
including ctx cancellation.

Returns:
  - An error only when the feed cannot be opened.
*/
func (c *Client) WatchRevocations(ctx context.Context, userID, deviceID string) (<-chan session.Event, error) {
	feedURL := c.feedURL(userID, deviceID)

	header := http.Header{}
	c.authorize(header)

	conn, response, err := websocket.Dial(ctx, feedURL, &websocket.DialOptions{
		HTTPClient: c.httpClientWithoutTimeout(),
		HTTPHeader: header,
	})
	if response != nil && response.Body != nil {
		_ = response.Body.Close()
	}
	if err != nil {
		if response != nil && response.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{StatusCode: response.StatusCode, Code: "FEED_REFUSED", Message: err.Error()}
		}
		return nil, fmt.Errorf("client: open revocation feed: %w", err)
	}
	conn.SetReadLimit(maxEventBytes)

	events := make(chan session.Event, 1)
	go func() {
		defer close(events)
		defer func() { _ = conn.CloseNow() }()

		for {
			var event session.Event
			if err := wsjson.Read(ctx, conn, &event); err != nil {
				// Normal closure after delivery, a dropped link and ctx cancellation all end the feed.
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func (c *Client) feedURL(userID, deviceID string) string {
	feed := *c.baseURL
	switch feed.Scheme {
	case "https":
		feed.Scheme = "wss"
	default:
		feed.Scheme = "ws"
	}
	feed.Path += "/session/events"
	feed.RawQuery = url.Values{
		session.FieldUserID:   {userID},
		session.FieldDeviceID: {deviceID},
	}.Encode()
	return feed.String()
}

// httpClientWithoutTimeout keeps the configured transport but drops the
// per-request timeout, which would otherwise cut the long-lived feed.
func (c *Client) httpClientWithoutTimeout() *http.Client {
	clone := *c.httpClient
	clone.Timeout = 0
	return &clone
}
