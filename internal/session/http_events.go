// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/gapgens/gapgens/internal/platform/apperr"
	"github.com/gapgens/gapgens/internal/platform/ctxutil"
	"github.com/gapgens/gapgens/internal/platform/requestutil"
	"github.com/gapgens/gapgens/internal/platform/respond"
	"github.com/gapgens/gapgens/internal/platform/validate"
)

const feedWriteTimeout = 5 * time.Second

/*
events handles GET /session/events?user_id=&device_id=.

The connection is upgraded to a WebSocket that carries at most one [Event]: the
first eviction or revocation addressed to this device. The server closes the
feed right after delivering it, with the reason as the close text.
*/
func (handler *Handler) events(writer http.ResponseWriter, request *http.Request) {
	logger := ctxutil.GetLogger(request.Context())
	query := request.URL.Query()

	userID, err := requestutil.BoundUserID(request, query.Get(FieldUserID))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	deviceID := query.Get(FieldDeviceID)

	validator := &validate.Validator{}
	validator.Required(FieldUserID, userID).Required(FieldDeviceID, deviceID).Identifier(FieldDeviceID, deviceID)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Subscribe before upgrading so a bus failure is still a plain HTTP error.
	events, unsubscribe, err := handler.service.Subscribe(request.Context(), userID)
	if err != nil {
		logger.Warn("session_feed_subscribe_failed", slog.Any("error", err))
		respond.Error(writer, request, apperr.ServiceUnavailable("Event feed unavailable"))
		return
	}
	defer unsubscribe()

	// The server's WriteTimeout would otherwise cut the feed.
	_ = http.NewResponseController(writer).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(writer, request, &websocket.AcceptOptions{
		OriginPatterns:     handler.config.OriginPatterns,
		InsecureSkipVerify: handler.config.InsecureOrigins,
	})
	if err != nil {
		logger.Warn("session_feed_accept_failed", slog.Any("error", err))
		return
	}
	defer func() { _ = conn.CloseNow() }()

	// Devices never send data; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(request.Context())

	ticker := time.NewTicker(handler.config.PingInterval)
	defer ticker.Stop()

	logger.Debug("session_feed_opened", slog.String("user_id", userID), slog.String("device_id", deviceID))

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Debug("session_feed_ping_failed", slog.Any("error", err))
				return
			}

		case event, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "event feed closed")
				return
			}
			if !event.Targets(deviceID) {
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				logger.Warn("session_feed_write_failed", slog.Any("error", err))
				return
			}

			logger.Info("session_feed_delivered",
				slog.String("user_id", userID),
				slog.String("device_id", deviceID),
				slog.String("kind", string(event.Kind)),
			)
			_ = conn.Close(websocket.StatusNormalClosure, event.Reason)
			return
		}
	}
}
