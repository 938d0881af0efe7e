// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package session

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gapgens/gapgens/internal/platform/apperr"
	"github.com/gapgens/gapgens/internal/platform/constants"
	"github.com/gapgens/gapgens/internal/platform/middleware"
	"github.com/gapgens/gapgens/internal/platform/requestutil"
	"github.com/gapgens/gapgens/internal/platform/respond"
	"github.com/gapgens/gapgens/internal/platform/validate"
	"github.com/gapgens/gapgens/pkg/uuid"
)

// DefaultPingInterval is how often the revocation feed pings idle devices.
const DefaultPingInterval = 30 * time.Second

// HandlerConfig tunes the transport.
type HandlerConfig struct {
	// SignInPath is the unauthenticated entry point a refused device is sent to.
	SignInPath string
	// RequireAuth refuses requests without verified identity claims.
	RequireAuth bool
	// OriginPatterns are the browser origins allowed to open the revocation feed.
	OriginPatterns []string
	// InsecureOrigins disables the feed's origin check (development only).
	InsecureOrigins bool
	PingInterval    time.Duration
}

// Handler implements the session HTTP endpoints.
type Handler struct {
	service *Service
	config  HandlerConfig
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, config HandlerConfig) *Handler {
	if config.SignInPath == "" {
		config.SignInPath = "/sign-in"
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}
	return &Handler{service: service, config: config}
}

// Routes returns a [chi.Router] configured with the session routes.
//
// # Endpoints
//   - POST /register  : Admits a device into one of the user's seats.
//   - POST /revoke    : Signs a device (or one session) out.
//   - POST /logout    : Signs every device of the user out.
//   - POST /heartbeat : Refreshes a session's last-seen time.
//   - GET  /active    : Lists the user's active sessions.
//   - GET  /events    : WebSocket feed of evictions and revocations.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	if handler.config.RequireAuth {
		router.Use(middleware.RequireAuth)
	}

	router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(constants.GlobalRequestTimeout))

		r.Post("/register", handler.register)
		r.Post("/revoke", handler.revoke)
		r.Post("/logout", handler.logout)
		r.Post("/heartbeat", handler.heartbeat)
		r.Get("/active", handler.active)
	})

	// Long-lived; must stay outside the request timeout.
	router.Get("/events", handler.events)

	return router
}

// # Registration

type registerRequest struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

// RegisterResponse is the body of POST /session/register.
type RegisterResponse struct {
	Success          bool       `json:"success"`
	Reused           bool       `json:"reused,omitempty"`
	Status           Status     `json:"status"`
	SessionID        string     `json:"session_id,omitempty"`
	SessionToken     string     `json:"session_token,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	EvictedSessionID string     `json:"evicted_session_id,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	Redirect         string     `json:"redirect,omitempty"`
}

// register handles POST /session/register.
//
// # Returns
//   - 200 with status reused/admitted, or success=false and a sign-in redirect when rejected.
//   - 400 if an identifier is missing or malformed.
//   - 500 if the store is unavailable.
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input registerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	validator := &validate.Validator{}
	validator.Identifier(FieldUserID, input.UserID).Identifier(FieldDeviceID, input.DeviceID)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID, err := requestutil.BoundUserID(request, input.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	admission, err := handler.service.Admit(request.Context(), userID, input.DeviceID)
	if err != nil {
		respond.Error(writer, request, ToAppError(err))
		return
	}

	// ── 4. Presentation Output ────────────────────────────────────────────

	response := RegisterResponse{
		Success:          admission.Status != StatusRejected,
		Reused:           admission.Status == StatusReused,
		Status:           admission.Status,
		SessionID:        admission.SessionID,
		SessionToken:     admission.SessionToken,
		EvictedSessionID: admission.EvictedSessionID(),
	}
	if !admission.ExpiresAt.IsZero() {
		response.ExpiresAt = &admission.ExpiresAt
	}
	if admission.Status == StatusRejected {
		response.Reason = ReasonSeatLimit
		response.Redirect = SignInURL(handler.config.SignInPath, ReasonSeatLimit)
	}

	respond.OK(writer, response)
}

// # Revocation

type revokeRequest struct {
	DeviceID  string `json:"device_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// RevokeResponse is the body of POST /session/revoke and /session/logout.
type RevokeResponse struct {
	Success bool `json:"success"`
	Revoked int  `json:"revoked"`
}

// revoke handles POST /session/revoke. A session_id narrows the revocation to
// one session; otherwise device_id is required.
func (handler *Handler) revoke(writer http.ResponseWriter, request *http.Request) {
	var input revokeRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.
		Identifier(FieldDeviceID, input.DeviceID).
		Identifier(FieldUserID, input.UserID).
		Identifier("session_id", input.SessionID).
		Custom("session_id", input.SessionID != "" && !uuid.IsValid(input.SessionID), "Must be a valid UUID")
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID, err := requestutil.BoundUserID(request, input.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var revoked int
	if input.SessionID != "" {
		revoked, err = handler.service.RevokeSession(request.Context(), userID, input.SessionID)
	} else {
		revoked, err = handler.service.RevokeByDevice(request.Context(), userID, input.DeviceID)
	}
	if err != nil {
		respond.Error(writer, request, ToAppError(err))
		return
	}

	respond.OK(writer, RevokeResponse{Success: true, Revoked: revoked})
}

type logoutRequest struct {
	UserID string `json:"user_id"`
}

// logout handles POST /session/logout (sign out everywhere).
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	var input logoutRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	userID, err := requestutil.BoundUserID(request, input.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	revoked, err := handler.service.RevokeAllForUser(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, ToAppError(err))
		return
	}

	respond.OK(writer, RevokeResponse{Success: true, Revoked: revoked})
}

// # Heartbeat & Listing

type heartbeatRequest struct {
	SessionToken string `json:"session_token"`
}

// HeartbeatResponse is the body of POST /session/heartbeat.
type HeartbeatResponse struct {
	Success    bool      `json:"success"`
	SessionID  string    `json:"session_id"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (handler *Handler) heartbeat(writer http.ResponseWriter, request *http.Request) {
	var input heartbeatRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.service.Heartbeat(request.Context(), input.SessionToken)
	if err != nil {
		respond.Error(writer, request, ToAppError(err))
		return
	}

	if claims := requestutil.Claims(request); claims != nil && claims.UserID != record.UserID {
		respond.Error(writer, request, apperr.Forbidden("Session belongs to another user"))
		return
	}

	respond.OK(writer, HeartbeatResponse{
		Success:    true,
		SessionID:  record.ID,
		LastSeenAt: record.LastSeenAt,
		ExpiresAt:  record.ExpiresAt,
	})
}

// ActiveResponse is the body of GET /session/active.
type ActiveResponse struct {
	Success  bool     `json:"success"`
	Sessions []Record `json:"sessions"`
}

func (handler *Handler) active(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.BoundUserID(request, request.URL.Query().Get(FieldUserID))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	records, err := handler.service.ListActive(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, ToAppError(err))
		return
	}
	if records == nil {
		records = []Record{}
	}

	respond.OK(writer, ActiveResponse{Success: true, Sessions: records})
}
