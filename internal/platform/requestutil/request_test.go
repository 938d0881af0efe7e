// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package requestutil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapgens/gapgens/internal/platform/apperr"
	"github.com/gapgens/gapgens/internal/platform/ctxutil"
	"github.com/gapgens/gapgens/internal/platform/requestutil"
	"github.com/gapgens/gapgens/internal/platform/sec"
	"github.com/gapgens/gapgens/internal/platform/validate"
)

type payload struct {
	UserID string `json:"user_id"`
}

func TestDecodeJSON(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"user_id":"u1"}`))

		var target payload
		require.NoError(t, requestutil.DecodeJSON(httptest.NewRecorder(), request, &target))
		assert.Equal(t, "u1", target.UserID)
	})

	t.Run("Malformed", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"user_id":`))

		var target payload
		assert.Equal(t, validate.ErrInvalidJSON, requestutil.DecodeJSON(httptest.NewRecorder(), request, &target))
	})

	t.Run("TooLarge", func(t *testing.T) {
		body := `{"user_id":"` + strings.Repeat("x", requestutil.MaxBodyBytes) + `"}`
		request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		var target payload
		err := requestutil.DecodeJSON(httptest.NewRecorder(), request, &target)
		require.Error(t, err)
		assert.Equal(t, "body", apperr.As(err).Details[0].Field)
	})
}

func TestBoundUserID(t *testing.T) {
	anonymous := httptest.NewRequest(http.MethodGet, "/", nil)
	authenticated := anonymous.WithContext(ctxutil.WithAuthUser(anonymous.Context(), &sec.AuthClaims{UserID: "user-1"}))

	t.Run("AnonymousPassesThrough", func(t *testing.T) {
		userID, err := requestutil.BoundUserID(anonymous, "anyone")
		require.NoError(t, err)
		assert.Equal(t, "anyone", userID)
	})

	t.Run("DefaultsToClaims", func(t *testing.T) {
		userID, err := requestutil.BoundUserID(authenticated, "")
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
	})

	t.Run("Matching", func(t *testing.T) {
		userID, err := requestutil.BoundUserID(authenticated, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", userID)
	})

	t.Run("Mismatch", func(t *testing.T) {
		_, err := requestutil.BoundUserID(authenticated, "user-2")
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, apperr.As(err).HTTPStatus)
	})
}
