// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

/*
Package requestutil provides utilities for extracting data from HTTP requests.

It abstracts common body decoding patterns and identity lookups, ensuring
consistent error handling across handlers.
*/
package requestutil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gapgens/gapgens/internal/platform/apperr"
	"github.com/gapgens/gapgens/internal/platform/ctxutil"
	"github.com/gapgens/gapgens/internal/platform/sec"
	"github.com/gapgens/gapgens/internal/platform/validate"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 16 << 10

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - writer: http.ResponseWriter (used to cap the body size)
  - request: *http.Request
  - target: any (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	request.Body = http.MaxBytesReader(writer, request.Body, MaxBodyBytes)

	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return validate.RequiredError("body", "Request body too large")
		}
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Claims extracts the authenticated user claims from the request context.

Returns nil if the request is not authenticated.
*/
func Claims(request *http.Request) *sec.AuthClaims {
	return ctxutil.GetAuthUser(request.Context())
}

/*
BoundUserID reconciles a client-supplied user id with the verified identity.

Without claims, the supplied id is returned unchanged. With claims, an empty
supplied id defaults to the token subject and a different one is refused.

Returns:
  - string: the user id to act on
  - error: apperr.Forbidden on mismatch
*/
func BoundUserID(request *http.Request, supplied string) (string, error) {
	claims := Claims(request)
	if claims == nil {
		return supplied, nil
	}

	if supplied != "" && supplied != claims.UserID {
		return "", apperr.Forbidden("user_id does not match the authenticated user")
	}

	return claims.UserID, nil
}
