// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// GenerateSecureToken returns a URL-safe random token of byteLength bytes of entropy.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// TokenHasher produces keyed BLAKE2b-256 digests of opaque tokens.
//
// Only digests are persisted; a leaked table cannot be replayed without the key.
type TokenHasher struct {
	key []byte
}

// NewTokenHasher creates a hasher keyed with secret (at most 64 bytes are used).
func NewTokenHasher(secret string) (*TokenHasher, error) {
	key := []byte(secret)
	if len(key) == 0 {
		return nil, fmt.Errorf("sec: token hash key must not be empty")
	}
	if len(key) > blake2b.Size {
		key = key[:blake2b.Size]
	}

	// Fail fast on an unusable key instead of on the first request.
	if _, err := blake2b.New256(key); err != nil {
		return nil, fmt.Errorf("sec: invalid token hash key: %w", err)
	}

	return &TokenHasher{key: key}, nil
}

// HashToken returns the hex digest of token.
func (hasher *TokenHasher) HashToken(token string) string {
	digest, _ := blake2b.New256(hasher.key)
	_, _ = digest.Write([]byte(token))
	return hex.EncodeToString(digest.Sum(nil))
}
