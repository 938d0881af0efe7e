// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapgens/gapgens/internal/platform/sec"
)

func TestGenerateSecureToken_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		token, err := sec.GenerateSecureToken(32)
		require.NoError(t, err)
		assert.Len(t, token, 43)

		_, duplicate := seen[token]
		require.False(t, duplicate)
		seen[token] = struct{}{}
	}
}

func TestTokenHasher_KeyedDigest(t *testing.T) {
	first, err := sec.NewTokenHasher("secret-one")
	require.NoError(t, err)
	second, err := sec.NewTokenHasher("secret-two")
	require.NoError(t, err)

	assert.Equal(t, first.HashToken("tok"), first.HashToken("tok"))
	assert.NotEqual(t, first.HashToken("tok"), first.HashToken("tok2"))
	assert.NotEqual(t, first.HashToken("tok"), second.HashToken("tok"))
	assert.Len(t, first.HashToken("tok"), 64)
}

func TestTokenHasher_EmptyKey(t *testing.T) {
	_, err := sec.NewTokenHasher("")
	assert.Error(t, err)
}

func TestTokenService_RoundTrip(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	service := sec.NewTokenServiceFromKeys(privateKey, &privateKey.PublicKey, "auth.gapgens.app")

	token, err := service.GenerateAccessToken("user_42", time.Minute)
	require.NoError(t, err)

	claims, err := service.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user_42", claims.UserID)
}

func TestTokenService_RejectsForeignIssuerAndExpiry(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signer := sec.NewTokenServiceFromKeys(privateKey, &privateKey.PublicKey, "someone-else")
	verifier := sec.NewTokenServiceFromKeys(nil, &privateKey.PublicKey, "auth.gapgens.app")

	foreign, err := signer.GenerateAccessToken("user_42", time.Minute)
	require.NoError(t, err)
	_, err = verifier.VerifyToken(foreign)
	assert.Error(t, err)

	expired, err := sec.NewTokenServiceFromKeys(privateKey, &privateKey.PublicKey, "auth.gapgens.app").
		GenerateAccessToken("user_42", -time.Minute)
	require.NoError(t, err)
	_, err = verifier.VerifyToken(expired)
	assert.Error(t, err)

	_, err = verifier.GenerateAccessToken("user_42", time.Minute)
	assert.Error(t, err)
}
