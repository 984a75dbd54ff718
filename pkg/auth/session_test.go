// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookiePassword() []byte {
	pw := make([]byte, 32)
	for i := range pw {
		pw[i] = byte(i + 1)
	}
	return pw
}

func TestSealedSessionRoundTrip(t *testing.T) {
	t.Parallel()
	session := &SSOSession{
		AccessToken:  "at",
		RefreshToken: "rt",
		IDToken:      "idt",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}

	sealed, err := SealSession(session, cookiePassword())
	require.NoError(t, err)
	assert.NotContains(t, sealed, "at", "tokens must not leak into the cookie")

	unsealed, err := UnsealSession(sealed, cookiePassword())
	require.NoError(t, err)
	assert.Equal(t, session.AccessToken, unsealed.AccessToken)
	assert.Equal(t, session.RefreshToken, unsealed.RefreshToken)
	assert.True(t, session.ExpiresAt.Equal(unsealed.ExpiresAt))
}

func TestUnsealWrongPassword(t *testing.T) {
	t.Parallel()
	sealed, err := SealSession(&SSOSession{IDToken: "idt"}, cookiePassword())
	require.NoError(t, err)

	other := cookiePassword()
	other[0] ^= 0xff
	_, err = UnsealSession(sealed, other)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestUnsealGarbage(t *testing.T) {
	t.Parallel()
	_, err := UnsealSession("not base64!!", cookiePassword())
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = UnsealSession("bm90IGEgc2Vzc2lvbg", cookiePassword())
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestNearExpiry(t *testing.T) {
	t.Parallel()
	fresh := &SSOSession{ExpiresAt: time.Now().Add(time.Hour)}
	assert.False(t, fresh.NearExpiry())

	stale := &SSOSession{ExpiresAt: time.Now().Add(time.Minute)}
	assert.True(t, stale.NearExpiry())
}
