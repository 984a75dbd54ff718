// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// LocalSessionCookie is the cookie name used in local mode.
const LocalSessionCookie = "local_session"

// LocalAPIKeyPrefix prefixes every generated local API key.
const LocalAPIKeyPrefix = "omni_local_"

// localSessionTTL is the default local session lifetime.
const localSessionTTL = 30 * 24 * time.Hour

// signingContext separates the cookie-signing secret from other uses of
// the API key material.
const signingContext = "omnihub/local-session-signing/v1"

// LocalSession is the signed, unencrypted cookie payload for local mode.
type LocalSession struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	WorkspaceID  string `json:"workspace_id"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	ExpiresAt    int64  `json:"exp"`
	IssuedAt     int64  `json:"iat"`
}

// GenerateLocalAPIKey returns a new local API key: the fixed prefix
// followed by 43 url-safe base64 characters (32 random bytes).
func GenerateLocalAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return LocalAPIKeyPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// LocalSessionCodec signs and verifies local session cookies. The signing
// secret is derived from the generated local API key, so rotating the key
// invalidates every outstanding session.
type LocalSessionCodec struct {
	secret []byte
}

// NewLocalSessionCodec derives the signing secret from the local API key.
func NewLocalSessionCodec(apiKey string) *LocalSessionCodec {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(signingContext))
	return &LocalSessionCodec{secret: mac.Sum(nil)}
}

// Encode signs a session, returning the cookie value
// base64url(json(payload)) + "." + hex(HMAC-SHA-256(secret, data)).
func (c *LocalSessionCodec) Encode(session LocalSession) (string, error) {
	payload, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	data := base64.RawURLEncoding.EncodeToString(payload)
	return data + "." + c.sign(data), nil
}

// Decode verifies and parses a cookie value. Verification uses a
// constant-time comparison; expiry is enforced.
func (c *LocalSessionCodec) Decode(value string) (*LocalSession, error) {
	data, sig, ok := strings.Cut(value, ".")
	if !ok {
		return nil, ErrInvalidSession
	}
	if !hmac.Equal([]byte(c.sign(data)), []byte(sig)) {
		return nil, ErrInvalidSession
	}

	payload, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidSession
	}
	var session LocalSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, ErrInvalidSession
	}
	if time.Now().Unix() >= session.ExpiresAt {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// NewSession builds a session for a user with the default expiry.
func (c *LocalSessionCodec) NewSession(userID, email, workspaceID string, isSuperAdmin bool) LocalSession {
	now := time.Now()
	return LocalSession{
		UserID:       userID,
		Email:        email,
		WorkspaceID:  workspaceID,
		IsSuperAdmin: isSuperAdmin,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(localSessionTTL).Unix(),
	}
}

func (c *LocalSessionCodec) sign(data string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
