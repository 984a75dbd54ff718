// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/omnihub-ai/omnihub/pkg/secrets"
)

// SSOSessionCookie is the cookie name used in workos mode.
const SSOSessionCookie = "wos_session"

// refreshWindow is how close to expiry a session gets proactively refreshed.
const refreshWindow = 5 * time.Minute

// SSOSession is the sealed cookie payload for workos mode.
type SSOSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// NearExpiry reports whether the session should be refreshed now.
func (s *SSOSession) NearExpiry() bool {
	return time.Until(s.ExpiresAt) < refreshWindow
}

// SSOClaims are the identity claims extracted from a verified ID token.
type SSOClaims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// SealSession encrypts a session into a cookie value using the 32-byte
// cookie password.
func SealSession(session *SSOSession, cookiePassword []byte) (string, error) {
	plaintext, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := secrets.Encrypt(plaintext, cookiePassword)
	if err != nil {
		return "", fmt.Errorf("failed to seal session: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// UnsealSession decrypts a cookie value. Any failure, including
// tampering, is reported as ErrInvalidSession.
func UnsealSession(value string, cookiePassword []byte) (*SSOSession, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrInvalidSession
	}
	plaintext, err := secrets.Decrypt(sealed, cookiePassword)
	if err != nil {
		return nil, ErrInvalidSession
	}
	var session SSOSession
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return nil, ErrInvalidSession
	}
	return &session, nil
}

// SSOAuthenticator validates and refreshes SSO sessions against the
// configured OIDC issuer.
type SSOAuthenticator struct {
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
}

// NewSSOAuthenticator discovers the issuer's endpoints and builds the
// token verifier.
func NewSSOAuthenticator(ctx context.Context, issuerURL, clientID, clientSecret string) (*SSOAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC issuer %s: %w", issuerURL, err)
	}
	return &SSOAuthenticator{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
		},
	}, nil
}

// Authenticate verifies the session's ID token and returns its claims.
func (a *SSOAuthenticator) Authenticate(ctx context.Context, session *SSOSession) (*SSOClaims, error) {
	idToken, err := a.verifier.Verify(ctx, session.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	var claims SSOClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return &claims, nil
}

// Refresh exchanges the refresh token for new tokens. Returns a replacement
// session; the caller reseals and resets the cookie.
func (a *SSOAuthenticator) Refresh(ctx context.Context, session *SSOSession) (*SSOSession, error) {
	if session.RefreshToken == "" {
		return nil, ErrSessionExpired
	}
	src := a.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: session.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute), // force refresh
	})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: refresh failed: %w", ErrSessionExpired, err)
	}

	refreshed := &SSOSession{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if refreshed.ExpiresAt.IsZero() {
		refreshed.ExpiresAt = accessTokenExpiry(token.AccessToken)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = session.RefreshToken
	}
	if id, ok := token.Extra("id_token").(string); ok {
		refreshed.IDToken = id
	} else {
		refreshed.IDToken = session.IDToken
	}
	return refreshed, nil
}

// VerifyBearer validates a bearer token as an OIDC-issued JWT and returns
// its claims. Used for API access with SSO access tokens.
func (a *SSOAuthenticator) VerifyBearer(ctx context.Context, token string) (*SSOClaims, error) {
	return a.Authenticate(ctx, &SSOSession{IDToken: token})
}

// accessTokenExpiry extracts the exp claim from a JWT access token. Some
// token endpoints omit expires_in from the refresh response; the claim is
// authoritative there. Signature verification happens elsewhere, so the
// token is parsed unverified. Returns the zero time when the token is not
// a JWT or carries no exp.
func accessTokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
