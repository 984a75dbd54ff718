// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package usertools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/omnihub-ai/omnihub/pkg/store"
)

// Credential is the decrypted view of a stored credential. For opaque
// payloads only Opaque is set and round-trips verbatim.
type Credential struct {
	ToolName     string          `json:"tool_name"`
	Provider     string          `json:"provider"`
	AccessToken  string          `json:"access_token,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at,omitempty"`
	Scopes       []string        `json:"scopes,omitempty"`
	Opaque       json.RawMessage `json:"opaque,omitempty"`
}

// StoreCredential encrypts and persists a credential payload. A payload
// carrying an access_token key is decomposed into structured fields; any
// other JSON document is stored opaquely in the access-token slot.
func (m *Manager) StoreCredential(ctx context.Context, userID, toolName, provider string, payload json.RawMessage) error {
	if !gjson.ValidBytes(payload) {
		return fmt.Errorf("invalid credential payload: not JSON")
	}

	token := &store.OAuthToken{
		UserID:   userID,
		ToolName: toolName,
		Provider: provider,
	}

	doc := gjson.ParseBytes(payload)
	if access := doc.Get("access_token"); access.Exists() {
		ciphertext, err := m.cipher.EncryptString(access.String())
		if err != nil {
			return err
		}
		token.AccessTokenCiphertext = ciphertext
		if refresh := doc.Get("refresh_token"); refresh.Exists() {
			token.RefreshTokenCipher, err = m.cipher.EncryptString(refresh.String())
			if err != nil {
				return err
			}
		}
		if exp := doc.Get("expires_at"); exp.Exists() {
			if ts, err := time.Parse(time.RFC3339, exp.String()); err == nil {
				token.ExpiresAt = ts.UTC()
			}
		}
		if scopes := doc.Get("scopes"); scopes.Exists() {
			token.Scopes = scopes.Raw
		}
	} else {
		// Opaque blob: the whole document goes in the access-token slot.
		ciphertext, err := m.cipher.EncryptString(string(payload))
		if err != nil {
			return err
		}
		token.AccessTokenCiphertext = ciphertext
	}

	return m.store.UpsertOAuthToken(ctx, token)
}

// GetCredential decrypts a stored credential. Opaque payloads are
// returned verbatim.
func (m *Manager) GetCredential(ctx context.Context, userID, toolName, provider string) (*Credential, error) {
	token, err := m.store.GetOAuthToken(ctx, userID, toolName, provider)
	if err != nil {
		return nil, err
	}
	return m.decryptToken(token)
}

// ListCredentials returns the user's credentials with secrets decrypted.
func (m *Manager) ListCredentials(ctx context.Context, userID string) ([]Credential, error) {
	tokens, err := m.store.ListOAuthTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Credential, 0, len(tokens))
	for i := range tokens {
		cred, err := m.decryptToken(&tokens[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *cred)
	}
	return out, nil
}

// DeleteCredential removes a credential row.
func (m *Manager) DeleteCredential(ctx context.Context, userID, toolName, provider string) error {
	return m.store.DeleteOAuthToken(ctx, userID, toolName, provider)
}

func (m *Manager) decryptToken(token *store.OAuthToken) (*Credential, error) {
	plaintext, err := m.cipher.DecryptString(token.AccessTokenCiphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential for %s: %w", token.ToolName, err)
	}

	cred := &Credential{
		ToolName:  token.ToolName,
		Provider:  token.Provider,
		ExpiresAt: token.ExpiresAt,
	}

	// An opaque blob was stored as a whole JSON document without the
	// structured decomposition; detect it by the absence of scopes and
	// refresh token alongside a JSON-object payload without access_token.
	if token.RefreshTokenCipher == "" && token.Scopes == "" &&
		gjson.Valid(plaintext) && gjson.Parse(plaintext).IsObject() &&
		!gjson.Get(plaintext, "access_token").Exists() {
		cred.Opaque = json.RawMessage(plaintext)
		return cred, nil
	}

	cred.AccessToken = plaintext
	if token.RefreshTokenCipher != "" {
		cred.RefreshToken, err = m.cipher.DecryptString(token.RefreshTokenCipher)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token for %s: %w", token.ToolName, err)
		}
	}
	if token.Scopes != "" {
		if err := json.Unmarshal([]byte(token.Scopes), &cred.Scopes); err != nil {
			return nil, fmt.Errorf("corrupt scopes for %s: %w", token.ToolName, err)
		}
	}
	return cred, nil
}
