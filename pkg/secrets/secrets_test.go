// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	key := make([]byte, keyLength)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	plaintexts := []string{
		"",
		"k",
		"hello world",
		`{"access_token":"ya29.abc","refresh_token":"1//xyz"}`,
		strings.Repeat("x", 64*1024),
	}

	key := testKey(0x42)
	for _, plaintext := range plaintexts {
		ciphertext, err := Encrypt([]byte(plaintext), key)
		require.NoError(t, err)

		decrypted, err := Decrypt(ciphertext, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(decrypted))
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	t.Parallel()

	ciphertext, err := Encrypt([]byte("secret"), testKey(0x01))
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, testKey(0x02))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestDecryptTruncatedCiphertext(t *testing.T) {
	t.Parallel()

	_, err := Decrypt([]byte{0x01, 0x02}, testKey(0x01))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestEncryptionIsNonDeterministic(t *testing.T) {
	t.Parallel()

	key := testKey(0x07)
	a, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonce must randomize ciphertexts")
}

func TestCipherStringRoundTrip(t *testing.T) {
	t.Parallel()

	cipher, err := NewCipherWithKey(testKey(0x11))
	require.NoError(t, err)

	encrypted, err := cipher.EncryptString("api-key-123")
	require.NoError(t, err)
	assert.NotEqual(t, "api-key-123", encrypted)

	decrypted, err := cipher.DecryptString(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "api-key-123", decrypted)
}

func TestSaltRotationInvalidatesCiphertexts(t *testing.T) {
	t.Parallel()

	// Two ciphers with different keys stand in for a salt rotation: the
	// derived key changes, so old ciphertexts must fail cleanly.
	oldCipher, err := NewCipherWithKey(testKey(0x21))
	require.NoError(t, err)
	newCipher, err := NewCipherWithKey(testKey(0x22))
	require.NoError(t, err)

	encrypted, err := oldCipher.EncryptString("pre-rotation secret")
	require.NoError(t, err)

	_, err = newCipher.DecryptString(encrypted)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestCipherVerify(t *testing.T) {
	t.Parallel()

	cipher, err := NewCipherWithKey(testKey(0x33))
	require.NoError(t, err)
	assert.NoError(t, cipher.Verify())
}

func TestDeriveKeyIsStable(t *testing.T) {
	t.Parallel()

	salt, err := GenerateSalt()
	require.NoError(t, err)
	require.Len(t, salt, SaltLength)

	key1 := DeriveKey("machine-a", salt)
	key2 := DeriveKey("machine-a", salt)
	key3 := DeriveKey("machine-b", salt)

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.Len(t, key1, keyLength)
}
