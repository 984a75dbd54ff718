// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
)

// SaltLength is the length in bytes of the encryption salt seeded at
// bootstrap.
const SaltLength = 32

// Cipher encrypts and decrypts strings for storage. The key is derived
// once per salt lifetime and cached in memory.
type Cipher struct {
	mu   sync.Mutex
	key  []byte
	salt []byte
}

// NewCipher creates a Cipher for the given salt. Key derivation is
// deferred to first use since PBKDF2 at 480k iterations is not free.
func NewCipher(salt []byte) (*Cipher, error) {
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltLength, len(salt))
	}
	return &Cipher{salt: salt}, nil
}

// NewCipherWithKey creates a Cipher with an explicit key, bypassing
// machine-id derivation. Used by tests and by deployments that supply a
// key from an external secret manager.
func NewCipherWithKey(key []byte) (*Cipher, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keyLength, len(key))
	}
	return &Cipher{key: key}, nil
}

func (c *Cipher) loadKey() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key != nil {
		return c.key, nil
	}

	machineID, err := MachineID()
	if err != nil {
		return nil, fmt.Errorf("failed to read machine identifier: %w", err)
	}
	c.key = DeriveKey(machineID, c.salt)
	return c.key, nil
}

// EncryptString encrypts a plaintext string and returns the ciphertext
// encoded as standard base64.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	key, err := c.loadKey()
	if err != nil {
		return "", err
	}
	ciphertext, err := Encrypt([]byte(plaintext), key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptString reverses EncryptString.
func (c *Cipher) DecryptString(encoded string) (string, error) {
	key, err := c.loadKey()
	if err != nil {
		return "", err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: not base64", ErrInvalidCiphertext)
	}
	plaintext, err := Decrypt(ciphertext, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Verify round-trips a probe value to detect a salt/key mismatch early.
// A mismatch would otherwise surface as unreadable secrets at first use.
func (c *Cipher) Verify() error {
	const probe = "omnihub-key-check"
	encrypted, err := c.EncryptString(probe)
	if err != nil {
		return err
	}
	decrypted, err := c.DecryptString(encrypted)
	if err != nil {
		return err
	}
	if decrypted != probe {
		return errors.New("encryption key verification failed")
	}
	return nil
}

// GenerateSalt returns a new random salt. Rotating the salt invalidates
// all previously stored secrets; treat as a destructive operation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
