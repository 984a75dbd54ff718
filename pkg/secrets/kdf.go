// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"crypto/sha256"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// kdfIterations is the PBKDF2-HMAC-SHA256 iteration count. Matches the
// OWASP 2023 recommendation for SHA-256.
const kdfIterations = 480_000

// keyLength is the derived key length in bytes (AES-256).
const keyLength = 32

// machineIDFiles are consulted in order for a stable host identifier.
var machineIDFiles = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// MachineID returns a stable identifier for this host. It reads the first
// available machine-id file and falls back to hostname plus the primary
// MAC address. The identifier ties derived keys to the host: moving the
// store to another machine requires exporting and re-importing secrets.
func MachineID() (string, error) {
	for _, path := range machineIDFiles {
		data, err := os.ReadFile(path) // #nosec G304: fixed list of well-known paths
		if err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id, nil
			}
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to determine hostname: %w", err)
	}
	return hostname + primaryMAC(), nil
}

func primaryMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}
	return ""
}

// DeriveKey derives a 256-bit encryption key from the machine identifier
// and the stored salt using PBKDF2-HMAC-SHA256.
func DeriveKey(machineID string, salt []byte) []byte {
	return pbkdf2.Key([]byte(machineID), salt, kdfIterations, keyLength, sha256.New)
}
