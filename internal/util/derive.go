package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"
)

// Argon2idParams are the cost parameters for passphrase-derived keys.
type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultArgon2idParams favours interactive CLI start-up over brute-force
// cost; the derived key only protects a short-lived access token.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        1,
		MemoryKiB:   32 * 1024,
		Parallelism: 2,
	}
}

// PassphraseKey derives a KeySize key from a passphrase and salt.
func PassphraseKey(passphrase string, salt []byte, params Argon2idParams) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase is empty")
	}
	if len(salt) < 16 {
		return nil, fmt.Errorf("salt must be at least 16 bytes, got %d", len(salt))
	}
	return argon2.IDKey([]byte(Normalize(passphrase)), salt, params.Time, params.MemoryKiB, params.Parallelism, KeySize), nil
}

// SubKey derives an independent KeySize key for the given purpose from a
// master key using HKDF-SHA256.
func SubKey(master []byte, purpose string) ([]byte, error) {
	if len(master) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", KeySize, len(master))
	}
	r := hkdf.New(sha256.New, master, nil, []byte("tablehand:"+purpose))
	k := make([]byte, KeySize)
	if _, err := io.ReadFull(r, k); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return k, nil
}

// Normalize applies Unicode NFKD so visually identical input (usernames,
// passphrases) always produces the same bytes.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
