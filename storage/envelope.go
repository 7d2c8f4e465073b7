package storage

import (
	"fmt"

	"github.com/jmcleod/tablehand/internal/util"
)

const (
	schemeAESGCM = "aes256gcm"
	schemeRaw    = "raw"
)

// Envelope is a stored slot value, either AES-256-GCM sealed or raw.
type Envelope struct {
	Ver        int    `json:"ver"`
	Scheme     string `json:"scheme"`
	Nonce      []byte `json:"nonce,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
}

// SealRecord encrypts plaintext into an Envelope bound to aad.
func SealRecord(key, plaintext, aad []byte) (*Envelope, error) {
	nonce, ciphertext, err := util.Seal(key, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Ver:        1,
		Scheme:     schemeAESGCM,
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// OpenRecord decrypts an Envelope produced by SealRecord.
func OpenRecord(key []byte, envelope *Envelope, aad []byte) ([]byte, error) {
	if envelope.Ver != 1 {
		return nil, fmt.Errorf("unsupported envelope version: %d", envelope.Ver)
	}
	if envelope.Scheme != schemeAESGCM {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}
	return util.Open(key, envelope.Nonce, envelope.Ciphertext, aad)
}

// RawRecord wraps non-secret bytes (such as a KDF salt) without encryption.
func RawRecord(value []byte) *Envelope {
	return &Envelope{
		Ver:        1,
		Scheme:     schemeRaw,
		Ciphertext: append([]byte(nil), value...),
	}
}

// OpenRaw returns the bytes held by a RawRecord envelope.
func OpenRaw(envelope *Envelope) ([]byte, error) {
	if envelope.Scheme != schemeRaw {
		return nil, fmt.Errorf("unsupported envelope scheme: %s", envelope.Scheme)
	}
	return append([]byte(nil), envelope.Ciphertext...), nil
}
