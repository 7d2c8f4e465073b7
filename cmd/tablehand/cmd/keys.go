package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jmcleod/tablehand/internal/util"
)

var errNoServerSecret = errors.New(envServerSecret + " is not set; generate one with `openssl rand -hex 32`")

// serverKeys derives the access-token signing key and the refresh-session
// wrapping key from the hex-encoded server secret.
func serverKeys(secret string) (signing, wrapping []byte, err error) {
	if secret == "" {
		return nil, nil, errNoServerSecret
	}
	master, err := hex.DecodeString(secret)
	if err != nil {
		return nil, nil, fmt.Errorf("%s must be hex encoded: %w", envServerSecret, err)
	}
	if len(master) != util.KeySize {
		return nil, nil, fmt.Errorf("%s must encode %d bytes, got %d", envServerSecret, util.KeySize, len(master))
	}
	defer util.WipeBytes(master)

	if signing, err = util.SubKey(master, "access-token-signing"); err != nil {
		return nil, nil, err
	}
	if wrapping, err = util.SubKey(master, "refresh-session-wrapping"); err != nil {
		return nil, nil, err
	}
	return signing, wrapping, nil
}
