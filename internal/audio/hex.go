// Package audio turns synthesized speech payloads into playable handles and
// plays them back.
//
// The speech service returns audio as a hex string. DecodeHex reads it two
// characters at a time as base-16 bytes; anything that is not an even-length
// run of hex digits is rejected with ErrInvalidAudioEncoding. An empty string
// decodes to zero bytes.
package audio

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidAudioEncoding is returned for odd-length or non-hex payloads.
var ErrInvalidAudioEncoding = errors.New("invalid audio encoding")

// DecodeHex converts a hex-encoded payload into raw audio bytes.
func DecodeHex(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrInvalidAudioEncoding, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudioEncoding, err)
	}
	return b, nil
}

// EncodeHex is the inverse of DecodeHex; output is lowercase.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}
