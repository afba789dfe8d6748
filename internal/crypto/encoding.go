package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// ToBase64URL encodes bytes to URL-safe base64 without padding.
func ToBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// FromBase64URL decodes URL-safe base64 without padding.
func FromBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// ToHex encodes bytes as a 0x-prefixed lowercase hex string.
func ToHex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

// FromHex decodes a hex string with or without the 0x prefix.
// The empty string and a bare "0x" both decode to an empty slice.
func FromHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}

// IsHex reports whether s is a well-formed 0x-prefixed hex string.
func IsHex(s string) bool {
	if !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := FromHex(s)
	return err == nil
}
