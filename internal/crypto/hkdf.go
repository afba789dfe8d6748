package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey derives a key using HKDF-SHA-512.
//
// Parameters:
//   - secret: the input key material (e.g., shared secret from KEM)
//   - salt: optional salt value; if empty, a zero-filled salt is used
//   - info: context/application-specific info for domain separation
//   - length: desired output key length in bytes
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	if len(salt) == 0 {
		salt = make([]byte, sha512.Size)
	}

	reader := hkdf.New(sha512.New, secret, salt, info)
	key := make([]byte, length)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}

// deriveMessageKey derives the AES key for one message.
//
//   - IKM: the KEM shared secret
//   - Salt: SHA-256 hash of the KEM ciphertext
//   - Info: context string || AAD length (4 bytes BE) || AAD
func deriveMessageKey(sharedSecret, ctKem, aad []byte) ([]byte, error) {
	saltHash := sha256.Sum256(ctKem)

	info := make([]byte, 0, len(HKDFContext)+4+len(aad))
	info = append(info, HKDFContext...)
	info = binary.BigEndian.AppendUint32(info, uint32(len(aad)))
	info = append(info, aad...)

	return DeriveKey(sharedSecret, saltHash[:], info, AESKeySize)
}
