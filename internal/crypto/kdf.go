package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the password KDF used to seal account seeds.
type Argon2Params struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"` // KiB
	Threads uint8  `json:"threads"`
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Time: 3, Memory: 64 * 1024, Threads: 4}
}

// GenerateSalt returns a fresh random Argon2id salt.
func GenerateSalt() ([]byte, error) {
	return randomBytes(SaltSize)
}

// PasswordKey derives an AES-256 key from a secret with Argon2id.
func PasswordKey(secret, salt []byte, params Argon2Params) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt: got %d bytes, want %d", len(salt), SaltSize)
	}
	if params.Time == 0 || params.Memory == 0 || params.Threads == 0 {
		return nil, fmt.Errorf("argon2 parameters must be non-zero: %+v", params)
	}
	return argon2.IDKey(secret, salt, params.Time, params.Memory, params.Threads, AESKeySize), nil
}

// SealSeed encrypts an account seed under a key derived from secret.
// The salt doubles as additional authenticated data.
func SealSeed(seed, secret, salt []byte, params Argon2Params) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, ErrInvalidSeedSize
	}
	key, err := PasswordKey(secret, salt, params)
	if err != nil {
		return nil, err
	}
	defer Zero(key)

	nonce, err := randomBytes(AESNonceSize)
	if err != nil {
		return nil, err
	}
	return EncryptAES(key, seed, nonce, salt)
}

// OpenSeed reverses SealSeed. A wrong secret yields ErrDecryptionFailed.
func OpenSeed(sealed, secret, salt []byte, params Argon2Params) ([]byte, error) {
	key, err := PasswordKey(secret, salt, params)
	if err != nil {
		return nil, err
	}
	defer Zero(key)

	seed, err := DecryptAES(key, sealed, salt)
	if err != nil {
		return nil, err
	}
	if len(seed) != SeedSize {
		Zero(seed)
		return nil, ErrInvalidSeedSize
	}
	return seed, nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
