package crypto

import "errors"

var (
	// ErrInvalidSecretKeySize is returned when the secret key size is invalid.
	ErrInvalidSecretKeySize = errors.New("invalid secret key size")

	// ErrInvalidPublicKeySize is returned when the public key size is invalid.
	ErrInvalidPublicKeySize = errors.New("invalid public key size")

	// ErrInvalidSeedSize is returned when an account seed has the wrong length.
	ErrInvalidSeedSize = errors.New("invalid seed size")

	// ErrSignatureVerificationFailed is returned when signature verification fails.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")

	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKeySize is returned when the AES key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when the nonce size is invalid.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrInvalidMessage is returned when an encrypted message is truncated or
	// otherwise structurally invalid.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnsupportedVersion is returned when a message carries an unknown version byte.
	ErrUnsupportedVersion = errors.New("unsupported message version")

	// ErrInvalidHex is returned when a hex string cannot be decoded.
	ErrInvalidHex = errors.New("invalid hex")
)
