package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// decryptAESGCM decrypts data using AES-256-GCM.
func decryptAESGCM(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	if len(nonce) != AESNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), AESNonceSize)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// EncryptAES encrypts data using AES-256-GCM.
// Returns: nonce (12 bytes) || ciphertext || tag (16 bytes)
func EncryptAES(key, plaintext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != AESNonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), AESNonceSize)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, AESNonceSize+len(plaintext)+AESTagSize)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, aad), nil
}

// DecryptAES decrypts the output of EncryptAES.
// The ciphertext format is: nonce (12 bytes) || ciphertext || tag (16 bytes)
func DecryptAES(key, ciphertext, aad []byte) ([]byte, error) {
	if len(key) != AESKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), AESKeySize)
	}

	if len(ciphertext) < AESNonceSize+AESTagSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidMessage)
	}

	return decryptAESGCM(key, ciphertext[:AESNonceSize], aad, ciphertext[AESNonceSize:])
}
