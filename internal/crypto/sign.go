package crypto

import (
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// Sign produces a deterministic ML-DSA-65 signature over message.
func (k *AccountKeys) Sign(message []byte) ([]byte, error) {
	if k.sig == nil {
		return nil, fmt.Errorf("account keys released")
	}
	sig := make([]byte, MLDSASignatureSize)
	if err := mldsa65.SignTo(k.sig, message, nil, false, sig); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Verify verifies an ML-DSA-65 signature (low-level function).
func Verify(publicKey, message, signature []byte) error {
	if len(publicKey) != MLDSAPublicKeySize {
		return ErrInvalidPublicKeySize
	}

	pk := &mldsa65.PublicKey{}
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return fmt.Errorf("failed to parse public key: %w", err)
	}

	if !mldsa65.Verify(pk, message, nil, signature) {
		return ErrSignatureVerificationFailed
	}

	return nil
}
