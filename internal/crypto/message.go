package crypto

import "fmt"

// EncryptMessage encrypts plaintext for the holder of recipientKEMPublicKey
// and signs the result with the sender's ML-DSA key.
//
// The message layout is:
//
//	version (1) || ct_kem (1088) || nonce (12) || sig (3309) || ciphertext
//
// The signature covers the transcript built by buildTranscript, which binds
// the recipient public key so a message cannot be replayed to another account.
func EncryptMessage(plaintext, recipientKEMPublicKey []byte, sender *AccountKeys) ([]byte, error) {
	ctKem, sharedSecret, err := Encapsulate(recipientKEMPublicKey)
	if err != nil {
		return nil, fmt.Errorf("encapsulate: %w", err)
	}
	defer Zero(sharedSecret)

	aad := []byte{MessageVersion}
	aesKey, err := deriveMessageKey(sharedSecret, ctKem, aad)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer Zero(aesKey)

	nonce, err := randomBytes(AESNonceSize)
	if err != nil {
		return nil, err
	}

	sealed, err := EncryptAES(aesKey, plaintext, nonce, aad)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	ciphertext := sealed[AESNonceSize:]

	sig, err := sender.Sign(buildTranscript(ctKem, nonce, ciphertext, recipientKEMPublicKey))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, messageHeaderSize+len(ciphertext))
	out = append(out, MessageVersion)
	out = append(out, ctKem...)
	out = append(out, nonce...)
	out = append(out, sig...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecryptMessage verifies the sender's signature and decrypts a message
// produced by EncryptMessage.
//
// Security: the signature is checked BEFORE decapsulation so unauthenticated
// ciphertext never reaches the KEM or AEAD.
func DecryptMessage(message []byte, recipient *AccountKeys, senderSigPublicKey []byte) ([]byte, error) {
	if len(message) < messageHeaderSize+AESTagSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidMessage, len(message))
	}
	if message[0] != MessageVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, message[0])
	}

	offset := 1
	ctKem := message[offset : offset+MLKEMCiphertextSize]
	offset += MLKEMCiphertextSize
	nonce := message[offset : offset+AESNonceSize]
	offset += AESNonceSize
	sig := message[offset : offset+MLDSASignatureSize]
	offset += MLDSASignatureSize
	ciphertext := message[offset:]

	transcript := buildTranscript(ctKem, nonce, ciphertext, recipient.KEMPublicKey)
	if err := Verify(senderSigPublicKey, transcript, sig); err != nil {
		return nil, err
	}

	sharedSecret, err := recipient.Decapsulate(ctKem)
	if err != nil {
		return nil, err
	}
	defer Zero(sharedSecret)

	aad := []byte{MessageVersion}
	aesKey, err := deriveMessageKey(sharedSecret, ctKem, aad)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer Zero(aesKey)

	plaintext, err := decryptAESGCM(aesKey, nonce, aad, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// buildTranscript constructs the signature transcript.
func buildTranscript(ctKem, nonce, ciphertext, recipientKEMPublicKey []byte) []byte {
	transcript := make([]byte, 0, 1+len(AlgsCiphersuite)+len(HKDFContext)+
		len(ctKem)+len(nonce)+len(ciphertext)+len(recipientKEMPublicKey))
	transcript = append(transcript, MessageVersion)
	transcript = append(transcript, AlgsCiphersuite...)
	transcript = append(transcript, HKDFContext...)
	transcript = append(transcript, ctKem...)
	transcript = append(transcript, nonce...)
	transcript = append(transcript, ciphertext...)
	transcript = append(transcript, recipientKEMPublicKey...)
	return transcript
}
