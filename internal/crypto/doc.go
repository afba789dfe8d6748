// Package crypto provides the cryptographic primitives behind the signing
// broker's keyring. It implements post-quantum key encapsulation, digital
// signatures, authenticated encryption and password-based sealing.
//
// # Algorithm Suite
//
//   - ML-KEM-768 (NIST FIPS 203): key encapsulation used to encrypt messages
//     to an account.
//
//   - ML-DSA-65 (NIST FIPS 204): signatures, both for raw and structured
//     payload signing and for authenticating the sender of an encrypted
//     message.
//
//   - AES-256-GCM: authenticated encryption for message bodies and for
//     sealing account seeds at rest.
//
//   - HKDF-SHA-512 (RFC 5869): derives per-message AES keys from KEM shared
//     secrets with domain separation.
//
//   - Argon2id (RFC 9106): derives the sealing key from an account secret.
//
// # Accounts
//
// An account is a single 96-byte seed. [DeriveAccountKeys] expands it into
// both keypairs. Seeds are only ever stored sealed ([SealSeed]); opening a
// seed with the wrong secret fails with [ErrDecryptionFailed].
//
// # Messages
//
// [EncryptMessage] encapsulates to the recipient and signs the transcript
// with the sender key. [DecryptMessage] verifies that signature against the
// sender's public key BEFORE decapsulating:
//
//	plaintext, err := crypto.DecryptMessage(msg, recipientKeys, senderSigPk)
//
// # Envelope
//
// Raw bytes are wrapped with [WrapBytes] before they are signed or encrypted
// so a signature over user-supplied bytes can never be replayed as a
// signature over a protocol message of the same bytes.
package crypto
