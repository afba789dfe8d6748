package crypto

const (
	// HKDFContext is the context string used in HKDF key derivation and in
	// message transcripts for domain separation.
	HKDFContext = "signbroker:message:v1"

	// MessageVersion is the version byte at the start of every encrypted message.
	MessageVersion = 1

	// MLKEMPublicKeySize is the size of an ML-KEM-768 public key in bytes.
	MLKEMPublicKeySize = 1184
	// MLKEMSecretKeySize is the size of an ML-KEM-768 secret key in bytes.
	MLKEMSecretKeySize = 2400
	// MLKEMCiphertextSize is the size of an ML-KEM-768 ciphertext in bytes.
	MLKEMCiphertextSize = 1088
	// MLKEMSharedKeySize is the size of the shared secret from ML-KEM-768 in bytes.
	MLKEMSharedKeySize = 32
	// MLKEMSeedSize is the size of the seed an ML-KEM-768 keypair is derived from.
	MLKEMSeedSize = 64

	// MLDSAPublicKeySize is the size of an ML-DSA-65 public key in bytes.
	MLDSAPublicKeySize = 1952
	// MLDSASignatureSize is the size of an ML-DSA-65 signature in bytes.
	MLDSASignatureSize = 3309
	// MLDSASeedSize is the size of the seed an ML-DSA-65 keypair is derived from.
	MLDSASeedSize = 32

	// SeedSize is the size of an account seed: the ML-KEM seed followed by
	// the ML-DSA seed.
	SeedSize = MLKEMSeedSize + MLDSASeedSize

	// AESKeySize is the size of an AES-256 key in bytes.
	AESKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16

	// SaltSize is the size of the Argon2id salt used to seal account seeds.
	SaltSize = 16

	// messageHeaderSize is version || ct_kem || nonce || sig.
	messageHeaderSize = 1 + MLKEMCiphertextSize + AESNonceSize + MLDSASignatureSize
)

// Envelope markers applied by WrapBytes.
const (
	WrapPrefix  = "<Bytes>"
	WrapPostfix = "</Bytes>"
)

// AlgsCiphersuite is the canonical string representation of the algorithm suite.
var AlgsCiphersuite = "ML-KEM-768:ML-DSA-65:AES-256-GCM:HKDF-SHA-512:ARGON2ID"
