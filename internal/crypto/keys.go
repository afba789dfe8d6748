package crypto

import (
	"fmt"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// AccountKeys holds the unlocked key material of one account: an ML-KEM-768
// keypair for message encryption and an ML-DSA-65 keypair for signatures.
// Both are derived from a single account seed.
type AccountKeys struct {
	// KEMPublicKey is the raw ML-KEM-768 public key bytes.
	KEMPublicKey []byte
	// SigPublicKey is the raw ML-DSA-65 public key bytes.
	SigPublicKey []byte

	kem *mlkem768.PrivateKey
	sig *mldsa65.PrivateKey
}

// GenerateSeed returns a fresh random account seed.
func GenerateSeed() ([]byte, error) {
	return randomBytes(SeedSize)
}

// DeriveAccountKeys expands an account seed into its keypairs.
// The first 64 bytes seed ML-KEM-768, the remaining 32 seed ML-DSA-65.
func DeriveAccountKeys(seed []byte) (*AccountKeys, error) {
	if len(seed) != SeedSize {
		return nil, ErrInvalidSeedSize
	}

	kemPub, kemPriv := mlkem768.NewKeyFromSeed(seed[:MLKEMSeedSize])

	var sigSeed [mldsa65.SeedSize]byte
	copy(sigSeed[:], seed[MLKEMSeedSize:])
	sigPub, sigPriv := mldsa65.NewKeyFromSeed(&sigSeed)
	Zero(sigSeed[:])

	// MarshalBinary never fails for keys produced from a seed
	kemPubBytes, _ := kemPub.MarshalBinary()
	sigPubBytes, _ := sigPub.MarshalBinary()

	return &AccountKeys{
		KEMPublicKey: kemPubBytes,
		SigPublicKey: sigPubBytes,
		kem:          kemPriv,
		sig:          sigPriv,
	}, nil
}

// Decapsulate recovers the shared secret from a KEM ciphertext.
func (k *AccountKeys) Decapsulate(ctKem []byte) ([]byte, error) {
	if len(ctKem) != MLKEMCiphertextSize {
		return nil, ErrInvalidMessage
	}
	sharedSecret := make([]byte, MLKEMSharedKeySize)
	k.kem.DecapsulateTo(sharedSecret, ctKem)
	return sharedSecret, nil
}

// Release drops the private keys so they can be collected.
func (k *AccountKeys) Release() {
	k.kem = nil
	k.sig = nil
}

// Encapsulate generates a shared secret for the holder of a KEM public key.
// It returns the KEM ciphertext and the shared secret.
func Encapsulate(kemPublicKey []byte) (ctKem, sharedSecret []byte, err error) {
	if len(kemPublicKey) != MLKEMPublicKeySize {
		return nil, nil, ErrInvalidPublicKeySize
	}

	parsed, err := mlkem768.Scheme().UnmarshalBinaryPublicKey(kemPublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub := parsed.(*mlkem768.PublicKey)

	seed, err := randomBytes(mlkem768.EncapsulationSeedSize)
	if err != nil {
		return nil, nil, err
	}
	defer Zero(seed)

	ctKem = make([]byte, MLKEMCiphertextSize)
	sharedSecret = make([]byte, MLKEMSharedKeySize)
	pub.EncapsulateTo(ctKem, sharedSecret, seed)
	return ctKem, sharedSecret, nil
}
