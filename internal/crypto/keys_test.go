package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveAccountKeys_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, SeedSize)

	a, err := DeriveAccountKeys(seed)
	if err != nil {
		t.Fatalf("DeriveAccountKeys() error = %v", err)
	}
	b, err := DeriveAccountKeys(seed)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(a.KEMPublicKey, b.KEMPublicKey) {
		t.Error("KEM public keys differ for the same seed")
	}
	if !bytes.Equal(a.SigPublicKey, b.SigPublicKey) {
		t.Error("signature public keys differ for the same seed")
	}
	if len(a.KEMPublicKey) != MLKEMPublicKeySize {
		t.Errorf("KEM public key size = %d, want %d", len(a.KEMPublicKey), MLKEMPublicKeySize)
	}
	if len(a.SigPublicKey) != MLDSAPublicKeySize {
		t.Errorf("signature public key size = %d, want %d", len(a.SigPublicKey), MLDSAPublicKeySize)
	}
}

func TestDeriveAccountKeys_InvalidSeed(t *testing.T) {
	for _, n := range []int{0, SeedSize - 1, SeedSize + 1} {
		if _, err := DeriveAccountKeys(make([]byte, n)); !errors.Is(err, ErrInvalidSeedSize) {
			t.Errorf("DeriveAccountKeys(%d bytes) error = %v, want ErrInvalidSeedSize", n, err)
		}
	}
}

func TestEncapsulate_Decapsulate(t *testing.T) {
	seed, _ := GenerateSeed()
	keys, err := DeriveAccountKeys(seed)
	if err != nil {
		t.Fatal(err)
	}

	ct, ss, err := Encapsulate(keys.KEMPublicKey)
	if err != nil {
		t.Fatalf("Encapsulate() error = %v", err)
	}
	if len(ct) != MLKEMCiphertextSize {
		t.Errorf("ciphertext size = %d, want %d", len(ct), MLKEMCiphertextSize)
	}

	got, err := keys.Decapsulate(ct)
	if err != nil {
		t.Fatalf("Decapsulate() error = %v", err)
	}
	if !bytes.Equal(got, ss) {
		t.Error("shared secrets differ")
	}
}

func TestEncapsulate_InvalidKey(t *testing.T) {
	if _, _, err := Encapsulate(make([]byte, 10)); !errors.Is(err, ErrInvalidPublicKeySize) {
		t.Errorf("Encapsulate() error = %v, want ErrInvalidPublicKeySize", err)
	}
}

func TestDecapsulate_InvalidCiphertext(t *testing.T) {
	seed, _ := GenerateSeed()
	keys, _ := DeriveAccountKeys(seed)

	if _, err := keys.Decapsulate([]byte("too short")); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("Decapsulate() error = %v, want ErrInvalidMessage", err)
	}
}

func TestSign_Verify(t *testing.T) {
	seed, _ := GenerateSeed()
	keys, err := DeriveAccountKeys(seed)
	if err != nil {
		t.Fatal(err)
	}

	msg := WrapBytes([]byte("hello"))
	sig, err := keys.Sign(msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if len(sig) != MLDSASignatureSize {
		t.Errorf("signature size = %d, want %d", len(sig), MLDSASignatureSize)
	}

	if err := Verify(keys.SigPublicKey, msg, sig); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	if err := Verify(keys.SigPublicKey, []byte("other"), sig); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("Verify(tampered) error = %v, want ErrSignatureVerificationFailed", err)
	}

	if err := Verify(make([]byte, 5), msg, sig); !errors.Is(err, ErrInvalidPublicKeySize) {
		t.Errorf("Verify(short key) error = %v, want ErrInvalidPublicKeySize", err)
	}
}

func TestSign_Released(t *testing.T) {
	seed, _ := GenerateSeed()
	keys, _ := DeriveAccountKeys(seed)
	keys.Release()

	if _, err := keys.Sign([]byte("x")); err == nil {
		t.Error("expected error signing with released keys")
	}
}
