package keyring

import (
	"context"
	"fmt"

	"github.com/vaultsandbox/signbroker-go/internal/crypto"
)

// SignPayload signs canonical structured payload bytes with the account key.
// The bytes are signed as given; no envelope is applied.
func (k *Keyring) SignPayload(ctx context.Context, address string, secret, data []byte) ([]byte, error) {
	return k.sign(ctx, address, secret, data)
}

// SignRaw signs raw bytes with the account key. Callers are expected to have
// applied the <Bytes> envelope already.
func (k *Keyring) SignRaw(ctx context.Context, address string, secret, data []byte) ([]byte, error) {
	return k.sign(ctx, address, secret, data)
}

func (k *Keyring) sign(ctx context.Context, address string, secret, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys, err := k.unlock(address, secret)
	if err != nil {
		return nil, err
	}
	defer keys.Release()

	return keys.Sign(data)
}

// EncryptMessage encrypts data from the account at address to recipient.
// The secret unlocks the sender account, whose key signs the message.
func (k *Keyring) EncryptMessage(ctx context.Context, address string, secret []byte, recipient string, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recipientKEM, _, err := k.publicKeys(recipient)
	if err != nil {
		return nil, err
	}

	keys, err := k.unlock(address, secret)
	if err != nil {
		return nil, err
	}
	defer keys.Release()

	msg, err := crypto.EncryptMessage(data, recipientKEM, keys)
	if err != nil {
		return nil, fmt.Errorf("keyring: encrypt: %w", err)
	}
	return msg, nil
}

// DecryptMessage decrypts a message addressed to the account at address and
// authenticates it against sender. One <Bytes> layer is stripped from the
// message and one from the recovered plaintext, so decrypting a message built
// from crypto.EncloseBytes(data) returns data exactly.
func (k *Keyring) DecryptMessage(ctx context.Context, address string, secret []byte, sender string, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, senderSig, err := k.publicKeys(sender)
	if err != nil {
		return nil, err
	}

	keys, err := k.unlock(address, secret)
	if err != nil {
		return nil, err
	}
	defer keys.Release()

	plaintext, err := crypto.DecryptMessage(crypto.UnwrapBytes(data), keys, senderSig)
	if err != nil {
		return nil, fmt.Errorf("keyring: decrypt: %w", err)
	}
	return crypto.UnwrapBytes(plaintext), nil
}

// VerifySignature checks a signature produced by SignRaw or SignPayload
// against the public key behind address.
func (k *Keyring) VerifySignature(address string, data, signature []byte) error {
	_, sigPub, err := k.publicKeys(address)
	if err != nil {
		return err
	}
	if err := crypto.Verify(sigPub, data, signature); err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	return nil
}

