package signbroker

import (
	"context"

	"github.com/vaultsandbox/signbroker-go/internal/crypto"
)

// Vault performs privileged operations with account key material. Each call
// is authorized by the account secret the reviewer entered for one request.
//
// The secret slice belongs to the Authority and is zeroed once the call
// returns; implementations must not retain it.
//
// Implementations return errors matching ErrWrongSecret when the secret does
// not unlock the account and ErrInvalidAddress when an address is malformed
// or unknown. *keyring.Keyring is the standard implementation.
type Vault interface {
	// SignPayload signs canonical structured payload bytes.
	SignPayload(ctx context.Context, address string, secret, data []byte) ([]byte, error)
	// SignRaw signs bytes that already carry the <Bytes> envelope.
	SignRaw(ctx context.Context, address string, secret, data []byte) ([]byte, error)
	// EncryptMessage encrypts data from address to recipient.
	EncryptMessage(ctx context.Context, address string, secret []byte, recipient string, data []byte) ([]byte, error)
	// DecryptMessage decrypts data addressed to address, sent by sender.
	DecryptMessage(ctx context.Context, address string, secret []byte, sender string, data []byte) ([]byte, error)
}

// Wrapper applies the domain-separation envelope to raw bytes before they
// reach the Vault. It must be pure.
type Wrapper func([]byte) []byte

// WrapBytes is the default Wrapper: it surrounds data with <Bytes>…</Bytes>
// unless it is already wrapped.
func WrapBytes(data []byte) []byte {
	return crypto.WrapBytes(data)
}
