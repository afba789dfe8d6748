package signbroker

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome value of an approved request. The set of results is
// closed: SignerResult, EncryptResult and DecryptResult.
type Result interface {
	// RequestID returns the id the result is annotated with.
	RequestID() uint64

	withID(id uint64) Result
}

// SignerResult carries a signature for KindSignPayload and KindSignRaw.
type SignerResult struct {
	ID uint64 `json:"id"`
	// Signature is 0x-prefixed hex.
	Signature string `json:"signature"`
}

// EncryptResult carries the encrypted bytes for KindEncrypt.
type EncryptResult struct {
	ID        uint64 `json:"id"`
	Encrypted string `json:"encrypted"`
}

// DecryptResult carries the recovered bytes for KindDecrypt.
type DecryptResult struct {
	ID      uint64 `json:"id"`
	Message string `json:"message"`
}

func (r *SignerResult) RequestID() uint64  { return r.ID }
func (r *EncryptResult) RequestID() uint64 { return r.ID }
func (r *DecryptResult) RequestID() uint64 { return r.ID }

func (r *SignerResult) withID(id uint64) Result {
	c := *r
	c.ID = id
	return &c
}

func (r *EncryptResult) withID(id uint64) Result {
	c := *r
	c.ID = id
	return &c
}

func (r *DecryptResult) withID(id uint64) Result {
	c := *r
	c.ID = id
	return &c
}

// DecodeResult decodes the JSON form of the result for a request kind.
func DecodeResult(kind Kind, data []byte) (Result, error) {
	var r Result
	switch kind {
	case KindSignPayload, KindSignRaw:
		r = &SignerResult{}
	case KindEncrypt:
		r = &EncryptResult{}
	case KindDecrypt:
		r = &DecryptResult{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", kind, err)
	}
	return r, nil
}
