package signbroker

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Signer is the caller facade. It turns sign, encrypt and decrypt calls into
// requests on a Transport and returns the authority's outcome. It holds no
// key material.
type Signer struct {
	transport Transport
	nextID    atomic.Uint64
}

// NewSigner returns a Signer sending requests over t.
func NewSigner(t Transport) *Signer {
	return &Signer{transport: t}
}

// SignPayload asks for a signature over a structured payload.
func (s *Signer) SignPayload(ctx context.Context, req *SignPayloadRequest) (*SignerResult, error) {
	return call[*SignerResult](ctx, s, payloadOrNil(req))
}

// SignRaw asks for a signature over raw bytes.
func (s *Signer) SignRaw(ctx context.Context, req *SignRawRequest) (*SignerResult, error) {
	return call[*SignerResult](ctx, s, payloadOrNil(req))
}

// EncryptBytes asks for bytes to be encrypted to a recipient.
func (s *Signer) EncryptBytes(ctx context.Context, req *EncryptRequest) (*EncryptResult, error) {
	return call[*EncryptResult](ctx, s, payloadOrNil(req))
}

// DecryptBytes asks for bytes to be decrypted.
func (s *Signer) DecryptBytes(ctx context.Context, req *DecryptRequest) (*DecryptResult, error) {
	return call[*DecryptResult](ctx, s, payloadOrNil(req))
}

// call sends p under a fresh id and annotates the result with that id.
// The id is consumed whether or not the call succeeds.
func call[R Result](ctx context.Context, s *Signer, p Payload) (R, error) {
	var zero R

	id := s.nextID.Add(1)
	if p == nil {
		return zero, invalidPayload("request is required")
	}
	res, err := s.transport.Send(ctx, id, p)
	if err != nil {
		return zero, err
	}

	typed, ok := res.withID(id).(R)
	if !ok {
		return zero, &TransportError{Kind: p.Kind(), ID: id, Err: fmt.Errorf("unexpected result %T", res)}
	}
	return typed, nil
}

// payloadOrNil turns a nil request pointer into a nil Payload.
func payloadOrNil[P interface {
	*T
	Payload
}, T any](p P) Payload {
	if p == nil {
		return nil
	}
	return p
}
