package signbroker

import (
	"encoding/json"
	"fmt"

	"github.com/vaultsandbox/signbroker-go/internal/crypto"
)

// Kind identifies the privileged operation a request asks for. The string
// values are the kind tokens used on the wire.
type Kind string

const (
	// KindSignPayload signs a structured extrinsic payload.
	KindSignPayload Kind = "extrinsic.sign"
	// KindSignRaw signs raw bytes inside the <Bytes> envelope.
	KindSignRaw Kind = "bytes.sign"
	// KindEncrypt encrypts bytes from an account to a recipient.
	KindEncrypt Kind = "bytes.encrypt"
	// KindDecrypt decrypts bytes addressed to an account.
	KindDecrypt Kind = "bytes.decrypt"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSignPayload, KindSignRaw, KindEncrypt, KindDecrypt:
		return true
	}
	return false
}

// Payload is the kind-specific content of a request. The set of payloads is
// closed: SignPayloadRequest, SignRawRequest, EncryptRequest and DecryptRequest.
type Payload interface {
	// Kind returns the operation the payload asks for.
	Kind() Kind
	// Account returns the address whose secret unlocks the operation.
	Account() string
	// Validate checks the payload shape. Errors match ErrInvalidPayload.
	Validate() error

	payload()
}

// SignPayloadRequest asks for a signature over a structured payload. The
// payload is canonicalized (RFC 8785) before signing and is never wrapped.
type SignPayloadRequest struct {
	Address string          `json:"address"`
	Payload json.RawMessage `json:"payload"`
}

// SignRawRequest asks for a signature over raw bytes.
type SignRawRequest struct {
	Address string `json:"address"`
	// Data is 0x-prefixed hex.
	Data string `json:"data"`
	// Type is "bytes" when empty.
	Type string `json:"type,omitempty"`
}

// EncryptRequest asks the account at Address to encrypt Data to Recipient.
type EncryptRequest struct {
	Address   string `json:"address"`
	Data      string `json:"data"`
	Recipient string `json:"recipient"`
}

// DecryptRequest asks the account at Address to decrypt Data, authenticated
// as coming from Sender.
type DecryptRequest struct {
	Address string `json:"address"`
	Data    string `json:"data"`
	Sender  string `json:"sender"`
}

func (*SignPayloadRequest) Kind() Kind { return KindSignPayload }
func (*SignRawRequest) Kind() Kind     { return KindSignRaw }
func (*EncryptRequest) Kind() Kind     { return KindEncrypt }
func (*DecryptRequest) Kind() Kind     { return KindDecrypt }

func (p *SignPayloadRequest) Account() string { return p.Address }
func (p *SignRawRequest) Account() string     { return p.Address }
func (p *EncryptRequest) Account() string     { return p.Address }
func (p *DecryptRequest) Account() string     { return p.Address }

func (*SignPayloadRequest) payload() {}
func (*SignRawRequest) payload()     {}
func (*EncryptRequest) payload()     {}
func (*DecryptRequest) payload()     {}

// Validate implements Payload.
func (p *SignPayloadRequest) Validate() error {
	if p.Address == "" {
		return invalidPayload("address is required")
	}
	if len(p.Payload) == 0 || !json.Valid(p.Payload) {
		return invalidPayload("payload must be a JSON document")
	}
	return nil
}

// Validate implements Payload.
func (p *SignRawRequest) Validate() error {
	if p.Address == "" {
		return invalidPayload("address is required")
	}
	if p.Type != "" && p.Type != "bytes" {
		return invalidPayload(fmt.Sprintf("unsupported type %q", p.Type))
	}
	return validateData(p.Data)
}

// Validate implements Payload.
func (p *EncryptRequest) Validate() error {
	if p.Address == "" {
		return invalidPayload("address is required")
	}
	if p.Recipient == "" {
		return invalidPayload("recipient is required")
	}
	return validateData(p.Data)
}

// Validate implements Payload.
func (p *DecryptRequest) Validate() error {
	if p.Address == "" {
		return invalidPayload("address is required")
	}
	if p.Sender == "" {
		return invalidPayload("sender is required")
	}
	return validateData(p.Data)
}

func validateData(data string) error {
	if !crypto.IsHex(data) {
		return invalidPayload("data must be 0x-prefixed hex")
	}
	return nil
}

func invalidPayload(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, msg)
}

// clonePayload returns a deep copy so the queued request cannot be mutated
// through the caller's pointer.
func clonePayload(p Payload) Payload {
	switch p := p.(type) {
	case *SignPayloadRequest:
		c := *p
		c.Payload = append(json.RawMessage(nil), p.Payload...)
		return &c
	case *SignRawRequest:
		c := *p
		return &c
	case *EncryptRequest:
		c := *p
		return &c
	case *DecryptRequest:
		c := *p
		return &c
	}
	return p
}

// DecodePayload decodes the JSON form of a payload of the given kind.
func DecodePayload(kind Kind, data []byte) (Payload, error) {
	var p Payload
	switch kind {
	case KindSignPayload:
		p = &SignPayloadRequest{}
	case KindSignRaw:
		p = &SignRawRequest{}
	case KindEncrypt:
		p = &EncryptRequest{}
	case KindDecrypt:
		p = &DecryptRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, invalidPayload(err.Error())
	}
	return p, nil
}
