package keyring

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
	"github.com/vaultsandbox/signbroker-go/internal/crypto"
)

const (
	// AddressPrefix starts every encoded address.
	AddressPrefix = "sb"

	addressVersion  = 1
	addressHashSize = blake2b.Size256
	checksumSize    = 2
	addressBodySize = 1 + addressHashSize + checksumSize
)

var checksumContext = []byte("SBADDR")

// EncodeAddress derives the public address of a keypair.
func EncodeAddress(kemPublicKey, sigPublicKey []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write(kemPublicKey)
	h.Write(sigPublicKey)

	body := make([]byte, 0, addressBodySize)
	body = append(body, addressVersion)
	body = h.Sum(body)
	body = append(body, checksum(body)...)
	return AddressPrefix + crypto.ToBase64URL(body)
}

// DecodeAddress validates an address and returns its key hash.
// Every failure matches signbroker.ErrInvalidAddress.
func DecodeAddress(address string) ([]byte, error) {
	if !strings.HasPrefix(address, AddressPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", brokererr.ErrInvalidAddress, AddressPrefix)
	}
	body, err := crypto.FromBase64URL(address[len(AddressPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: bad encoding", brokererr.ErrInvalidAddress)
	}
	if len(body) != addressBodySize {
		return nil, fmt.Errorf("%w: length %d", brokererr.ErrInvalidAddress, len(body))
	}
	if body[0] != addressVersion {
		return nil, fmt.Errorf("%w: version %d", brokererr.ErrInvalidAddress, body[0])
	}
	payload := body[:1+addressHashSize]
	if !bytes.Equal(checksum(payload), body[1+addressHashSize:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", brokererr.ErrInvalidAddress)
	}
	return bytes.Clone(payload[1:]), nil
}

// ValidAddress reports whether address decodes.
func ValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}

func checksum(payload []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(checksumContext)
	h.Write(payload)
	return h.Sum(nil)[:checksumSize]
}
