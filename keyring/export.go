package keyring

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/vaultsandbox/signbroker-go/internal/crypto"
)

// ExportVersion is the current keyring file format version.
const ExportVersion = 1

// ErrInvalidImportData is returned when a keyring file fails validation.
var ErrInvalidImportData = errors.New("invalid keyring data")

// ExportedKeyring is the on-disk form of a keyring.
// Seeds are only present sealed; no secret or unlocked key is ever written.
type ExportedKeyring struct {
	Version    int                 `json:"version"`
	ExportedAt time.Time           `json:"exportedAt"`
	Argon2     crypto.Argon2Params `json:"argon2"`
	Accounts   []ExportedAccount   `json:"accounts"`
	Contacts   []ExportedContact   `json:"contacts,omitempty"`
}

// ExportedAccount is one sealed account. Binary fields are base64url.
type ExportedAccount struct {
	Address      string              `json:"address"`
	Name         string              `json:"name,omitempty"`
	KEMPublicKey string              `json:"kemPublicKey"`
	SigPublicKey string              `json:"sigPublicKey"`
	Salt         string              `json:"salt"`
	SealedSeed   string              `json:"sealedSeed"`
	Argon2       crypto.Argon2Params `json:"argon2"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// ExportedContact is one contact's public keys.
type ExportedContact struct {
	Address      string `json:"address"`
	Name         string `json:"name,omitempty"`
	KEMPublicKey string `json:"kemPublicKey"`
	SigPublicKey string `json:"sigPublicKey"`
}

// Validate checks structure, key sizes and that every address matches its keys.
func (e *ExportedKeyring) Validate() error {
	if e.Version != ExportVersion {
		return fmt.Errorf("%w: unsupported version %d, expected %d", ErrInvalidImportData, e.Version, ExportVersion)
	}
	for i := range e.Accounts {
		a := &e.Accounts[i]
		if err := validateKeys(a.Address, a.KEMPublicKey, a.SigPublicKey); err != nil {
			return fmt.Errorf("account %d: %w", i, err)
		}
		salt, err := crypto.FromBase64URL(a.Salt)
		if err != nil || len(salt) != crypto.SaltSize {
			return fmt.Errorf("%w: account %d: invalid salt", ErrInvalidImportData, i)
		}
		sealed, err := crypto.FromBase64URL(a.SealedSeed)
		if err != nil || len(sealed) != crypto.AESNonceSize+crypto.SeedSize+crypto.AESTagSize {
			return fmt.Errorf("%w: account %d: invalid sealedSeed", ErrInvalidImportData, i)
		}
		if a.Argon2.Time == 0 || a.Argon2.Memory == 0 || a.Argon2.Threads == 0 {
			return fmt.Errorf("%w: account %d: argon2 parameters are required", ErrInvalidImportData, i)
		}
	}
	for i := range e.Contacts {
		c := &e.Contacts[i]
		if err := validateKeys(c.Address, c.KEMPublicKey, c.SigPublicKey); err != nil {
			return fmt.Errorf("contact %d: %w", i, err)
		}
	}
	return nil
}

func validateKeys(address, kemB64, sigB64 string) error {
	kem, err := crypto.FromBase64URL(kemB64)
	if err != nil || len(kem) != crypto.MLKEMPublicKeySize {
		return fmt.Errorf("%w: invalid kemPublicKey", ErrInvalidImportData)
	}
	sig, err := crypto.FromBase64URL(sigB64)
	if err != nil || len(sig) != crypto.MLDSAPublicKeySize {
		return fmt.Errorf("%w: invalid sigPublicKey", ErrInvalidImportData)
	}
	if EncodeAddress(kem, sig) != address {
		return fmt.Errorf("%w: address %q does not match its keys", ErrInvalidImportData, address)
	}
	return nil
}

// Export returns the exportable form of the keyring.
func (k *Keyring) Export() *ExportedKeyring {
	out := &ExportedKeyring{
		Version:    ExportVersion,
		ExportedAt: k.now().UTC(),
		Argon2:     k.params,
		Accounts:   []ExportedAccount{},
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	for _, a := range k.sortedAccountsLocked() {
		out.Accounts = append(out.Accounts, ExportedAccount{
			Address:      a.Address,
			Name:         a.Name,
			KEMPublicKey: crypto.ToBase64URL(a.KEMPublicKey),
			SigPublicKey: crypto.ToBase64URL(a.SigPublicKey),
			Salt:         crypto.ToBase64URL(a.salt),
			SealedSeed:   crypto.ToBase64URL(a.sealed),
			Argon2:       a.params,
			CreatedAt:    a.CreatedAt,
		})
	}
	contacts := make([]*Contact, 0, len(k.contacts))
	for _, c := range k.contacts {
		contacts = append(contacts, c)
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Address < contacts[j].Address })
	for _, c := range contacts {
		out.Contacts = append(out.Contacts, ExportedContact{
			Address:      c.Address,
			Name:         c.Name,
			KEMPublicKey: crypto.ToBase64URL(c.KEMPublicKey),
			SigPublicKey: crypto.ToBase64URL(c.SigPublicKey),
		})
	}
	return out
}

func (k *Keyring) sortedAccountsLocked() []*Account {
	out := make([]*Account, 0, len(k.accounts))
	for _, a := range k.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Address < out[j].Address
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Import builds a keyring from exported data.
func Import(data *ExportedKeyring, opts ...Option) (*Keyring, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	k := New(append([]Option{WithArgon2Params(data.Argon2)}, opts...)...)
	for _, a := range data.Accounts {
		// Validate already checked every encoding.
		kem, _ := crypto.FromBase64URL(a.KEMPublicKey)
		sig, _ := crypto.FromBase64URL(a.SigPublicKey)
		salt, _ := crypto.FromBase64URL(a.Salt)
		sealed, _ := crypto.FromBase64URL(a.SealedSeed)

		if err := k.insert(&Account{
			Address:      a.Address,
			Name:         a.Name,
			KEMPublicKey: kem,
			SigPublicKey: sig,
			CreatedAt:    a.CreatedAt,
			salt:         salt,
			sealed:       sealed,
			params:       a.Argon2,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImportData, err)
		}
	}
	for _, c := range data.Contacts {
		kem, _ := crypto.FromBase64URL(c.KEMPublicKey)
		sig, _ := crypto.FromBase64URL(c.SigPublicKey)
		if _, err := k.AddContact(c.Name, kem, sig); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImportData, err)
		}
	}
	return k, nil
}

// SaveFile writes the keyring to a JSON file with secure permissions (0600).
func (k *Keyring) SaveFile(path string) error {
	jsonData, err := json.MarshalIndent(k.Export(), "", "  ")
	if err != nil {
		return fmt.Errorf("keyring: marshal: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0600); err != nil {
		return fmt.Errorf("keyring: write file: %w", err)
	}
	return nil
}

// LoadFile reads a keyring written by SaveFile. A missing file yields an
// error matching os.ErrNotExist.
func LoadFile(path string, opts ...Option) (*Keyring, error) {
	jsonData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyring: read file: %w", err)
	}

	var data ExportedKeyring
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImportData, err)
	}
	return Import(&data, opts...)
}
