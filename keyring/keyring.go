package keyring

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
	"github.com/vaultsandbox/signbroker-go/internal/crypto"
)

// Account is a signing account. Only public keys and the sealed seed are
// held; the seed is opened per operation.
type Account struct {
	Address      string
	Name         string
	KEMPublicKey []byte
	SigPublicKey []byte
	CreatedAt    time.Time

	salt   []byte
	sealed []byte
	params crypto.Argon2Params
}

// Contact is the public half of another party's account.
type Contact struct {
	Address      string
	Name         string
	KEMPublicKey []byte
	SigPublicKey []byte
}

// Keyring is a set of accounts and contacts. It is safe for concurrent use.
type Keyring struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	contacts map[string]*Contact
	params   crypto.Argon2Params
	now      func() time.Time
}

// Option configures a Keyring.
type Option func(*Keyring)

// WithArgon2Params sets the Argon2id cost used when sealing new accounts.
// Accounts keep the parameters they were sealed with.
func WithArgon2Params(p crypto.Argon2Params) Option {
	return func(k *Keyring) {
		k.params = p
	}
}

// WithClock overrides the time source used to stamp new accounts.
func WithClock(now func() time.Time) Option {
	return func(k *Keyring) {
		k.now = now
	}
}

// New returns an empty keyring.
func New(opts ...Option) *Keyring {
	k := &Keyring{
		accounts: make(map[string]*Account),
		contacts: make(map[string]*Contact),
		params:   crypto.DefaultArgon2Params(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Create generates a new account sealed under secret.
func (k *Keyring) Create(name, secret string) (*Account, error) {
	if secret == "" {
		return nil, fmt.Errorf("keyring: secret must not be empty")
	}

	seed, err := crypto.GenerateSeed()
	if err != nil {
		return nil, fmt.Errorf("keyring: generate seed: %w", err)
	}
	defer crypto.Zero(seed)

	return k.addSeed(name, seed, []byte(secret))
}

func (k *Keyring) addSeed(name string, seed, secret []byte) (*Account, error) {
	keys, err := crypto.DeriveAccountKeys(seed)
	if err != nil {
		return nil, err
	}
	defer keys.Release()

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}

	sealed, err := crypto.SealSeed(seed, secret, salt, k.params)
	if err != nil {
		return nil, fmt.Errorf("keyring: seal seed: %w", err)
	}

	acct := &Account{
		Address:      EncodeAddress(keys.KEMPublicKey, keys.SigPublicKey),
		Name:         name,
		KEMPublicKey: keys.KEMPublicKey,
		SigPublicKey: keys.SigPublicKey,
		CreatedAt:    k.now().UTC(),
		salt:         salt,
		sealed:       sealed,
		params:       k.params,
	}
	if err := k.insert(acct); err != nil {
		return nil, err
	}
	return acct.clone(), nil
}

func (k *Keyring) insert(acct *Account) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.accounts[acct.Address]; exists {
		return fmt.Errorf("keyring: account %s already exists", acct.Address)
	}
	k.accounts[acct.Address] = acct
	return nil
}

// Accounts returns all accounts ordered by creation time.
func (k *Keyring) Accounts() []Account {
	k.mu.RLock()
	defer k.mu.RUnlock()

	sorted := k.sortedAccountsLocked()
	out := make([]Account, 0, len(sorted))
	for _, a := range sorted {
		out = append(out, *a.clone())
	}
	return out
}

// Account looks up an account by address.
func (k *Keyring) Account(address string) (*Account, error) {
	acct, err := k.account(address)
	if err != nil {
		return nil, err
	}
	return acct.clone(), nil
}

// Remove deletes an account. The secret must open its seed.
func (k *Keyring) Remove(address, secret string) error {
	keys, err := k.unlock(address, []byte(secret))
	if err != nil {
		return err
	}
	keys.Release()

	k.mu.Lock()
	delete(k.accounts, address)
	k.mu.Unlock()
	return nil
}

// AddContact registers another party's public keys and returns its address.
func (k *Keyring) AddContact(name string, kemPublicKey, sigPublicKey []byte) (string, error) {
	if len(kemPublicKey) != crypto.MLKEMPublicKeySize {
		return "", fmt.Errorf("keyring: %w", crypto.ErrInvalidPublicKeySize)
	}
	if len(sigPublicKey) != crypto.MLDSAPublicKeySize {
		return "", fmt.Errorf("keyring: %w", crypto.ErrInvalidPublicKeySize)
	}

	c := &Contact{
		Address:      EncodeAddress(kemPublicKey, sigPublicKey),
		Name:         name,
		KEMPublicKey: bytes.Clone(kemPublicKey),
		SigPublicKey: bytes.Clone(sigPublicKey),
	}

	k.mu.Lock()
	k.contacts[c.Address] = c
	k.mu.Unlock()
	return c.Address, nil
}

// Contacts returns all contacts ordered by address.
func (k *Keyring) Contacts() []Contact {
	k.mu.RLock()
	out := make([]Contact, 0, len(k.contacts))
	for _, c := range k.contacts {
		out = append(out, *c)
	}
	k.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (k *Keyring) account(address string) (*Account, error) {
	if _, err := DecodeAddress(address); err != nil {
		return nil, err
	}
	k.mu.RLock()
	acct, ok := k.accounts[address]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no account %s", brokererr.ErrInvalidAddress, address)
	}
	return acct, nil
}

// publicKeys resolves an address among accounts and contacts.
func (k *Keyring) publicKeys(address string) (kemPub, sigPub []byte, err error) {
	if _, err := DecodeAddress(address); err != nil {
		return nil, nil, err
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if acct, ok := k.accounts[address]; ok {
		return acct.KEMPublicKey, acct.SigPublicKey, nil
	}
	if c, ok := k.contacts[address]; ok {
		return c.KEMPublicKey, c.SigPublicKey, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown address %s", brokererr.ErrInvalidAddress, address)
}

// unlock opens the account seed and derives its keys. The caller must
// Release the returned keys.
func (k *Keyring) unlock(address string, secret []byte) (*crypto.AccountKeys, error) {
	acct, err := k.account(address)
	if err != nil {
		return nil, err
	}

	seed, err := crypto.OpenSeed(acct.sealed, secret, acct.salt, acct.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", brokererr.ErrWrongSecret, address)
	}
	defer crypto.Zero(seed)

	return crypto.DeriveAccountKeys(seed)
}

func (a *Account) clone() *Account {
	c := *a
	c.KEMPublicKey = bytes.Clone(a.KEMPublicKey)
	c.SigPublicKey = bytes.Clone(a.SigPublicKey)
	c.salt = bytes.Clone(a.salt)
	c.sealed = bytes.Clone(a.sealed)
	return &c
}
