// Package keyring holds password-sealed signing accounts and performs the
// privileged operations the broker delegates to its crypto collaborator.
//
// A Keyring never keeps unlocked key material around: every call to
// SignPayload, SignRaw, EncryptMessage or DecryptMessage opens the account
// seed with the supplied secret, derives the keys, performs one operation
// and discards them again. A secret that does not open the seed fails with
// an error matching signbroker.ErrWrongSecret; an address that is malformed
// or not present in the keyring fails with signbroker.ErrInvalidAddress.
//
// *Keyring satisfies signbroker.Vault:
//
//	ring := keyring.New()
//	acct, err := ring.Create("alice", secret)
//	auth := signbroker.NewAuthority(ring)
//
// Besides accounts, a keyring holds contacts: public keys of other parties,
// which are needed to encrypt to a recipient or to authenticate the sender
// of a message being decrypted.
package keyring
