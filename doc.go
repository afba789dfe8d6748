// Package signbroker is a signing-request broker. Untrusted callers submit
// sign, encrypt and decrypt requests for local accounts, and a human reviewer
// approves each one by entering the account secret before any key material
// is touched.
//
// Accounts hold ML-KEM-768 and ML-DSA-65 key pairs sealed under an
// Argon2id-derived key; see the keyring package.
//
// Basic usage:
//
//	ring := keyring.New()
//	acct, err := ring.Create("alice", "correct horse")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	auth := signbroker.NewAuthority(ring)
//	defer auth.Close(ctx)
//
//	// Caller side
//	signer := signbroker.NewSigner(signbroker.NewLocalTransport(auth, "my-app"))
//	go func() {
//	    res, err := signer.SignRaw(ctx, &signbroker.SignRawRequest{
//	        Address: acct.Address,
//	        Data:    "0x68656c6c6f",
//	    })
//	    // ...
//	}()
//
//	// Reviewer side
//	review := signbroker.NewReview(auth)
//	defer review.Close()
//	req, ok := review.Current()
//	if ok {
//	    fmt.Println("approving", req.Kind, "from", req.Origin)
//	    _, err = review.Approve(ctx, "correct horse")
//	}
//
// Remote callers connect through DialWebSocket against a signbrokerd daemon.
package signbroker
