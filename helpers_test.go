package signbroker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vaultsandbox/signbroker-go/internal/crypto"
)

const (
	testSecret  = "correct-secret"
	aliceAddr   = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	charlieAddr = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	badAddr     = "not-an-address"
)

// fakeVault is a Vault test double. It accepts testSecret, rejects badAddr and
// can be made to block until released.
type fakeVault struct {
	calls atomic.Int32

	mu      sync.Mutex
	seen    []vaultCall
	gate    chan struct{} // if set, each call waits for a receive
	entered chan struct{} // if set, signalled when a call starts
}

type vaultCall struct {
	Op      string
	Address string
	Peer    string
	Data    []byte
	// Secret is the slice the Authority passed in, not a copy.
	Secret []byte
}

func (f *fakeVault) do(ctx context.Context, op, address string, secret []byte, peer string, data []byte) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, vaultCall{Op: op, Address: address, Peer: peer, Data: append([]byte(nil), data...), Secret: secret})
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if address == badAddr || peer == badAddr {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, badAddr)
	}
	if string(secret) != testSecret {
		return nil, ErrWrongSecret
	}
	switch op {
	case "decrypt":
		return crypto.UnwrapBytes(data), nil
	default:
		return append([]byte(op+":"), data...), nil
	}
}

func (f *fakeVault) SignPayload(ctx context.Context, address string, secret, data []byte) ([]byte, error) {
	return f.do(ctx, "payload", address, secret, "", data)
}

func (f *fakeVault) SignRaw(ctx context.Context, address string, secret, data []byte) ([]byte, error) {
	return f.do(ctx, "raw", address, secret, "", data)
}

func (f *fakeVault) EncryptMessage(ctx context.Context, address string, secret []byte, recipient string, data []byte) ([]byte, error) {
	return f.do(ctx, "encrypt", address, secret, recipient, data)
}

func (f *fakeVault) DecryptMessage(ctx context.Context, address string, secret []byte, sender string, data []byte) ([]byte, error) {
	return f.do(ctx, "decrypt", address, secret, sender, data)
}

func (f *fakeVault) lastCall() vaultCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[len(f.seen)-1]
}

func decryptPayload() *DecryptRequest {
	return &DecryptRequest{Address: aliceAddr, Data: "0xdeadbeef", Sender: charlieAddr}
}

func rawPayload(data string) *SignRawRequest {
	return &SignRawRequest{Address: aliceAddr, Data: data}
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newTestAuthority(t *testing.T, v Vault, opts ...Option) *Authority {
	t.Helper()
	a := NewAuthority(v, append([]Option{WithClock(fixedClock())}, opts...)...)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func submit(t *testing.T, a *Authority, p Payload) *Pending {
	t.Helper()
	pending, err := a.Submit(context.Background(), "test", p)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return pending
}
