package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	signbroker "github.com/vaultsandbox/signbroker-go"
	"github.com/vaultsandbox/signbroker-go/internal/brokererr"
	"github.com/vaultsandbox/signbroker-go/internal/crypto"
	"github.com/vaultsandbox/signbroker-go/internal/server"
	"github.com/vaultsandbox/signbroker-go/internal/wire"
	"github.com/vaultsandbox/signbroker-go/keyring"
)

const testToken = "review-token"

var fastParams = crypto.Argon2Params{Time: 1, Memory: 64, Threads: 1}

type harness struct {
	env    map[string]string
	stdin  string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(env map[string]string) *harness {
	return &harness{env: env}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()
	return run(context.Background(), append([]string{"signbroker"}, args...), Config{
		Stdin:          strings.NewReader(h.stdin),
		Stdout:         &h.stdout,
		Stderr:         &h.stderr,
		Getenv:         func(k string) string { return h.env[k] },
		KeyringOptions: []keyring.Option{keyring.WithArgon2Params(fastParams)},
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Stdin != os.Stdin {
		t.Error("DefaultConfig().Stdin should be os.Stdin")
	}
	if cfg.Stdout != os.Stdout {
		t.Error("DefaultConfig().Stdout should be os.Stdout")
	}
	if cfg.Stderr != os.Stderr {
		t.Error("DefaultConfig().Stderr should be os.Stderr")
	}
	if cfg.Getenv == nil {
		t.Error("DefaultConfig().Getenv is nil")
	}
}

func TestRun_Usage(t *testing.T) {
	h := newHarness(map[string]string{"SIGNBROKER_REVIEW_TOKEN": testToken})
	tests := [][]string{
		{},
		{"account"},
		{"account", "rename"},
		{"contact", "add", "x"},
		{"frobnicate"},
	}
	for _, args := range tests {
		if err := h.run(t, args...); err == nil {
			t.Errorf("run(%v) error = nil", args)
		}
	}
}

func TestAccountCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyring.json")
	h := newHarness(map[string]string{"SIGNBROKER_KEYRING_PATH": path})

	h.stdin = "first secret\n"
	if err := h.run(t, "account", "new", "alice"); err != nil {
		t.Fatalf("account new error = %v", err)
	}
	var created AccountOutput
	if err := json.Unmarshal(h.stdout.Bytes(), &created); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if created.Name != "alice" || !keyring.ValidAddress(created.Address) {
		t.Errorf("created = %+v", created)
	}

	h.env["SIGNBROKER_SECRET"] = "second secret"
	h.stdin = ""
	if err := h.run(t, "account", "new", "bob"); err != nil {
		t.Fatalf("account new error = %v", err)
	}

	if err := h.run(t, "account", "list"); err != nil {
		t.Fatalf("account list error = %v", err)
	}
	var list []AccountOutput
	if err := json.Unmarshal(h.stdout.Bytes(), &list); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2", len(list))
	}

	if err := h.run(t, "account", "show", created.Address); err != nil {
		t.Fatalf("account show error = %v", err)
	}
	var shown AccountOutput
	if err := json.Unmarshal(h.stdout.Bytes(), &shown); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if shown.KEMPublicKey == "" || shown.SigPublicKey == "" {
		t.Errorf("show output lacks public keys: %+v", shown)
	}

	// the secret is checked against the stored account
	ring, err := keyring.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	_, err = ring.SignRaw(context.Background(), created.Address, []byte("first secret"), []byte("x"))
	if err != nil {
		t.Errorf("SignRaw with stdin secret error = %v", err)
	}

	// a contact built from the shown keys resolves to the same address
	other := filepath.Join(t.TempDir(), "other.json")
	h.env["SIGNBROKER_KEYRING_PATH"] = other
	if err := h.run(t, "contact", "add", "alice", shown.KEMPublicKey, shown.SigPublicKey); err != nil {
		t.Fatalf("contact add error = %v", err)
	}
	var contact map[string]string
	if err := json.Unmarshal(h.stdout.Bytes(), &contact); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if contact["address"] != created.Address {
		t.Errorf("contact address = %q, want %q", contact["address"], created.Address)
	}
}

func TestAccountNew_NoSecret(t *testing.T) {
	h := newHarness(map[string]string{"SIGNBROKER_KEYRING_PATH": filepath.Join(t.TempDir(), "k.json")})
	if err := h.run(t, "account", "new", "alice"); err == nil {
		t.Error("account new without secret error = nil")
	}
}

func TestAccountShow_MissingKeyring(t *testing.T) {
	h := newHarness(map[string]string{"SIGNBROKER_KEYRING_PATH": filepath.Join(t.TempDir(), "k.json")})
	if err := h.run(t, "account", "show", "sbxyz"); err == nil {
		t.Error("account show on missing keyring error = nil")
	}
}

// okVault answers every operation with fixed bytes.
type okVault struct{}

func (okVault) check(secret []byte) error {
	if string(secret) != "pw" {
		return signbroker.ErrWrongSecret
	}
	return nil
}

func (v okVault) SignPayload(_ context.Context, _ string, s, _ []byte) ([]byte, error) {
	return []byte{0xaa}, v.check(s)
}

func (v okVault) SignRaw(_ context.Context, _ string, s, _ []byte) ([]byte, error) {
	return []byte{0xaa}, v.check(s)
}

func (v okVault) EncryptMessage(_ context.Context, _ string, s []byte, _ string, _ []byte) ([]byte, error) {
	return []byte{0xaa}, v.check(s)
}

func (v okVault) DecryptMessage(_ context.Context, _ string, s []byte, _ string, _ []byte) ([]byte, error) {
	return []byte{0xaa}, v.check(s)
}

func newDaemon(t *testing.T) (*signbroker.Authority, string) {
	t.Helper()
	auth := signbroker.NewAuthority(okVault{})
	srv := server.New(auth, server.WithReviewToken(testToken))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = auth.Close(context.Background())
		ts.Close()
		srv.Close()
	})
	return auth, ts.URL
}

func TestReviewCommands(t *testing.T) {
	auth, url := newDaemon(t)
	ctx := context.Background()
	var pending []*signbroker.Pending
	for i := 0; i < 3; i++ {
		p, err := auth.Submit(ctx, "app", &signbroker.SignRawRequest{Address: "alice", Data: "0x01"})
		if err != nil {
			t.Fatal(err)
		}
		pending = append(pending, p)
	}

	h := newHarness(map[string]string{
		"SIGNBROKER_URL":          url,
		"SIGNBROKER_REVIEW_TOKEN": testToken,
	})

	if err := h.run(t, "pending"); err != nil {
		t.Fatalf("pending error = %v", err)
	}
	var list []wire.RequestSummary
	if err := json.Unmarshal(h.stdout.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(pending) = %d, want 3", len(list))
	}

	state := func(args ...string) wire.ReviewState {
		t.Helper()
		if err := h.run(t, args...); err != nil {
			t.Fatalf("%v error = %v", args, err)
		}
		var s wire.ReviewState
		if err := json.Unmarshal(h.stdout.Bytes(), &s); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return s
	}

	if s := state("current"); s.Index != 0 {
		t.Errorf("current index = %d, want 0", s.Index)
	}
	if s := state("next"); s.Index != 1 {
		t.Errorf("next index = %d, want 1", s.Index)
	}
	if s := state("previous"); s.Index != 0 {
		t.Errorf("previous index = %d, want 0", s.Index)
	}

	h.stdin = "nope\n"
	err := h.run(t, "approve", "1")
	if !errors.Is(err, brokererr.ErrWrongSecret) {
		t.Errorf("approve with wrong secret error = %v, want ErrWrongSecret", err)
	}

	h.stdin = "pw\n"
	if err := h.run(t, "approve", "1"); err != nil {
		t.Fatalf("approve error = %v", err)
	}
	if got := pending[0].Outcome(); got != signbroker.OutcomeApproved {
		t.Errorf("outcome = %s, want approved", got)
	}

	if err := h.run(t, "reject", "2"); err != nil {
		t.Fatalf("reject error = %v", err)
	}
	if _, err := pending[1].Wait(ctx); !errors.Is(err, signbroker.ErrCancelled) {
		t.Errorf("Wait() error = %v, want ErrCancelled", err)
	}

	if err := h.run(t, "reject", "2"); !errors.Is(err, brokererr.ErrStaleRequest) {
		t.Errorf("second reject error = %v, want ErrStaleRequest", err)
	}
	if err := h.run(t, "reject", "x"); err == nil {
		t.Error("reject with bad id error = nil")
	}
}

func TestReviewCommands_NoToken(t *testing.T) {
	h := newHarness(map[string]string{})
	if err := h.run(t, "pending"); err == nil || !strings.Contains(err.Error(), "SIGNBROKER_REVIEW_TOKEN") {
		t.Errorf("pending without token error = %v", err)
	}
}

func TestWatch(t *testing.T) {
	auth, url := newDaemon(t)
	env := map[string]string{
		"SIGNBROKER_URL":          url,
		"SIGNBROKER_REVIEW_TOKEN": testToken,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"signbroker", "watch"}, Config{
			Stdin:  strings.NewReader(""),
			Stdout: out,
			Stderr: &bytes.Buffer{},
			Getenv: func(k string) string { return env[k] },
		})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), `"enqueued"`) {
		if time.Now().After(deadline) {
			t.Fatalf("no event printed; output: %q", out.String())
		}
		// submit until the stream is connected and sees one
		_, _ = auth.Submit(context.Background(), "app", &signbroker.SignRawRequest{Address: "a", Data: "0x01"})
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
