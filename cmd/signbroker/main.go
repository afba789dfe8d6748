// Command signbroker manages keyring accounts and reviews the requests
// queued in a signbrokerd daemon.
//
//	signbroker account new <name>
//	signbroker account list
//	signbroker account show <address>
//	signbroker contact add <name> <kem-public-key> <sig-public-key>
//	signbroker pending
//	signbroker current | next | previous
//	signbroker approve <id>
//	signbroker reject <id>
//	signbroker watch
//
// Secrets are read from SIGNBROKER_SECRET or, when unset, from the first
// line of standard input. The daemon is reached at SIGNBROKER_URL with
// SIGNBROKER_REVIEW_TOKEN.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vaultsandbox/signbroker-go/internal/api"
	"github.com/vaultsandbox/signbroker-go/internal/crypto"
	"github.com/vaultsandbox/signbroker-go/internal/events"
	"github.com/vaultsandbox/signbroker-go/internal/wire"
	"github.com/vaultsandbox/signbroker-go/keyring"
)

const (
	defaultURL     = "http://127.0.0.1:8750"
	defaultKeyring = "signbroker-keyring.json"
)

// Config holds the process-level dependencies of run.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	// KeyringOptions apply when a keyring is created or loaded.
	KeyringOptions []keyring.Option
}

// DefaultConfig returns a Config wired to the process.
func DefaultConfig() Config {
	return Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
	}
}

func run(ctx context.Context, args []string, cfg Config) error {
	if len(args) < 2 {
		return errors.New("usage: signbroker <command> [args]")
	}
	cmd, rest := args[1], args[2:]

	switch cmd {
	case "account":
		if len(rest) == 0 {
			return errors.New("usage: signbroker account new|list|show")
		}
		return runAccount(rest[0], rest[1:], cfg)
	case "contact":
		if len(rest) != 4 || rest[0] != "add" {
			return errors.New("usage: signbroker contact add <name> <kem-public-key> <sig-public-key>")
		}
		return addContact(rest[1], rest[2], rest[3], cfg)
	}

	client, err := reviewClient(cfg)
	if err != nil {
		return err
	}

	switch cmd {
	case "pending":
		list, err := client.ListPending(ctx)
		if err != nil {
			return fmt.Errorf("list pending: %w", err)
		}
		return writeJSON(cfg.Stdout, list)
	case "current":
		state, err := client.Review(ctx)
		if err != nil {
			return fmt.Errorf("review: %w", err)
		}
		return writeJSON(cfg.Stdout, state)
	case "next", "previous":
		state, err := client.Navigate(ctx, cmd)
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		return writeJSON(cfg.Stdout, state)
	case "approve":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		secret, err := readSecret(cfg)
		if err != nil {
			return err
		}
		res, err := client.Approve(ctx, id, secret)
		if err != nil {
			return fmt.Errorf("approve %d: %w", id, err)
		}
		return writeJSON(cfg.Stdout, res)
	case "reject":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		if err := client.Reject(ctx, id); err != nil {
			return fmt.Errorf("reject %d: %w", id, err)
		}
		return writeJSON(cfg.Stdout, wire.DecisionResponse{ID: id, Outcome: "rejected"})
	case "watch":
		return watch(ctx, client, cfg)
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

func runAccount(sub string, args []string, cfg Config) error {
	path := envOr(cfg, "SIGNBROKER_KEYRING_PATH", defaultKeyring)

	switch sub {
	case "new":
		if len(args) != 1 {
			return errors.New("usage: signbroker account new <name>")
		}
		secret, err := readSecret(cfg)
		if err != nil {
			return err
		}
		ring, err := openKeyring(path, cfg, true)
		if err != nil {
			return err
		}
		acct, err := ring.Create(args[0], secret)
		if err != nil {
			return err
		}
		if err := ring.SaveFile(path); err != nil {
			return err
		}
		return writeJSON(cfg.Stdout, accountOutput(acct))

	case "list":
		ring, err := openKeyring(path, cfg, true)
		if err != nil {
			return err
		}
		out := make([]AccountOutput, 0)
		for _, acct := range ring.Accounts() {
			out = append(out, accountOutput(&acct))
		}
		return writeJSON(cfg.Stdout, out)

	case "show":
		if len(args) != 1 {
			return errors.New("usage: signbroker account show <address>")
		}
		ring, err := openKeyring(path, cfg, false)
		if err != nil {
			return err
		}
		acct, err := ring.Account(args[0])
		if err != nil {
			return err
		}
		out := accountOutput(acct)
		out.KEMPublicKey = crypto.ToBase64URL(acct.KEMPublicKey)
		out.SigPublicKey = crypto.ToBase64URL(acct.SigPublicKey)
		return writeJSON(cfg.Stdout, out)
	}
	return fmt.Errorf("unknown account command: %s", sub)
}

func addContact(name, kemB64, sigB64 string, cfg Config) error {
	path := envOr(cfg, "SIGNBROKER_KEYRING_PATH", defaultKeyring)
	kem, err := crypto.FromBase64URL(kemB64)
	if err != nil {
		return fmt.Errorf("decode KEM public key: %w", err)
	}
	sig, err := crypto.FromBase64URL(sigB64)
	if err != nil {
		return fmt.Errorf("decode signature public key: %w", err)
	}

	ring, err := openKeyring(path, cfg, true)
	if err != nil {
		return err
	}
	addr, err := ring.AddContact(name, kem, sig)
	if err != nil {
		return err
	}
	if err := ring.SaveFile(path); err != nil {
		return err
	}
	return writeJSON(cfg.Stdout, map[string]string{"address": addr, "name": name})
}

// AccountOutput is the printed form of an account.
type AccountOutput struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	CreatedAt    string `json:"createdAt"`
	KEMPublicKey string `json:"kemPublicKey,omitempty"`
	SigPublicKey string `json:"sigPublicKey,omitempty"`
}

func accountOutput(a *keyring.Account) AccountOutput {
	return AccountOutput{
		Address:   a.Address,
		Name:      a.Name,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func openKeyring(path string, cfg Config, allowMissing bool) (*keyring.Keyring, error) {
	ring, err := keyring.LoadFile(path, cfg.KeyringOptions...)
	if allowMissing && errors.Is(err, fs.ErrNotExist) {
		return keyring.New(cfg.KeyringOptions...), nil
	}
	return ring, err
}

func reviewClient(cfg Config) (*api.Client, error) {
	token := cfg.Getenv("SIGNBROKER_REVIEW_TOKEN")
	if token == "" {
		return nil, errors.New("SIGNBROKER_REVIEW_TOKEN is not set")
	}
	return api.New(envOr(cfg, "SIGNBROKER_URL", defaultURL), token)
}

func watch(ctx context.Context, client *api.Client, cfg Config) error {
	strategy := events.NewAutoStrategy(events.Config{Source: client})
	enc := json.NewEncoder(cfg.Stdout)
	if err := strategy.Start(ctx, func(_ context.Context, ev *wire.Event) {
		_ = enc.Encode(ev)
	}); err != nil {
		return err
	}
	fmt.Fprintf(cfg.Stderr, "watching via %s\n", strategy.Name())
	<-ctx.Done()
	return strategy.Stop()
}

func readSecret(cfg Config) (string, error) {
	if s := cfg.Getenv("SIGNBROKER_SECRET"); s != "" {
		return s, nil
	}
	line, err := bufio.NewReader(cfg.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("no secret given (set SIGNBROKER_SECRET or pipe it on stdin)")
	}
	return secret, nil
}

func parseID(args []string) (uint64, error) {
	if len(args) != 1 {
		return 0, errors.New("a request id is required")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid request id %q", args[0])
	}
	return id, nil
}

func envOr(cfg Config, key, def string) string {
	if v := cfg.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "signbroker: "+format+"\n", args...)
	os.Exit(1)
}
