//go:build !testcoverage

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "signbrokerd: %v\n", err)
		os.Exit(1)
	}
}
