// Package main provides the leapmigrate CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/leapmigrate/internal/cli"
	"github.com/leapstack-labs/leapmigrate/internal/migration"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, migration.NewRegistry())
	stop()
	if err != nil {
		os.Exit(1)
	}
}
