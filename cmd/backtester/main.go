package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yielddelta/backtester/cmd/backtester/commands"
)

// main is the entry point: go run ./cmd/backtester [command]
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
