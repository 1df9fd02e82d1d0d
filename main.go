package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rasha-hantash/confluence-mirror/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
