package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/stride/internal/seed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seed.NewCommand().ExecuteContext(ctx); err != nil {
		_, _ = os.Stderr.WriteString("seed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
