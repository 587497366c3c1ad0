package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WaitForShutdown blocks until the process gets SIGINT or SIGTERM, or ctx ends.
func WaitForShutdown(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
}
