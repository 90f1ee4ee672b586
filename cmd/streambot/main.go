// Package main contains the entrypoint for the streambot Telegram bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop() // Ensure context cancellation is signaled before exit
	if err != nil {
		os.Exit(1)
	}
}
