package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nholik/case-sentinel/cmd/case-sentinel/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.ExecuteContext(ctx)
}
