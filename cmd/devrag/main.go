// Command devrag answers questions about developer documentation.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/devrag-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/devrag-cli/internal/app"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, version, app.Bootstrap)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
