// Command incidentctl inspects and modifies an incidentcore document store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"incidentcore/internal/cli"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}
