// cmd/cmhistory/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/cmhistory/internal/cli"
)

func main() {
	// Interrupts cancel the context so a running crawl stops between pages
	// and the browser is closed cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
