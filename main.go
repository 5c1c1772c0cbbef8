// relaytap - a TCP intercepting relay that hex dumps both directions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"relaytap/cmd"
	rterr "relaytap/internal/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		// Bind failures have already been reported in detail.
		var bindErr *rterr.BindError
		if !errors.As(err, &bindErr) {
			fmt.Fprintf(os.Stderr, "relaytap: %v\n", err)
		}
		cancel()
		os.Exit(1)
	}
}
