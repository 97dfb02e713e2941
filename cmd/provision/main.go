// Command provision installs a game server core and its plugins as
// described by provision.toml.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/git-pkgs/provision/internal/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errItemsFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		if errors.Is(err, core.ErrLockCorrupt) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
