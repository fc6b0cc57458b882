// Command commuteos runs the CommuteOS gateway, routing service and tools.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"commuteos-backend/cmd/commuteos/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := commands.New().Execute(ctx); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
