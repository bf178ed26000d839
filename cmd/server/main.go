// Command server runs the signaling server on its own, for deployments that
// do not ship the participant CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/cli"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewServeCommand()
	cmd.Use = "server"
	cmd.SilenceUsage = true

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Server failed")
		stop()
		os.Exit(1)
	}
}
