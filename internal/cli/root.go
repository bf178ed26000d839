// Package cli holds the pairroom commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/logging"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/ui"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	flagDomain    string
	flagServerURL string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pairroom",
	Short: "Peer-to-peer interview rooms over WebRTC",
	Long: `pairroom joins two or more participants into a live audio, video and
screen-share session. A small signaling server introduces the peers; media
flows directly between them.`,
	Version: version.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// The call view owns the terminal, so only warnings are logged by default.
		logging.Init(zerolog.WarnLevel)
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDomain, "domain", "", "Signaling server domain")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "Signaling websocket URL (overrides --domain)")

	rootCmd.AddCommand(NewServeCommand())
}
