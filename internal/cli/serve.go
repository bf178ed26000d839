package cli

import (
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/config"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/logging"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewServeCommand returns the command running the signaling server.
func NewServeCommand() *cobra.Command {
	var opts config.ServerOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the signaling server",
		Example: `  pairroom serve
  pairroom serve --addr :9000 --origin https://rooms.example.com`,
		Args: cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(zerolog.InfoLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(opts)
			if err != nil {
				return err
			}
			return server.New(cfg).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&opts.Addr, "addr", "a", "", "Listen address (default :8080)")
	cmd.Flags().StringSliceVar(&opts.AllowedOrigins, "origin", nil, "Allowed websocket origin (repeatable)")

	return cmd
}
