package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/config"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/negotiation"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/signalclient"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/ui"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/version"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/webrtc"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagJoinName       string
	flagJoinSTUN       string
	flagJoinTURN       string
	flagJoinTURNUser   string
	flagJoinTURNPass   string
	flagJoinRelay      bool
	flagJoinOfferDelay time.Duration
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join an interview room",
	Long: `Join an interview room and start a peer-to-peer call with everyone in it.

Examples:
  pairroom join brave-otter-lamp
  pairroom join https://rooms.deepcode.dev/r/brave-otter-lamp
  pairroom join brave-otter-lamp --name "Ada" --relay`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig(config.Options{
			DisplayName: flagJoinName,
			STUNServer:  flagJoinSTUN,
			TURNServer:  flagJoinTURN,
			TURNUser:    flagJoinTURNUser,
			TURNPass:    flagJoinTURNPass,
			ForceRelay:  flagJoinRelay,
			OfferDelay:  flagJoinOfferDelay,
		})
		if err != nil {
			return err
		}

		return joinRoom(cmd.Context(), cfg, roomID)
	},
}

func joinRoom(parent context.Context, cfg *config.Config, roomID string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	fmt.Println()
	sp := ui.NewConnectionSpinner("Connecting to signaling server...")
	sp.Start()

	client := signalclient.New(cfg.ServerURL)
	if err := client.Connect(ctx); err != nil {
		sp.Error("Could not reach the signaling server")
		return err
	}
	defer client.Close()
	sp.Success("Connected")

	if cfg.GetTURNServers() == nil && webrtc.ShouldForceRelay() {
		ui.PrintWarning("VPN or carrier NAT detected; without a TURN server peers may not connect")
	}

	tracks, err := webrtc.NewTracks()
	if err != nil {
		return err
	}

	// The engine reports into the view, which is created after it.
	var view *ui.CallUI
	engine, err := webrtc.NewEngine(cfg, tracks,
		webrtc.ParticipantInfo{DisplayName: cfg.DisplayName, Client: "pairroom", Version: version.Version},
		webrtc.Observer{
			OnParticipant: func(peerID string, info webrtc.ParticipantInfo) {
				view.Send(ui.ParticipantMsg{PeerID: peerID, Name: info.DisplayName, Client: info.Client, Version: info.Version})
			},
			OnRemoteTrack: func(peerID, kind string) {
				view.Send(ui.RemoteTrackMsg{PeerID: peerID, Kind: kind})
			},
		})
	if err != nil {
		return err
	}

	negotiator := negotiation.New(negotiation.Config{
		RoomID:      roomID,
		SelfID:      client.ID(),
		DisplayName: cfg.DisplayName,
		OfferDelay:  cfg.OfferDelay,
	}, engine, client)

	view = ui.NewCallUI(ctx, ui.CallOptions{
		RoomID:      roomID,
		RoomLink:    cfg.GetRoomLink(roomID),
		DisplayName: cfg.DisplayName,
		Events:      negotiator.Events(),
		ToggleShare: negotiator.SetScreenShare,
	})

	runErr := make(chan error, 1)
	go func() { runErr <- negotiator.Run(ctx) }()

	listenErr := make(chan error, 1)
	go func() {
		err := client.Listen(ctx, negotiator)
		if errors.Is(err, signalclient.ErrClosed) {
			// Server went away; the view exits once the negotiator stops.
			cancel()
		}
		listenErr <- err
	}()

	viewErr := view.Run()
	cancel()

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Msg("Negotiator stopped")
	}
	if err := <-listenErr; errors.Is(err, signalclient.ErrClosed) && parent.Err() == nil {
		return fmt.Errorf("lost connection to the signaling server")
	}
	return viewErr
}

func loadConfig(opts config.Options) (*config.Config, error) {
	opts.Domain = flagDomain
	opts.ServerURL = flagServerURL

	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagJoinName, "name", "n", "", "Display name shown to others")
	joinCmd.Flags().StringVarP(&flagJoinSTUN, "stun", "s", "", "Custom STUN server")
	joinCmd.Flags().StringVarP(&flagJoinTURN, "turn", "t", "", "Custom TURN server")
	joinCmd.Flags().StringVar(&flagJoinTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagJoinTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagJoinRelay, "relay", "r", false, "Force relay mode")
	joinCmd.Flags().DurationVar(&flagJoinOfferDelay, "offer-delay", 0, "Wait before offering to a newcomer (default 1s)")
}
