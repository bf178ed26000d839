package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/config"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/dns"
	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/ui"
	"github.com/spf13/cobra"
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Create or inspect rooms",
}

var roomNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Reserve a memorable room id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		var created struct {
			RoomID string `json:"roomId"`
		}
		if err := apiCall(cmd, http.MethodPost, cfg.APIURL+"/api/rooms", &created); err != nil {
			return err
		}

		fmt.Println(ui.RoomInfo{RoomID: created.RoomID, RoomLink: cfg.GetRoomLink(created.RoomID)}.View())
		fmt.Println(ui.MutedStyle.Render("Join with: pairroom join " + created.RoomID))
		return nil
	},
}

var roomStatusCmd = &cobra.Command{
	Use:   "status <room-id|url>",
	Short: "Show whether a room is live and how many people are in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		var status struct {
			Exists  bool `json:"exists"`
			Members int  `json:"members"`
		}
		if err := apiCall(cmd, http.MethodGet, cfg.APIURL+"/api/rooms/"+url.PathEscape(roomID), &status); err != nil {
			return err
		}

		if !status.Exists {
			ui.PrintInfo(fmt.Sprintf("Room %s is empty", roomID))
			return nil
		}
		ui.PrintSuccess(fmt.Sprintf("Room %s has %d participant(s)", roomID, status.Members))
		return nil
	},
}

// apiCall performs a JSON request against the signaling server's HTTP API.
func apiCall(cmd *cobra.Command, method, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, endpoint, nil)
	if err != nil {
		return err
	}

	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{DialContext: dns.NewResolver().DialContext},
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: server returned %s", method, endpoint, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func init() {
	roomCmd.AddCommand(roomNewCmd, roomStatusCmd)
	rootCmd.AddCommand(roomCmd)
}
