package ui

import (
	"fmt"
	"strings"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/negotiation"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ParticipantsView renders the remote peers as a table.
func ParticipantsView(rows []PeerRow, spin string) string {
	headers := []string{"Participant", "Status", "Role", "Media", "Client"}

	var data [][]string
	for _, r := range rows {
		name := r.Name
		if name == "" {
			name = shortID(r.ID)
		}
		if r.Presenting {
			name += " " + PresentingStyle.Render("presenting")
		}

		role := "answering"
		if r.Initiator {
			role = "offering"
		}

		data = append(data, []string{
			name,
			stateLabel(r, spin),
			role,
			mediaLabel(r.Media),
			r.Client,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RoomInfo is the banner printed when a room is created.
type RoomInfo struct {
	RoomID   string
	RoomLink string
}

func (r RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Ready!\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconLink, MutedStyle.Render(r.RoomLink),
	)

	return boxStyle.Render(content)
}

func stateLabel(r PeerRow, spin string) string {
	switch r.State {
	case negotiation.StateConnected:
		return SuccessStyle.Render("connected")
	case negotiation.StateDisconnected:
		return WarningStyle.Render("reconnecting")
	}
	// No timeout: a stalled negotiation keeps showing as connecting.
	return spin + " connecting"
}

func mediaLabel(kinds map[string]bool) string {
	var parts []string
	for _, k := range []string{"audio", "video"} {
		if kinds[k] {
			parts = append(parts, k)
		}
	}
	if len(parts) == 0 {
		return MutedStyle.Render("-")
	}
	return strings.Join(parts, "+")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
