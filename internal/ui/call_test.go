package ui

import (
	"errors"
	"testing"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/negotiation"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(m *CallModel, msg tea.Msg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

func TestCallModelTracksPeers(t *testing.T) {
	m := NewCallModel(CallOptions{RoomID: "r1", DisplayName: "Me"})
	assert.Contains(t, m.View(), "Waiting for someone to join")

	send(m, eventMsg{Kind: negotiation.EventPeerAdded, PeerID: "b", DisplayName: "Bob", Initiator: true, State: negotiation.StateIdle})
	send(m, eventMsg{Kind: negotiation.EventPeerAdded, PeerID: "a", DisplayName: "Alice", State: negotiation.StateIdle})

	rows := m.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0].Name)
	assert.Contains(t, m.View(), "connecting")

	send(m, eventMsg{Kind: negotiation.EventPeerState, PeerID: "a", State: negotiation.StateConnected})
	send(m, eventMsg{Kind: negotiation.EventPeerPresenting, PeerID: "a", Presenting: true})
	send(m, RemoteTrackMsg{PeerID: "a", Kind: "video"})
	send(m, ParticipantMsg{PeerID: "a", Client: "pairroom", Version: "1.0.0"})

	rows = m.Rows()
	assert.Equal(t, negotiation.StateConnected, rows[0].State)
	assert.True(t, rows[0].Presenting)
	assert.True(t, rows[0].Media["video"])
	assert.Equal(t, "pairroom 1.0.0", rows[0].Client)
	assert.Contains(t, m.View(), "presenting")

	send(m, eventMsg{Kind: negotiation.EventPeerRemoved, PeerID: "b"})
	require.Len(t, m.Rows(), 1)

	// A stalled peer stays visible as connecting.
	send(m, eventMsg{Kind: negotiation.EventPeerAdded, PeerID: "c", DisplayName: "Carol", State: negotiation.StateAwaitingAnswer})
	assert.Contains(t, m.View(), "connecting")
}

func TestCallModelScreenShareToggle(t *testing.T) {
	var calls []bool
	fail := false
	m := NewCallModel(CallOptions{
		RoomID: "r1",
		ToggleShare: func(on bool) error {
			calls = append(calls, on)
			if fail {
				return errors.New("no screen source")
			}
			return nil
		},
	})

	cmd := send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	assert.Nil(t, send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}), "toggle already in flight")

	send(m, cmd())
	assert.Equal(t, []bool{true}, calls)
	assert.Contains(t, m.View(), "sharing screen")

	fail = true
	cmd = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	require.NotNil(t, cmd)
	send(m, cmd())
	assert.Equal(t, []bool{true, false}, calls)
	assert.Contains(t, m.View(), "no screen source")
}

func TestCallModelQuitsWhenEventsClose(t *testing.T) {
	events := make(chan negotiation.Event)
	close(events)
	m := NewCallModel(CallOptions{Events: events})

	msg := m.listen()()
	cmd := send(m, msg)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}
