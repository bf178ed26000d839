package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/NALLAMDEEPAK/DeepCode-sub000/internal/negotiation"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// PeerRow is what the call view knows about one remote participant.
type PeerRow struct {
	ID         string
	Name       string
	State      negotiation.State
	Initiator  bool
	Presenting bool
	Client     string
	Media      map[string]bool
}

// ParticipantMsg carries info received on a peer's control channel.
type ParticipantMsg struct {
	PeerID  string
	Name    string
	Client  string
	Version string
}

// RemoteTrackMsg reports a media track arriving from a peer.
type RemoteTrackMsg struct {
	PeerID string
	Kind   string
}

type eventMsg negotiation.Event

type eventsClosedMsg struct{}

type shareResultMsg struct {
	on  bool
	err error
}

// CallOptions configure the call view.
type CallOptions struct {
	RoomID      string
	RoomLink    string
	DisplayName string
	Events      <-chan negotiation.Event
	// ToggleShare switches the local video source; it runs off the UI
	// goroutine.
	ToggleShare func(on bool) error
}

// CallModel is the Bubble Tea model of a live interview room.
type CallModel struct {
	opts    CallOptions
	peers   map[string]*PeerRow
	sharing bool
	pending bool
	status  string
	spinner spinner.Model

	quitting bool
}

// NewCallModel creates the call view model.
func NewCallModel(opts CallOptions) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		opts:    opts,
		peers:   make(map[string]*PeerRow),
		spinner: s,
	}
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *CallModel) listen() tea.Cmd {
	events := m.opts.Events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "s":
			return m, m.toggleShare()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(negotiation.Event(msg))
		return m, m.listen()

	case eventsClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case shareResultMsg:
		m.pending = false
		m.sharing = msg.on
		m.status = ""
		if msg.err != nil {
			m.status = msg.err.Error()
		}

	case ParticipantMsg:
		if p := m.peers[msg.PeerID]; p != nil {
			if p.Name == "" {
				p.Name = msg.Name
			}
			p.Client = strings.TrimSpace(msg.Client + " " + msg.Version)
		}

	case RemoteTrackMsg:
		if p := m.peers[msg.PeerID]; p != nil {
			p.Media[msg.Kind] = true
		}
	}

	return m, nil
}

func (m *CallModel) toggleShare() tea.Cmd {
	if m.pending || m.opts.ToggleShare == nil {
		return nil
	}
	m.pending = true
	on := !m.sharing
	toggle := m.opts.ToggleShare
	return func() tea.Msg {
		return shareResultMsg{on: on, err: toggle(on)}
	}
}

func (m *CallModel) apply(ev negotiation.Event) {
	switch ev.Kind {
	case negotiation.EventPeerAdded:
		m.peers[ev.PeerID] = &PeerRow{
			ID:        ev.PeerID,
			Name:      ev.DisplayName,
			State:     ev.State,
			Initiator: ev.Initiator,
			Media:     make(map[string]bool),
		}
	case negotiation.EventPeerState:
		if p := m.peers[ev.PeerID]; p != nil {
			p.State = ev.State
		}
	case negotiation.EventPeerPresenting:
		if p := m.peers[ev.PeerID]; p != nil {
			p.Presenting = ev.Presenting
		}
	case negotiation.EventPeerRemoved:
		delete(m.peers, ev.PeerID)
	case negotiation.EventLocalPresenting:
		m.sharing = ev.Presenting
	}
}

// Rows returns the peers ordered by name, then id.
func (m *CallModel) Rows() []PeerRow {
	rows := make([]PeerRow, 0, len(m.peers))
	for _, p := range m.peers {
		rows = append(rows, *p)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

func (m *CallModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n%s %s %s\n", IconCamera, TitleStyle.Render("Interview room"), BoldStyle.Render(m.opts.RoomID)))
	if m.opts.RoomLink != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", IconLink, MutedStyle.Render(m.opts.RoomLink)))
	}

	you := fmt.Sprintf("%s You: %s", IconPeer, m.opts.DisplayName)
	if m.sharing {
		you += " " + PresentingStyle.Render(IconScreen+" sharing screen")
	}
	b.WriteString("\n" + you + "\n\n")

	if len(m.peers) == 0 {
		b.WriteString(fmt.Sprintf("%s Waiting for someone to join...\n", m.spinner.View()))
	} else {
		b.WriteString(ParticipantsView(m.Rows(), m.spinner.View()) + "\n")
	}

	if m.status != "" {
		b.WriteString("\n" + ErrorStyle.Render(IconError+" "+m.status) + "\n")
	}

	share := "s share screen"
	if m.sharing {
		share = "s stop sharing"
	}
	b.WriteString(FooterStyle.Render(share + " • q leave"))

	return b.String()
}

// CallUI runs the call view and accepts updates from media callbacks.
type CallUI struct {
	program *tea.Program
}

// NewCallUI creates the program; it stops when ctx is cancelled.
func NewCallUI(ctx context.Context, opts CallOptions) *CallUI {
	return &CallUI{program: tea.NewProgram(NewCallModel(opts), tea.WithContext(ctx))}
}

// Run blocks until the user leaves or the context ends.
func (u *CallUI) Run() error {
	_, err := u.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Send forwards msg to the running view.
func (u *CallUI) Send(msg tea.Msg) {
	u.program.Send(msg)
}
