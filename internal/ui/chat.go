package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JreyForFun/Whispr/internal/pairing"
	"github.com/JreyForFun/Whispr/internal/peer"
)

// pairingEventMsg wraps a controller event for the tea loop.
type pairingEventMsg pairing.Event

// ChatModel is the interactive pairing screen: search status, the running
// conversation and the input line, all driven by controller events.
type ChatModel struct {
	controller *pairing.Controller
	hasVideo   bool

	input textinput.Model
	spin  spinner.Model

	lines         []string
	phase         pairing.Phase
	partnerTyping bool
	typingSent    bool
	quitting      bool
}

// NewChatModel builds the chat screen for an already-searching controller.
func NewChatModel(controller *pairing.Controller, hasVideo bool) *ChatModel {
	input := textinput.New()
	input.Placeholder = "Say something nice..."
	input.CharLimit = 2000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = SpinnerStyle

	return &ChatModel{
		controller: controller,
		hasVideo:   hasVideo,
		input:      input,
		spin:       spin,
		phase:      controller.Phase(),
	}
}

// RunChat starts the search and blocks in the chat UI until the user quits.
func RunChat(controller *pairing.Controller, hasVideo bool) error {
	if err := controller.StartSearch(context.Background(), hasVideo); err != nil {
		return err
	}
	defer controller.Shutdown(context.Background())

	_, err := tea.NewProgram(NewChatModel(controller, hasVideo)).Run()
	return err
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitEvent())
}

// waitEvent relays the next controller event into the tea loop.
func (m *ChatModel) waitEvent() tea.Cmd {
	return func() tea.Msg {
		return pairingEventMsg(<-m.controller.Events())
	}
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.controller.Stop(context.Background())
			return m, tea.Quit
		case "enter":
			return m, m.submit()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case pairingEventMsg:
		m.apply(pairing.Event(msg))
		return m, m.waitEvent()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.syncTyping()
	return m, cmd
}

// submit interprets the input line: slash commands act on the pairing,
// anything else is a chat message.
func (m *ChatModel) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	m.syncTyping()
	if text == "" {
		return nil
	}

	switch {
	case text == "/quit":
		m.quitting = true
		m.controller.Stop(context.Background())
		return tea.Quit

	case text == "/next":
		m.lines = nil
		m.partnerTyping = false
		if err := m.controller.Next(context.Background()); err != nil {
			m.system(ErrorStyle.Render(err.Error()))
		}

	case strings.HasPrefix(text, "/report"):
		reason := strings.TrimSpace(strings.TrimPrefix(text, "/report"))
		if reason == "" {
			reason = "unspecified"
		}
		m.controller.Report(context.Background(), reason)
		m.system(IconShield + " report filed, pairing ended")

	case strings.HasPrefix(text, "/emoji "):
		if manager := m.controller.Manager(); manager != nil {
			emoji := strings.TrimSpace(strings.TrimPrefix(text, "/emoji "))
			manager.SendEmoji(emoji)
			m.system(fmt.Sprintf("you reacted %s", emoji))
		}

	default:
		if manager := m.controller.Manager(); manager != nil {
			manager.SendChat(text)
		} else {
			m.system(MutedStyle.Render("not connected yet"))
		}
	}
	return nil
}

// syncTyping keeps the partner's typing indicator honest: announce once
// when the input becomes non-empty, retract when it empties.
func (m *ChatModel) syncTyping() {
	manager := m.controller.Manager()
	if manager == nil {
		return
	}
	typing := m.input.Value() != ""
	if typing != m.typingSent {
		manager.SendTyping(typing)
		m.typingSent = typing
	}
}

func (m *ChatModel) apply(ev pairing.Event) {
	switch ev.Kind {
	case pairing.EventPhase:
		m.phase = ev.Phase
		switch ev.Phase {
		case pairing.PhaseConnected:
			m.system(IconPeer + " stranger connected, say hi")
		case pairing.PhasePartnerLeft:
			m.partnerTyping = false
			m.system(IconWave + " stranger left (/next to find another)")
		}

	case pairing.EventWarning:
		m.system(WarningStyle.Render(IconWarning + " " + ev.Warning))

	case pairing.EventError:
		m.system(ErrorStyle.Render(ev.Err.Error()))

	case pairing.EventPeer:
		m.applyPeer(ev.Peer)
	}
}

func (m *ChatModel) applyPeer(n peer.Notification) {
	switch n.Kind {
	case peer.NotifyMessage:
		label := ThemStyle.Render("them")
		if n.Message.Sender == peer.SenderMe {
			label = MeStyle.Render("you")
		}
		m.lines = append(m.lines, fmt.Sprintf("%s %s", label, n.Message.Text))

	case peer.NotifyTyping:
		m.partnerTyping = n.IsTyping

	case peer.NotifyEmoji:
		m.system(fmt.Sprintf("stranger reacted %s", n.Emoji))

	case peer.NotifyConnectionLost:
		m.system(WarningStyle.Render(IconWarning + " connection lost"))

	case peer.NotifyRemoteTrack:
		m.system(IconVideo + " receiving stranger video")

	case peer.NotifyError:
		m.system(ErrorStyle.Render(n.Err.Error()))
	}
}

func (m *ChatModel) system(line string) {
	m.lines = append(m.lines, SystemStyle.Render("· ")+line)
}

func (m *ChatModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	mode := IconChat + " text"
	if m.hasVideo {
		mode = IconVideo + " video"
	}
	b.WriteString(TitleStyle.Render("whispr") + " " + MutedStyle.Render(mode) + "\n\n")

	switch m.phase {
	case pairing.PhaseSearching:
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spin.View(), "Looking for a stranger..."))
	case pairing.PhaseIdle:
		b.WriteString(MutedStyle.Render("Idle.") + "\n\n")
	}

	for _, line := range m.lines {
		b.WriteString(line + "\n")
	}
	if m.partnerTyping {
		b.WriteString(SystemStyle.Render("stranger is typing...") + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(MutedStyle.Render("/next · /report <reason> · /emoji <e> · /quit"))
	return b.String()
}
