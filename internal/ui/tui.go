package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"p2pchat/internal/domain"
	"p2pchat/internal/wire"
)

// Styles for the TUI
var (
	primaryColor    = lipgloss.Color("#7C3AED")
	accentColor     = lipgloss.Color("#10B981")
	errorColor      = lipgloss.Color("#EF4444")
	mutedColor      = lipgloss.Color("#6B7280")
	backgroundColor = lipgloss.Color("#1F2937")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Background(backgroundColor).
			Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	systemMessageStyle = lipgloss.NewStyle().
				Foreground(accentColor).
				Italic(true)

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(errorColor)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(primaryColor).
				Bold(true)

	peerMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#3B82F6"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Faint(true)

	peerStyle = lipgloss.NewStyle().
			Foreground(accentColor)
)

const (
	peerPanelWidth = 30
	maxListedPeers = 15
)

type lineKind int

const (
	lineSystem lineKind = iota
	lineError
	lineOwn
	linePeer
)

type chatLine struct {
	Kind    lineKind
	Sender  string
	Content string
	At      time.Time
}

// TUI is the bubbletea model.
type TUI struct {
	ctx        context.Context
	node       Node
	events     <-chan domain.Event
	notifier   Notifier
	lines      []chatLine
	peers      []domain.Address
	viewport   viewport.Model
	textarea   textarea.Model
	ready      bool
	width      int
	height     int
	lastUpdate time.Time
	showHelp   bool
	now        func() time.Time
}

// tickMsg is sent periodically to refresh the peer panel.
type tickMsg time.Time

// eventMsg wraps a node event.
type eventMsg domain.Event

// streamClosedMsg means the node shut down.
type streamClosedMsg struct{}

// resultMsg reports the outcome of a command run off the update loop.
type resultMsg struct {
	text string
	err  error
}

// NewTUI builds the model. events is usually the node's own subscription.
func NewTUI(ctx context.Context, node Node, events <-chan domain.Event) *TUI {
	ta := textarea.New()
	ta.Placeholder = "Type /help for commands..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 500
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return &TUI{
		ctx:        ctx,
		node:       node,
		events:     events,
		viewport:   vp,
		textarea:   ta,
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

// SetNotifier registers n to hear about every received event.
func (ui *TUI) SetNotifier(n Notifier) { ui.notifier = n }

// Init initializes the TUI
func (ui *TUI) Init() tea.Cmd {
	ui.refreshPeers()
	return tea.Batch(
		textarea.Blink,
		ui.listenForEvents(),
		ui.tickCmd(),
	)
}

func (ui *TUI) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ui.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (ui *TUI) tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model
func (ui *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	ui.textarea, tiCmd = ui.textarea.Update(msg)
	ui.viewport, vpCmd = ui.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return ui, tea.Quit

		case tea.KeyCtrlH:
			ui.showHelp = !ui.showHelp
			ui.updateViewport()
			return ui, nil

		case tea.KeyEnter:
			input := strings.TrimSpace(ui.textarea.Value())
			ui.textarea.Reset()
			if input == "" {
				return ui, nil
			}
			return ui, ui.execute(input)
		}

	case tea.WindowSizeMsg:
		ui.width = msg.Width
		ui.height = msg.Height
		ui.ready = true

		headerHeight := 3
		footerHeight := 5
		statusBarHeight := 1
		ui.viewport.Width = max(10, ui.width-peerPanelWidth-5)
		ui.viewport.Height = max(3, ui.height-headerHeight-footerHeight-statusBarHeight)
		ui.textarea.SetWidth(max(10, ui.width-4))
		ui.updateViewport()

	case eventMsg:
		ev := domain.Event(msg)
		if ui.notifier != nil {
			ui.notifier.Notify(ev)
		}
		ui.addEvent(ev)
		return ui, ui.listenForEvents()

	case streamClosedMsg:
		return ui, tea.Quit

	case resultMsg:
		if msg.err != nil {
			ui.addLine(lineError, "", msg.err.Error())
		} else if msg.text != "" {
			ui.addLine(lineSystem, "", msg.text)
		}
		ui.refreshPeers()
		return ui, nil

	case tickMsg:
		ui.refreshPeers()
		ui.lastUpdate = time.Time(msg)
		return ui, ui.tickCmd()
	}

	return ui, tea.Batch(tiCmd, vpCmd)
}

type commandKind int

const (
	cmdBroadcast commandKind = iota
	cmdSend
	cmdConnect
	cmdPeers
	cmdHelp
	cmdQuit
)

type command struct {
	kind   commandKind
	target domain.Address
	text   string
}

var errUsage = errors.New("usage")

// parseCommand turns one line of input into a command. Text without a
// leading slash is a broadcast to every known peer.
func parseCommand(input string) (command, error) {
	if !strings.HasPrefix(input, "/") {
		return command{kind: cmdBroadcast, text: input}, nil
	}

	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/send":
		addr, text, _ := strings.Cut(rest, " ")
		target, err := domain.ParseAddress(addr)
		if err != nil {
			return command{}, fmt.Errorf("%w: /send <host:port> <message>: %v", errUsage, err)
		}
		return command{kind: cmdSend, target: target, text: strings.TrimSpace(text)}, nil
	case "/connect":
		target, err := domain.ParseAddress(rest)
		if err != nil {
			return command{}, fmt.Errorf("%w: /connect <host:port>: %v", errUsage, err)
		}
		return command{kind: cmdConnect, target: target}, nil
	case "/peers":
		return command{kind: cmdPeers}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %s, try /help", name)
	}
}

// execute runs one line of input. Network calls happen in the returned
// command so the update loop never blocks.
func (ui *TUI) execute(input string) tea.Cmd {
	cmd, err := parseCommand(input)
	if err != nil {
		ui.addLine(lineError, "", err.Error())
		return nil
	}

	switch cmd.kind {
	case cmdQuit:
		return tea.Quit

	case cmdHelp:
		ui.showHelp = !ui.showHelp
		ui.updateViewport()
		return nil

	case cmdPeers:
		ui.refreshPeers()
		if len(ui.peers) == 0 {
			ui.addLine(lineSystem, "", "No peers available!")
			return nil
		}
		names := make([]string, len(ui.peers))
		for i, p := range ui.peers {
			names[i] = p.String()
		}
		ui.addLine(lineSystem, "", "Active peers: "+strings.Join(names, ", "))
		return nil

	case cmdConnect:
		target := cmd.target
		return func() tea.Msg {
			if err := ui.node.ConnectToPeer(ui.ctx, target.Host, target.Port); err != nil {
				return resultMsg{err: fmt.Errorf("connection to %s failed: %w", target, err)}
			}
			return resultMsg{text: fmt.Sprintf("Connected to %s", target)}
		}

	case cmdSend:
		ui.addLine(lineOwn, cmd.target.String(), cmd.text)
		target, text := cmd.target, cmd.text
		return func() tea.Msg {
			if err := ui.node.SendMessage(ui.ctx, target.Host, target.Port, text); err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{}
		}

	default:
		peers := ui.node.ListPeers()
		if len(peers) == 0 {
			ui.addLine(lineError, "", "No peers to send to. Use /connect <host:port> first.")
			return nil
		}
		ui.addLine(lineOwn, "all", cmd.text)
		text := cmd.text
		return func() tea.Msg {
			var failed []string
			for _, p := range peers {
				if err := ui.node.SendMessage(ui.ctx, p.Host, p.Port, text); err != nil {
					failed = append(failed, p.String())
				}
			}
			if len(failed) > 0 {
				return resultMsg{err: fmt.Errorf("delivered to %d of %d peers, failed: %s",
					len(peers)-len(failed), len(peers), strings.Join(failed, ", "))}
			}
			return resultMsg{}
		}
	}
}

func (ui *TUI) addEvent(ev domain.Event) {
	switch ev.Kind {
	case domain.EventMessageReceived:
		if ev.Message == nil {
			return
		}
		if wire.IsHandshake(*ev.Message) {
			ui.addLine(lineSystem, "", fmt.Sprintf("%s (%s) connected", ev.Message.Name, ev.Message.From))
			return
		}
		ui.addLineAt(linePeer, fmt.Sprintf("%s@%s", ev.Message.Name, ev.Message.From), ev.Message.Body, ev.Message.ReceivedAt)
	case domain.EventPeerAdded:
		ui.addLine(lineSystem, "", fmt.Sprintf("New peer added: %s", ev.Peer))
	case domain.EventPeerEvicted:
		ui.addLine(lineSystem, "", fmt.Sprintf("Removed inactive peer: %s", ev.Peer))
	}
	ui.refreshPeers()
}

func (ui *TUI) addLine(kind lineKind, sender, content string) {
	ui.addLineAt(kind, sender, content, ui.now())
}

func (ui *TUI) addLineAt(kind lineKind, sender, content string, at time.Time) {
	ui.lines = append(ui.lines, chatLine{Kind: kind, Sender: sender, Content: content, At: at})
	ui.updateViewport()
	ui.viewport.GotoBottom()
}

func (ui *TUI) refreshPeers() {
	ui.peers = ui.node.ListPeers()
}

func (ui *TUI) updateViewport() {
	var content strings.Builder

	if ui.showHelp {
		content.WriteString(helpText)
	} else {
		for _, l := range ui.lines {
			content.WriteString(renderLine(l))
			content.WriteString("\n")
		}
	}

	ui.viewport.SetContent(content.String())
}

func renderLine(l chatLine) string {
	timestamp := timestampStyle.Render(l.At.Format(timeFormat))

	switch l.Kind {
	case lineSystem:
		return fmt.Sprintf("%s %s", timestamp, systemMessageStyle.Render(l.Content))
	case lineError:
		return fmt.Sprintf("%s %s", timestamp, errorMessageStyle.Render(l.Content))
	case lineOwn:
		return fmt.Sprintf("%s %s %s", timestamp, userMessageStyle.Render("[You → "+l.Sender+"]"), l.Content)
	default:
		return fmt.Sprintf("%s %s %s", timestamp, peerMessageStyle.Render("["+l.Sender+"]"), l.Content)
	}
}

const helpText = `
P2P CHAT - HELP

COMMANDS:
  /send <host:port> <message>   Send a message to one node
  /connect <host:port>          Handshake with a node and add it as a peer
  /peers                        List known peers
  /help                         Toggle this help screen
  /quit                         Shut down and exit

Text without a leading slash is sent to every known peer.

PEERS:
  Nodes that message you are added automatically.
  Peers that stop accepting connections are removed
  at the next maintenance cycle.

KEYBOARD SHORTCUTS:
  Ctrl+H              Toggle this help screen
  Ctrl+C / Esc        Quit
  Enter               Send
`

// View renders the TUI
func (ui *TUI) View() string {
	if !ui.ready {
		return "\n  Initializing P2P Chat...\n"
	}

	id := ui.node.Identity()
	header := headerStyle.Render(fmt.Sprintf("P2P Chat - %s", id.Name))

	messagePanel := panelStyle.Width(ui.viewport.Width + 2).Height(ui.viewport.Height + 2).Render(
		fmt.Sprintf("Messages\n%s", ui.viewport.View()))

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, messagePanel, ui.renderPeerPanel())

	inputArea := inputStyle.Width(ui.width - 4).Render(
		fmt.Sprintf("Input (Ctrl+H for help)\n%s", ui.textarea.View()))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		mainContent,
		ui.renderStatusBar(id),
		inputArea,
	)
}

func (ui *TUI) renderPeerPanel() string {
	var content strings.Builder

	content.WriteString("Peers\n")
	content.WriteString(strings.Repeat("─", peerPanelWidth-2) + "\n")

	if len(ui.peers) == 0 {
		content.WriteString("  No peers yet\n\n  Use /connect <host:port>\n  to add one\n")
	} else {
		for i, p := range ui.peers {
			if i >= maxListedPeers {
				content.WriteString(fmt.Sprintf("  ... and %d more\n", len(ui.peers)-maxListedPeers))
				break
			}
			content.WriteString(fmt.Sprintf("  %s %s\n", peerStyle.Render("●"), p))
		}
	}

	return panelStyle.Width(peerPanelWidth).Height(ui.viewport.Height + 2).Render(content.String())
}

func (ui *TUI) renderStatusBar(id domain.Identity) string {
	leftSection := fmt.Sprintf("Node: %s @ %s", id.Name, id.Listen)
	rightSection := fmt.Sprintf("Peers: %d | %s", len(ui.peers), ui.lastUpdate.Format(timeFormat))

	totalWidth := ui.width - 4
	spacing := totalWidth - lipgloss.Width(leftSection) - lipgloss.Width(rightSection)
	if spacing < 0 {
		spacing = 0
	}

	statusText := leftSection + strings.Repeat(" ", spacing) + rightSection
	return statusBarStyle.Width(ui.width - 4).Render(statusText)
}
