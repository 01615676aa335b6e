package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"p2pchat/internal/domain"
)

const choicePrompt = "Enter choice: "

// Menu is the numbered line-oriented interface.
type Menu struct {
	node     Node
	in       *bufio.Scanner
	out      io.Writer
	mu       sync.Mutex
	notifier Notifier
}

// NewMenu reads choices from in and writes everything to out.
func NewMenu(node Node, in io.Reader, out io.Writer) *Menu {
	return &Menu{node: node, in: bufio.NewScanner(in), out: out}
}

// SetNotifier registers n to hear about every watched event.
func (m *Menu) SetNotifier(n Notifier) { m.notifier = n }

// Run shows the menu until the user quits or input ends. Either way the node
// is shut down before Run returns.
func (m *Menu) Run(ctx context.Context) error {
	id := m.node.Identity()
	m.printf("Node %s listening on %s\n", id.Name, id.Listen)

	for {
		m.printf("\n***** Menu *****\n1. Send message\n2. Query active peers\n3. Connect to peer\n0. Quit\n")

		choice, err := m.prompt(choicePrompt)
		if err != nil {
			m.node.Shutdown()
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch choice {
		case "1":
			err = m.send(ctx)
		case "2":
			m.listPeers()
		case "3":
			err = m.connect(ctx)
		case "0":
			m.node.Shutdown()
			m.printf("Exiting...\n")
			return nil
		default:
			m.printf("Invalid choice!\n")
		}

		if errors.Is(err, io.EOF) {
			m.node.Shutdown()
			return nil
		}
	}
}

func (m *Menu) send(ctx context.Context) error {
	host, port, err := m.readTarget("Enter recipient IP: ", "Enter recipient port: ")
	if err != nil || port == 0 {
		return err
	}
	body, err := m.prompt("Enter message: ")
	if err != nil {
		return err
	}

	target := domain.Address{Host: host, Port: port}
	if err := m.node.SendMessage(ctx, host, port, body); err != nil {
		m.printf("Failed to send message to %s - %v\n", target, err)
		return nil
	}
	m.printf("Message sent to %s\n", target)
	return nil
}

func (m *Menu) listPeers() {
	peers := m.node.ListPeers()
	if len(peers) == 0 {
		m.printf("\nNo peers available!\n")
		return
	}
	var b strings.Builder
	b.WriteString("\nActive peers:\n")
	for i, p := range peers {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p)
	}
	m.printf("%s", b.String())
}

func (m *Menu) connect(ctx context.Context) error {
	host, port, err := m.readTarget("Enter peer IP: ", "Enter peer port: ")
	if err != nil || port == 0 {
		return err
	}
	if err := m.node.ConnectToPeer(ctx, host, port); err != nil {
		m.printf("Connection failed: %v\n", err)
		return nil
	}
	m.printf("Connection successful\n")
	return nil
}

// readTarget asks for a host and a port. An unparseable port is reported and
// yields port 0 with a nil error.
func (m *Menu) readTarget(hostPrompt, portPrompt string) (string, int, error) {
	host, err := m.prompt(hostPrompt)
	if err != nil {
		return "", 0, err
	}
	raw, err := m.prompt(portPrompt)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		m.printf("Invalid port: %q\n", raw)
		return host, 0, nil
	}
	return host, port, nil
}

func (m *Menu) prompt(label string) (string, error) {
	m.printf("%s", label)
	if !m.in.Scan() {
		if err := m.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(m.in.Text()), nil
}

// Watch prints events as they arrive until events is closed.
func (m *Menu) Watch(events <-chan domain.Event) {
	for ev := range events {
		if m.notifier != nil {
			m.notifier.Notify(ev)
		}
		switch ev.Kind {
		case domain.EventMessageReceived:
			if ev.Message == nil {
				continue
			}
			m.printf("\n[%s] %s - %s\n%s", ev.Message.ReceivedAt.Format(timeFormat), ev.Message.From, ev.Message.Body, choicePrompt)
		case domain.EventPeerAdded:
			m.printf("\nNew peer added: %s\n", ev.Peer)
		case domain.EventPeerEvicted:
			m.printf("\nRemoved inactive peer: %s\n", ev.Peer)
		}
	}
}

func (m *Menu) printf(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.out, format, args...)
}
