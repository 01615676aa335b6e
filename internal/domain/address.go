// Package domain holds the value types shared by every part of the chat node.
// Nothing in here touches the network.
package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Address identifies a peer by the host and port of its listener.
// It is comparable and safe to use as a map key.
type Address struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// NewAddress validates host and port and returns the address.
func NewAddress(host string, port int) (Address, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Address{}, fmt.Errorf("%w: empty host", ErrBadHeader)
	}
	if port < 1 || port > 65535 {
		return Address{}, fmt.Errorf("%w: %d", ErrBadPort, port)
	}
	return Address{Host: host, Port: port}, nil
}

// ParseAddress parses "host:port".
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrBadPort, portStr)
	}
	return NewAddress(host, port)
}

// String returns host:port.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Identity is how this node presents itself in every outbound header.
type Identity struct {
	Name   string  `json:"name"`
	Listen Address `json:"listen"`
}

// Validate checks that the display name is a single token and the listen
// address carries a usable port.
func (id Identity) Validate() error {
	if err := ValidateName(id.Name); err != nil {
		return err
	}
	if id.Listen.Host == "" {
		return fmt.Errorf("%w: empty listen host", ErrBadHeader)
	}
	if strings.ContainsAny(id.Listen.Host, ":<>") || strings.IndexFunc(id.Listen.Host, unicode.IsSpace) != -1 {
		return fmt.Errorf("%w: host %q cannot be carried in a header", ErrBadHeader, id.Listen.Host)
	}
	if id.Listen.Port < 1 || id.Listen.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrBadPort, id.Listen.Port)
	}
	return nil
}

// ValidateName reports whether name can travel as the DISPLAYNAME token.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.IndexFunc(name, unicode.IsSpace) != -1 {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "<>") {
		return fmt.Errorf("%w: %q contains a header delimiter", ErrInvalidName, name)
	}
	return nil
}

// Message is a single inbound chat message. It lives only as long as the
// connection that carried it.
type Message struct {
	From       Address   `json:"from"`
	Name       string    `json:"name"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// ─── Events ─────────────────────────────────────────────────────────────────

// EventKind classifies node notifications.
type EventKind string

const (
	EventMessageReceived EventKind = "message_received"
	EventPeerAdded       EventKind = "peer_added"
	EventPeerEvicted     EventKind = "peer_evicted"
)

// Event is pushed to UI and API subscribers.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Kind    EventKind `json:"kind"`
	Peer    Address   `json:"peer"`
	Message *Message  `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// NewEvent stamps a fresh event.
func NewEvent(kind EventKind, peer Address, msg *Message) Event {
	return Event{
		ID:      uuid.New(),
		Kind:    kind,
		Peer:    peer,
		Message: msg,
		At:      time.Now(),
	}
}
