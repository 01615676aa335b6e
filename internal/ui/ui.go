// Package ui holds the interactive surfaces of a node: the numbered menu and
// the full-screen terminal UI.
package ui

import (
	"context"

	"p2pchat/internal/domain"
)

// Node is the part of node.Node a user drives.
type Node interface {
	Identity() domain.Identity
	ListPeers() []domain.Address
	SendMessage(ctx context.Context, host string, port int, body string) error
	ConnectToPeer(ctx context.Context, host string, port int) error
	Shutdown()
}

// Notifier is told about every event the UI displays.
type Notifier interface {
	Notify(ev domain.Event)
}

const timeFormat = "15:04:05"
