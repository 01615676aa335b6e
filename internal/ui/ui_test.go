package ui

import (
	"context"
	"errors"
	"sync"

	"p2pchat/internal/domain"
)

type sent struct {
	target domain.Address
	body   string
}

type fakeNode struct {
	mu       sync.Mutex
	peers    []domain.Address
	sent     []sent
	connects []domain.Address
	sendErr  error
	stopped  bool
}

func (f *fakeNode) Identity() domain.Identity {
	return domain.Identity{Name: "alpha", Listen: domain.Address{Host: "127.0.0.1", Port: 9000}}
}

func (f *fakeNode) ListPeers() []domain.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Address(nil), f.peers...)
}

func (f *fakeNode) SendMessage(_ context.Context, host string, port int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sent{domain.Address{Host: host, Port: port}, body})
	return nil
}

func (f *fakeNode) ConnectToPeer(_ context.Context, host string, port int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	a := domain.Address{Host: host, Port: port}
	f.connects = append(f.connects, a)
	f.peers = append(f.peers, a)
	return nil
}

func (f *fakeNode) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

var errRefused = errors.New("connection refused")

type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) Notify(domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}
