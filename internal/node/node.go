// Package node ties the chat node together: the accept loop feeding the
// connection handler, the outbound sender, and the maintenance loop, all
// sharing one peer set and one running flag.
package node

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"p2pchat/internal/domain"
	"p2pchat/internal/netutil"
	"p2pchat/internal/peer"
	"p2pchat/internal/transport"
	"p2pchat/internal/wire"
)

// Options configures a node. Zero durations fall back to package defaults.
type Options struct {
	Name string
	// Host is both the bind host and the host advertised in headers.
	// Empty means netutil.LocalIP().
	Host string
	// Port 0 binds an ephemeral port, which is then advertised.
	Port int

	Framer            wire.Framer
	SendTimeout       time.Duration
	ReadTimeout       time.Duration
	ProbeInterval     time.Duration
	ProbeTimeout      time.Duration
	MaxParallelProbes int

	Logger *log.Logger
}

// Node is one chat participant: server and client at once.
type Node struct {
	id     domain.Identity
	peers  *peer.Set
	run    *peer.RunState
	logger *log.Logger

	listener   *transport.Listener
	sender     *transport.Sender
	handler    *Handler
	maintainer *Maintainer
	events     *hub

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New binds the listener and assembles the node. A bind failure is returned
// as *domain.BindError and nothing is left running.
func New(opts Options) (*Node, error) {
	if err := domain.ValidateName(opts.Name); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	host := opts.Host
	if host == "" {
		host = netutil.LocalIP()
	}
	framer := opts.Framer
	if framer == nil {
		framer = wire.Legacy{}
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	ln, err := transport.Listen(net.JoinHostPort(host, strconv.Itoa(opts.Port)), logger)
	if err != nil {
		return nil, err
	}

	port := opts.Port
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}
	id := domain.Identity{Name: opts.Name, Listen: domain.Address{Host: host, Port: port}}
	if err := id.Validate(); err != nil {
		ln.Close()
		return nil, fmt.Errorf("node identity: %w", err)
	}

	peers := peer.NewSet()
	events := newHub(logger)

	n := &Node{
		id:       id,
		peers:    peers,
		run:      peer.NewRunState(),
		logger:   logger,
		listener: ln,
		sender:   transport.NewSender(framer, opts.SendTimeout),
		events:   events,
	}
	n.handler = NewHandler(peers, framer, readTimeout, events, logger)
	n.maintainer = NewMaintainer(peers, transport.NewProber(opts.ProbeTimeout),
		opts.ProbeInterval, opts.MaxParallelProbes, events, logger)

	return n, nil
}

// Start launches the accept loop and the maintenance loop. Only the first
// call has an effect.
func (n *Node) Start(ctx context.Context) {
	n.startOnce.Do(func() {
		ctx, n.cancel = context.WithCancel(ctx)
		n.logger.Printf("[node] %s listening on %s (framing %s)", n.id.Name, n.id.Listen, n.handler.framer.Name())

		n.wg.Add(2)
		go func() {
			defer n.wg.Done()
			if err := n.listener.Serve(n.run, n.handler.Handle); err != nil {
				n.logger.Printf("[node] listener stopped: %v", err)
			}
		}()
		go func() {
			defer n.wg.Done()
			n.maintainer.Run(ctx, n.run)
		}()
	})
}

// Shutdown clears the running flag and closes the listening socket. Accepted
// connections and in-flight probes finish on their own. Safe to call twice.
func (n *Node) Shutdown() {
	if !n.run.Stop() {
		return
	}
	if err := n.listener.Close(); err != nil {
		n.logger.Printf("[node] close listener: %v", err)
	}
	if n.cancel != nil {
		n.cancel()
	}
	n.logger.Printf("[node] shut down")
}

// Wait blocks until both loops and every in-flight handler have returned,
// then closes all event subscriptions.
func (n *Node) Wait() {
	n.wg.Wait()
	n.listener.WaitHandlers()
	n.events.close()
}

// Running reports whether Shutdown has not been called.
func (n *Node) Running() bool {
	return n.run.Running()
}

// Identity returns the name and address this node advertises.
func (n *Node) Identity() domain.Identity {
	return n.id
}

// Policy returns the eviction policy of the maintenance loop.
func (n *Node) Policy() peer.EvictionPolicy {
	return n.maintainer.Policy()
}

// Subscribe returns a channel of node events and a function that ends the
// subscription. A subscriber that falls more than buf events behind loses
// events rather than stalling the node.
func (n *Node) Subscribe(buf int) (<-chan domain.Event, func()) {
	return n.events.Subscribe(buf)
}

// SendMessage sends body to host:port. The peer set is not changed.
func (n *Node) SendMessage(ctx context.Context, host string, port int, body string) error {
	if !n.run.Running() {
		return domain.ErrNodeStopped
	}
	target, err := domain.NewAddress(host, port)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, target, n.id, body); err != nil {
		n.logger.Printf("[node] failed to send message to %s: %v", target, err)
		return err
	}
	n.logger.Printf("[node] message sent to %s", target)
	return nil
}

// ConnectToPeer sends a handshake to host:port and, once the write succeeds,
// adds the peer without waiting for any reply.
func (n *Node) ConnectToPeer(ctx context.Context, host string, port int) error {
	if !n.run.Running() {
		return domain.ErrNodeStopped
	}
	target, err := domain.NewAddress(host, port)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, target, n.id, wire.HandshakeToken); err != nil {
		n.logger.Printf("[node] connection to %s failed: %v", target, err)
		return err
	}
	n.handler.AddPeer(target)
	n.logger.Printf("[node] connected to %s", target)
	return nil
}

// ListPeers returns a sorted snapshot of the peer set.
func (n *Node) ListPeers() []domain.Address {
	return n.peers.Snapshot()
}
