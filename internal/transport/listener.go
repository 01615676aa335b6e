// Package transport owns the node's sockets: the accept loop for inbound
// connections, the short-lived outbound connections used for messages and
// the connect-only liveness probe.
package transport

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"p2pchat/internal/domain"
	"p2pchat/internal/metrics"
)

const (
	// DefaultMaxAcceptFailures stops Serve after this many accept errors in a row.
	DefaultMaxAcceptFailures = 3
	acceptBackoff            = 50 * time.Millisecond
)

// RunState is consulted at the top of every accept iteration.
type RunState interface {
	Running() bool
}

// Listener accepts inbound connections and runs a handler per connection.
type Listener struct {
	ln          net.Listener
	logger      *log.Logger
	maxFailures int
	handlers    sync.WaitGroup
}

// Listen binds addr. Failure is a *domain.BindError.
func Listen(addr string, logger *log.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &domain.BindError{Addr: addr, Err: err}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Listener{
		ln:          ln,
		logger:      logger,
		maxFailures: DefaultMaxAcceptFailures,
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close closes the listening socket. A blocked Accept returns immediately.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Serve accepts until the run state is cleared or the socket is closed.
// Each connection is handled on its own goroutine. An accept error seen after
// shutdown returns nil without being logged.
func (l *Listener) Serve(rs RunState, handle func(net.Conn)) error {
	failures := 0
	for rs.Running() {
		conn, err := l.ln.Accept()
		if err != nil {
			if !rs.Running() {
				return nil
			}

			failures++
			metrics.AcceptErrors.Inc()
			l.logger.Printf("[listener] accept error (%d/%d): %v", failures, l.maxFailures, err)
			if failures >= l.maxFailures {
				return fmt.Errorf("%w: %v", domain.ErrAcceptFailures, err)
			}
			time.Sleep(acceptBackoff * time.Duration(failures))
			continue
		}

		failures = 0
		metrics.ConnectionsAccepted.Inc()

		l.handlers.Add(1)
		go func() {
			defer l.handlers.Done()
			handle(conn)
		}()
	}
	return nil
}

// WaitHandlers blocks until every dispatched handler has returned.
func (l *Listener) WaitHandlers() {
	l.handlers.Wait()
}
