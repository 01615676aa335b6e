package transport

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"p2pchat/internal/domain"
	"p2pchat/internal/metrics"
	"p2pchat/internal/wire"
)

const (
	DefaultSendTimeout  = 3 * time.Second
	DefaultProbeTimeout = 2 * time.Second
)

// Sender opens one connection per message, writes a single frame and closes.
// Nothing is read back.
type Sender struct {
	framer  wire.Framer
	timeout time.Duration
}

// NewSender returns a sender using framer with a dial and write timeout.
func NewSender(framer wire.Framer, timeout time.Duration) *Sender {
	if framer == nil {
		framer = wire.Legacy{}
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Sender{framer: framer, timeout: timeout}
}

// Send delivers body to target with id in the header. A nil error means the
// write completed, not that the peer read it. Failures are *domain.SendError.
func (s *Sender) Send(ctx context.Context, target domain.Address, id domain.Identity, body string) error {
	start := time.Now()
	err := s.send(ctx, target, wire.Encode(id, body))
	metrics.SendLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		var se *domain.SendError
		if errors.As(err, &se) {
			metrics.MessagesSent.WithLabelValues(se.Kind.String()).Inc()
		}
		return err
	}
	metrics.MessagesSent.WithLabelValues("ok").Inc()
	return nil
}

func (s *Sender) send(ctx context.Context, target domain.Address, payload []byte) error {
	d := net.Dialer{Timeout: s.timeout}
	conn, err := d.DialContext(ctx, "tcp", target.String())
	if err != nil {
		return classify(target, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return classify(target, err)
	}
	if err := s.framer.WriteFrame(conn, payload); err != nil {
		return classify(target, err)
	}
	return nil
}

// classify maps a dial or write failure onto a SendError kind.
func classify(target domain.Address, err error) *domain.SendError {
	kind := domain.SendOther

	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.SendTimeout
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		kind = domain.SendUnreachable
	case errors.As(err, &opErr) && opErr.Op == "dial":
		kind = domain.SendUnreachable
	}

	return &domain.SendError{Kind: kind, Target: target, Err: err}
}

// Prober checks liveness by connecting and immediately closing.
type Prober struct {
	timeout time.Duration
}

// NewProber returns a prober with the given connect timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{timeout: timeout}
}

// Probe returns nil if addr accepted a connection within the timeout.
func (p *Prober) Probe(ctx context.Context, addr domain.Address) error {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		metrics.Probes.WithLabelValues("unreachable").Inc()
		return err
	}
	metrics.Probes.WithLabelValues("reachable").Inc()
	return conn.Close()
}
