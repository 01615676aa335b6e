package node

import (
	"errors"
	"io"
	"log"
	"net"
	"time"

	"p2pchat/internal/domain"
	"p2pchat/internal/metrics"
	"p2pchat/internal/peer"
	"p2pchat/internal/wire"
)

// DefaultReadTimeout bounds how long an accepted connection may stay silent.
const DefaultReadTimeout = 10 * time.Second

// Handler processes one inbound connection: read one frame, parse the header,
// learn the sender, publish the message, close. Nothing is written back.
type Handler struct {
	peers       *peer.Set
	framer      wire.Framer
	readTimeout time.Duration
	events      Publisher
	logger      *log.Logger
	now         func() time.Time
}

// NewHandler wires a handler to the shared peer set.
func NewHandler(peers *peer.Set, framer wire.Framer, readTimeout time.Duration, events Publisher, logger *log.Logger) *Handler {
	if framer == nil {
		framer = wire.Legacy{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		peers:       peers,
		framer:      framer,
		readTimeout: readTimeout,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// Handle serves conn and always closes it.
func (h *Handler) Handle(conn net.Conn) {
	defer conn.Close()

	if h.readTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}

	data, err := h.framer.ReadFrame(conn)
	if err != nil {
		// Liveness probes connect and hang up without sending anything.
		if !errors.Is(err, io.EOF) {
			h.logger.Printf("[handler] read from %s: %v", conn.RemoteAddr(), err)
		}
		return
	}

	msg, err := wire.Decode(data)
	if err != nil {
		metrics.ParseErrors.WithLabelValues(parseReason(err)).Inc()
		h.logger.Printf("[handler] discarding message from %s: %v", conn.RemoteAddr(), err)
		return
	}
	msg.ReceivedAt = h.now()

	h.AddPeer(msg.From)

	metrics.MessagesReceived.Inc()
	h.logger.Printf("[handler] [%s] %s - %s", msg.ReceivedAt.Format("15:04:05"), msg.From, msg.Body)
	h.publish(domain.EventMessageReceived, msg.From, &msg)
}

// AddPeer inserts addr and announces it on first insertion only.
func (h *Handler) AddPeer(addr domain.Address) bool {
	if !h.peers.Add(addr) {
		return false
	}
	metrics.PeersKnown.Set(float64(h.peers.Len()))
	h.logger.Printf("[handler] new peer added: %s", addr)
	h.publish(domain.EventPeerAdded, addr, nil)
	return true
}

func (h *Handler) publish(kind domain.EventKind, addr domain.Address, msg *domain.Message) {
	if h.events != nil {
		h.events.Publish(domain.NewEvent(kind, addr, msg))
	}
}

func parseReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoHeader):
		return "no_header"
	case errors.Is(err, domain.ErrBadPort):
		return "bad_port"
	case errors.Is(err, domain.ErrBadHeader):
		return "bad_header"
	case errors.Is(err, domain.ErrNoName):
		return "no_name"
	default:
		return "other"
	}
}
