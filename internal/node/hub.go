package node

import (
	"log"
	"sync"

	"p2pchat/internal/domain"
	"p2pchat/internal/metrics"
)

// Publisher receives node notifications.
type Publisher interface {
	Publish(ev domain.Event)
}

// hub fans events out to subscribers without ever blocking the publisher.
type hub struct {
	mu     sync.Mutex
	subs   map[int]chan domain.Event
	next   int
	closed bool
	logger *log.Logger
}

func newHub(logger *log.Logger) *hub {
	return &hub{subs: make(map[int]chan domain.Event), logger: logger}
}

func (h *hub) Subscribe(buf int) (<-chan domain.Event, func()) {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan domain.Event, buf)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

func (h *hub) Publish(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			metrics.EventsDropped.Inc()
			h.logger.Printf("[node] subscriber full, dropping %s event for %s", ev.Kind, ev.Peer)
		}
	}
}

// close ends every subscription. Later publishes are ignored.
func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
