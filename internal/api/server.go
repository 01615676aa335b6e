// Package api exposes the node over HTTP: peer list, connect, send, a live
// event stream and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"p2pchat/internal/domain"
	"p2pchat/internal/peer"
)

// Node is the part of node.Node the API drives.
type Node interface {
	Identity() domain.Identity
	Policy() peer.EvictionPolicy
	Running() bool
	ListPeers() []domain.Address
	ConnectToPeer(ctx context.Context, host string, port int) error
	SendMessage(ctx context.Context, host string, port int, body string) error
	Subscribe(buf int) (<-chan domain.Event, func())
}

// Server is the HTTP control surface of one node.
type Server struct {
	node           Node
	logger         *log.Logger
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(node Node, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{node: node, logger: logger}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// The event stream is long-lived and stays outside the timeout group.
	r.Get("/api/events", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/health", s.handleHealth)

		r.Route("/api", func(r chi.Router) {
			r.Get("/peers", s.handleListPeers)
			r.Post("/peers", s.handleConnect)
			r.Post("/messages", s.handleSend)
		})

		if s.metricsEnabled {
			r.Handle("/metrics", promhttp.Handler())
		}
	})

	return r
}

// Serve runs the API on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[api] listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type healthResponse struct {
	Status  string          `json:"status"`
	Running bool            `json:"running"`
	Node    domain.Identity `json:"node"`
	Policy  string          `json:"eviction_policy"`
}

// handleHealth answers 503 once the node has begun shutting down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Running: s.node.Running(),
		Node:    s.node.Identity(),
		Policy:  string(s.node.Policy()),
	}
	code := http.StatusOK
	if !resp.Running {
		resp.Status = "stopping"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

type peerEntry struct {
	domain.Address
	Addr string `json:"addr"`
}

func (s *Server) handleListPeers(w http.ResponseWriter, r *http.Request) {
	peers := s.node.ListPeers()
	out := make([]peerEntry, 0, len(peers))
	for _, p := range peers {
		out = append(out, peerEntry{Address: p, Addr: p.String()})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"peers": out,
		"count": len(out),
	})
}

type connectRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.node.ConnectToPeer(r.Context(), req.Host, req.Port); err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "connected",
		"peer":   domain.Address{Host: req.Host, Port: req.Port}.String(),
	})
}

type sendRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Body string `json:"body"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.node.SendMessage(r.Context(), req.Host, req.Port, req.Body); err != nil {
		s.writeNodeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "sent",
		"peer":   domain.Address{Host: req.Host, Port: req.Port}.String(),
	})
}

// handleEvents streams node events as server-sent events until the client
// goes away or the node shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, cancel := s.node.Subscribe(64)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Printf("[api] encode event: %v", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Kind, data)
			flusher.Flush()
		}
	}
}

// writeNodeError maps node errors onto HTTP statuses.
func (s *Server) writeNodeError(w http.ResponseWriter, err error) {
	var sendErr *domain.SendError
	switch {
	case errors.Is(err, domain.ErrBadPort), errors.Is(err, domain.ErrBadHeader):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNodeStopped):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &sendErr):
		status := http.StatusBadGateway
		if sendErr.Kind == domain.SendTimeout {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]interface{}{
			"error": map[string]interface{}{
				"message": err.Error(),
				"type":    sendErr.Kind.String(),
			},
		})
	default:
		s.logger.Printf("[api] unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}
