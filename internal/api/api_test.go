package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"p2pchat/internal/domain"
	"p2pchat/internal/peer"
)

type fakeNode struct {
	mu       sync.Mutex
	peers    []domain.Address
	sent     []string
	connects []domain.Address
	err      error
	events   chan domain.Event
	stopped  bool
}

func (f *fakeNode) Identity() domain.Identity {
	return domain.Identity{Name: "alpha", Listen: domain.Address{Host: "127.0.0.1", Port: 9000}}
}

func (f *fakeNode) Policy() peer.EvictionPolicy { return peer.ProbeNoMemory }

func (f *fakeNode) Running() bool { return !f.stopped }

func (f *fakeNode) ListPeers() []domain.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Address(nil), f.peers...)
}

func (f *fakeNode) ConnectToPeer(_ context.Context, host string, port int) error {
	if f.err != nil {
		return f.err
	}
	a, err := domain.NewAddress(host, port)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, a)
	f.peers = append(f.peers, a)
	return nil
}

func (f *fakeNode) SendMessage(_ context.Context, host string, port int, body string) error {
	if f.err != nil {
		return f.err
	}
	if _, err := domain.NewAddress(host, port); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeNode) Subscribe(int) (<-chan domain.Event, func()) {
	return f.events, func() {}
}

func newTestServer(t *testing.T, node *fakeNode) *httptest.Server {
	t.Helper()
	srv := NewServer(node, log.New(io.Discard, "", 0))
	srv.EnableMetrics()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeNode{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || !body.Running || body.Node.Name != "alpha" || body.Policy != string(peer.ProbeNoMemory) {
		t.Errorf("body = %+v", body)
	}
}

func TestHealth_Stopping(t *testing.T) {
	ts := newTestServer(t, &fakeNode{stopped: true})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "stopping" || body.Running {
		t.Errorf("body = %+v", body)
	}
}

func TestListPeers(t *testing.T) {
	node := &fakeNode{peers: []domain.Address{{Host: "10.0.0.1", Port: 9001}}}
	ts := newTestServer(t, node)

	resp, err := http.Get(ts.URL + "/api/peers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Peers []struct {
			Host string `json:"host"`
			Port int    `json:"port"`
			Addr string `json:"addr"`
		} `json:"peers"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 || body.Peers[0].Addr != "10.0.0.1:9001" || body.Peers[0].Port != 9001 {
		t.Errorf("body = %+v", body)
	}
}

func TestConnectAndSend(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
	}{
		{"connect", "/api/peers", `{"host":"10.0.0.2","port":9002}`, nil, http.StatusOK},
		{"send", "/api/messages", `{"host":"10.0.0.2","port":9002,"body":"hi"}`, nil, http.StatusOK},
		{"bad json", "/api/messages", `{`, nil, http.StatusBadRequest},
		{"bad port", "/api/peers", `{"host":"10.0.0.2","port":0}`, nil, http.StatusBadRequest},
		{"unreachable", "/api/messages", `{"host":"10.0.0.2","port":9002,"body":"hi"}`,
			&domain.SendError{Kind: domain.SendUnreachable, Err: errors.New("refused")}, http.StatusBadGateway},
		{"timeout", "/api/peers", `{"host":"10.0.0.2","port":9002}`,
			&domain.SendError{Kind: domain.SendTimeout, Err: errors.New("i/o timeout")}, http.StatusGatewayTimeout},
		{"stopped", "/api/messages", `{"host":"10.0.0.2","port":9002,"body":"hi"}`,
			domain.ErrNodeStopped, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeNode{err: tt.err})
			resp, err := http.Post(ts.URL+tt.path, "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestSendRecordsBody(t *testing.T) {
	node := &fakeNode{}
	ts := newTestServer(t, node)

	resp, err := http.Post(ts.URL+"/api/messages", "application/json",
		strings.NewReader(`{"host":"10.0.0.2","port":9002,"body":"hello there"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if len(node.sent) != 1 || node.sent[0] != "hello there" {
		t.Errorf("sent = %v", node.sent)
	}
}

func TestEventsStream(t *testing.T) {
	node := &fakeNode{events: make(chan domain.Event, 1)}
	ts := newTestServer(t, node)

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	from := domain.Address{Host: "10.0.0.3", Port: 9003}
	ev := domain.NewEvent(domain.EventMessageReceived, from, &domain.Message{From: from, Name: "c", Body: "yo"})
	node.events <- ev

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var gotEvent, gotData bool
	timeout := time.After(3 * time.Second)
	for !(gotEvent && gotData) {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream ended early")
			}
			if line == "event: message_received" {
				gotEvent = true
			}
			if strings.HasPrefix(line, "data: ") {
				var got domain.Event
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &got); err != nil {
					t.Fatalf("decode data: %v", err)
				}
				if got.ID != ev.ID || got.Message == nil || got.Message.Body != "yo" {
					t.Errorf("event = %+v", got)
				}
				gotData = true
			}
		case <-timeout:
			t.Fatal("no event on stream")
		}
	}

	close(node.events)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeNode{})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestMetricsDisabled(t *testing.T) {
	srv := NewServer(&fakeNode{}, log.New(io.Discard, "", 0))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	srv := NewServer(&fakeNode{}, log.New(io.Discard, "", 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
}
