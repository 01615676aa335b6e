// Package peer keeps the node's membership list and its running flag.
// Both are owned objects handed to each component at construction, so several
// nodes can live in one process.
package peer

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"p2pchat/internal/domain"
)

// EvictionPolicy names how peers leave the set.
type EvictionPolicy string

// ProbeNoMemory evicts a peer after one failed connect probe and keeps no
// record of the eviction. The peer may be re-added at any time.
const ProbeNoMemory EvictionPolicy = "probe-based, no memory"

// Set is a concurrency-safe set of peer addresses. A single mutex serializes
// every read and write.
type Set struct {
	mu    sync.Mutex
	peers map[domain.Address]struct{}
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{peers: make(map[domain.Address]struct{})}
}

// Add inserts addr and reports whether it was not already present.
func (s *Set) Add(addr domain.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.peers[addr]; exists {
		return false
	}
	s.peers[addr] = struct{}{}
	return true
}

// RemoveAll deletes every address in addrs under one lock hold and returns the
// ones that were actually present.
func (s *Set) RemoveAll(addrs []domain.Address) []domain.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make([]domain.Address, 0, len(addrs))
	for _, addr := range addrs {
		if _, exists := s.peers[addr]; exists {
			delete(s.peers, addr)
			removed = append(removed, addr)
		}
	}
	return removed
}

// Len returns the number of peers.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Snapshot returns a copy of the set ordered by host, then port.
func (s *Set) Snapshot() []domain.Address {
	s.mu.Lock()
	out := make([]domain.Address, 0, len(s.peers))
	for addr := range s.peers {
		out = append(out, addr)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b domain.Address) int {
		if c := cmp.Compare(a.Host, b.Host); c != 0 {
			return c
		}
		return cmp.Compare(a.Port, b.Port)
	})
	return out
}

// RunState is the node-wide running flag. It starts true and flips to false
// exactly once.
type RunState struct {
	running atomic.Bool
}

// NewRunState returns a flag in the running state.
func NewRunState() *RunState {
	rs := &RunState{}
	rs.running.Store(true)
	return rs
}

// Running reports whether the node has not been shut down.
func (rs *RunState) Running() bool {
	return rs.running.Load()
}

// Stop clears the flag. Only the call that performs the transition gets true.
func (rs *RunState) Stop() bool {
	return rs.running.CompareAndSwap(true, false)
}
