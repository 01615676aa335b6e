package node

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"p2pchat/internal/domain"
	"p2pchat/internal/metrics"
	"p2pchat/internal/peer"
)

const (
	DefaultProbeInterval     = 10 * time.Second
	DefaultMaxParallelProbes = 16
)

// Prober reports whether a peer still accepts connections.
type Prober interface {
	Probe(ctx context.Context, addr domain.Address) error
}

// RunState is the flag the maintenance loop checks between cycles.
type RunState interface {
	Running() bool
}

// Maintainer periodically probes every known peer and evicts the ones that
// did not answer. It follows peer.ProbeNoMemory.
type Maintainer struct {
	peers    *peer.Set
	prober   Prober
	interval time.Duration
	parallel int
	events   Publisher
	logger   *log.Logger
}

// NewMaintainer builds a maintenance loop over peers.
func NewMaintainer(peers *peer.Set, prober Prober, interval time.Duration, parallel int, events Publisher, logger *log.Logger) *Maintainer {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if parallel <= 0 {
		parallel = DefaultMaxParallelProbes
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Maintainer{
		peers:    peers,
		prober:   prober,
		interval: interval,
		parallel: parallel,
		events:   events,
		logger:   logger,
	}
}

// Policy names the eviction rule in force.
func (m *Maintainer) Policy() peer.EvictionPolicy {
	return peer.ProbeNoMemory
}

// Run sleeps one interval, runs a cycle, and repeats while rs is running.
// Cancelling ctx ends the sleep early; it never aborts a cycle's probes.
// Node.Shutdown cancels ctx, so a stopping node does not wait out the
// remaining interval.
func (m *Maintainer) Run(ctx context.Context, rs RunState) {
	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for rs.Running() {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !rs.Running() {
			return
		}
		m.Cycle(ctx)
		timer.Reset(m.interval)
	}
}

// Cycle probes a snapshot of the peer set and evicts the peers that failed.
// Peers added while the probes run are not touched. It returns the evicted
// addresses.
func (m *Maintainer) Cycle(ctx context.Context) []domain.Address {
	snapshot := m.peers.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	probeCtx := context.WithoutCancel(ctx)
	failed := make([]bool, len(snapshot))

	var g errgroup.Group
	g.SetLimit(m.parallel)
	for i, addr := range snapshot {
		g.Go(func() error {
			if err := m.prober.Probe(probeCtx, addr); err != nil {
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	var dead []domain.Address
	for i, addr := range snapshot {
		if failed[i] {
			dead = append(dead, addr)
		}
	}
	if len(dead) == 0 {
		return nil
	}

	evicted := m.peers.RemoveAll(dead)
	metrics.PeersKnown.Set(float64(m.peers.Len()))
	for _, addr := range evicted {
		metrics.PeersEvicted.Inc()
		m.logger.Printf("[maintenance] removed inactive peer: %s", addr)
		if m.events != nil {
			m.events.Publish(domain.NewEvent(domain.EventPeerEvicted, addr, nil))
		}
	}
	return evicted
}
