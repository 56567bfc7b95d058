// file: tests/gossip_sync_test.go
package tests

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantmesh/tickmesh/pkg/p2p"
)

// TestGossipSyncCollectives: two venues over real libp2p hosts agree on
// aggregates and barriers for several consecutive ticks.
func TestGossipSyncCollectives(t *testing.T) {
	if testing.Short() {
		t.Skip("libp2p test skipped in -short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const size = 2
	syncs := make([]*p2p.GossipSync, size)
	for rank := 0; rank < size; rank++ {
		s, err := p2p.NewGossipSync(ctx, p2p.Config{
			ListenAddr: "", // random port
			Rank:       rank,
			Size:       size,
		})
		if err != nil {
			t.Fatalf("rank %d: gossip sync init: %v", rank, err)
		}
		defer s.Close()
		syncs[rank] = s
	}

	// Manual peer wiring; in production this happens via bootstrap
	// multiaddrs.
	h0, h1 := syncs[0].Host(), syncs[1].Host()
	h0.Peerstore().AddAddrs(h1.ID(), h1.Addrs(), time.Hour)
	h1.Peerstore().AddAddrs(h0.ID(), h0.Addrs(), time.Hour)
	if err := h0.Connect(ctx, h0.Peerstore().PeerInfo(h1.ID())); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Give the gossipsub mesh a moment to form; retransmission covers
	// the rest.
	time.Sleep(200 * time.Millisecond)

	inputs := [][]float64{
		{100, 110, 120},
		{104, 90, 180},
	}
	want := []float64{102, 100, 150}

	g, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		g.Go(func() error {
			for tick := 0; tick < 5; tick++ {
				got, err := syncs[rank].Aggregate(ctx, tick, inputs[rank])
				if err != nil {
					return err
				}
				for i := range want {
					if got[i] != want[i] {
						t.Errorf("rank %d tick %d pos %d: got %v, want %v", rank, tick, i, got[i], want[i])
					}
				}
				if err := syncs[rank].Barrier(ctx, tick); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("collectives: %v", err)
	}
}
