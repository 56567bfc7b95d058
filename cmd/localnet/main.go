// Localnet runs every venue in one process over the in-process
// collective group. Useful for development and demos; the per-process
// deployment lives in cmd/node.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/quantmesh/tickmesh/params"
	"github.com/quantmesh/tickmesh/pkg/collective"
	"github.com/quantmesh/tickmesh/pkg/export"
	"github.com/quantmesh/tickmesh/pkg/sim"
	"github.com/quantmesh/tickmesh/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, err := export.NewCSVSink(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("csv_sink_init", "err", err)
	}

	group := collective.NewGroup(cfg.Sim.NumNodes)
	sugar.Infow("localnet_start",
		"nodes", cfg.Sim.NumNodes,
		"agents", cfg.Sim.AgentsPerNode,
		"instruments", cfg.Sim.NumInstruments,
		"ticks", cfg.Sim.Ticks,
	)

	g, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < cfg.Sim.NumNodes; rank++ {
		node := sim.NewNode(sim.Config{
			Rank:         rank,
			Agents:       cfg.Sim.AgentsPerNode,
			Instruments:  cfg.Sim.NumInstruments,
			Ticks:        cfg.Sim.Ticks,
			InitialPrice: cfg.Sim.InitialPrice,
			ReportEvery:  cfg.Sim.ReportEvery,
			MinTickTime:  cfg.Node.MinTickTime,
		}, group.Member(rank), sugar, sink)
		g.Go(func() error {
			_, err := node.Run(ctx)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		sugar.Fatalw("localnet_failed", "err", err)
	}
	_ = os.Stdout.Sync()
}
