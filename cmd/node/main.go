// One venue process. Peers are discovered via libp2p bootstrap
// multiaddrs; every process must be launched with identical SIM_*
// parameters and a distinct NODE_RANK.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/quantmesh/tickmesh/params"
	"github.com/quantmesh/tickmesh/pkg/api"
	"github.com/quantmesh/tickmesh/pkg/export"
	"github.com/quantmesh/tickmesh/pkg/p2p"
	"github.com/quantmesh/tickmesh/pkg/sim"
	"github.com/quantmesh/tickmesh/pkg/storage"
	"github.com/quantmesh/tickmesh/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = filepath.Join(cfg.Node.DataDir, fmt.Sprintf("node_%d.log", cfg.Node.Rank))
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gossip, err := p2p.NewGossipSync(ctx, p2p.Config{
		ListenAddr: cfg.Node.Listen,
		Bootstrap:  cfg.Node.Bootstrap,
		Rank:       cfg.Node.Rank,
		Size:       cfg.Sim.NumNodes,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("gossip_sync_init", "err", err)
	}
	defer gossip.Close()

	csvSink, err := export.NewCSVSink(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("csv_sink_init", "err", err)
	}
	ledger, err := storage.NewLedgerStore(filepath.Join(cfg.Node.DataDir, fmt.Sprintf("ledger_%d", cfg.Node.Rank)))
	if err != nil {
		sugar.Fatalw("ledger_init", "err", err)
	}
	defer ledger.Close()

	nodeCfg := sim.Config{
		Rank:         cfg.Node.Rank,
		Agents:       cfg.Sim.AgentsPerNode,
		Instruments:  cfg.Sim.NumInstruments,
		Ticks:        cfg.Sim.Ticks,
		InitialPrice: cfg.Sim.InitialPrice,
		ReportEvery:  cfg.Sim.ReportEvery,
		MinTickTime:  cfg.Node.MinTickTime,
	}
	node := sim.NewNode(nodeCfg, gossip, sugar, csvSink, ledger)

	if cfg.Node.EnableAPI {
		server := api.NewServer(node.Exchange())
		node.SetOnTick(server.PublishTick)
		go func() {
			if err := server.Start(cfg.Node.APIAddr); err != nil {
				sugar.Errorw("api_server", "err", err)
			}
		}()
	}

	sugar.Infow("simulation_start",
		"rank", cfg.Node.Rank,
		"nodes", cfg.Sim.NumNodes,
		"agents", cfg.Sim.AgentsPerNode,
		"instruments", cfg.Sim.NumInstruments,
		"ticks", cfg.Sim.Ticks,
	)

	if _, err := node.Run(ctx); err != nil {
		sugar.Fatalw("simulation_failed", "err", err)
	}
}
