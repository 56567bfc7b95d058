package sim

// Progress and summary reporting. Rank 0 speaks for the run, matching
// the one-line-per-interval style operators expect from a lock-step
// simulation; per-venue detail lives in each node's own log file.

func (n *Node) report(tick int, res Result) {
	if n.log == nil || n.cfg.Rank != 0 {
		return
	}
	if (tick+1)%n.cfg.ReportEvery != 0 {
		return
	}
	n.log.Infow("tick_progress",
		"tick", tick+1,
		"orders", res.Orders,
		"trades", res.Trades,
		"rejected", res.Rejected,
		"dropped", n.ex.Dropped(),
	)
}

func (n *Node) summarize(res Result) {
	if n.log == nil {
		return
	}
	fields := []interface{}{
		"rank", n.cfg.Rank,
		"ticks", n.cfg.Ticks,
		"orders", res.Orders,
		"trades", res.Trades,
		"rejected", res.Rejected,
		"elapsed_ms", res.ElapsedMS,
	}
	if res.ElapsedMS > 0 {
		fields = append(fields,
			"orders_per_sec", float64(res.Orders)*1000/float64(res.ElapsedMS),
			"trades_per_sec", float64(res.Trades)*1000/float64(res.ElapsedMS),
		)
	}
	if n.cfg.Rank == 0 {
		fields = append(fields,
			"global_orders", res.GlobalOrders,
			"global_trades", res.GlobalTrades,
		)
	}
	n.log.Infow("simulation_complete", fields...)
}
