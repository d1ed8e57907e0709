package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"serial_exchanges", snap.SerialExchanges,
					"serial_timeouts", snap.SerialTimeouts,
					"protocol_errors", snap.ProtocolErrors,
					"attr_reads", snap.AttrReads,
					"attr_writes", snap.AttrWrites,
					"poll_cycles", snap.PollCycles,
					"poll_errors", snap.PollErrors,
					"tcp_commands", snap.TCPCommands,
					"updates_pushed", snap.UpdatesPushed,
					"hub_drops", snap.HubDrops,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
