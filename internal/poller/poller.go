// Package poller periodically refreshes all readable attributes and pushes
// the results to subscribed clients.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/attr"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/hub"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/lauda"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/logging"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/metrics"
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

const (
	backoffMin = 20 * time.Millisecond
	backoffMax = 500 * time.Millisecond
)

// Poller walks the registry once per interval. A cycle in which every read
// fails triggers exponential backoff before the next one; any success resets
// it. There is no retry within a cycle.
type Poller struct {
	Registry *attr.Registry
	Hub      *hub.Hub
	Interval time.Duration
	StateFn  func() lauda.State
	Logger   *slog.Logger
}

// New builds a poller. Interval <= 0 disables it (Run returns immediately).
func New(reg *attr.Registry, h *hub.Hub, interval time.Duration, stateFn func() lauda.State, l *slog.Logger) *Poller {
	if l == nil {
		l = logging.L()
	}
	return &Poller{Registry: reg, Hub: h, Interval: interval, StateFn: stateFn, Logger: l}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if p.Interval <= 0 {
		p.Logger.Info("poller_disabled")
		return
	}
	defer p.Logger.Info("poller_end")
	t := time.NewTicker(p.Interval)
	defer t.Stop()
	backoff := backoffMin
	for {
		anyOK := p.cycle(ctx)
		metrics.IncPollCycle()
		if p.StateFn != nil {
			metrics.SetDeviceState(int(p.StateFn()))
		}
		if anyOK {
			backoff = backoffMin
		} else {
			p.Logger.Warn("poll_cycle_failed", "backoff", backoff)
			sleepFn(backoff)
			backoff *= 2
			if backoff > backoffMax {
				backoff = backoffMax
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// cycle reads every attribute in declaration order and broadcasts the
// successful values. It reports whether at least one read succeeded.
func (p *Poller) cycle(ctx context.Context) bool {
	anyOK := false
	for _, name := range p.Registry.Names() {
		if ctx.Err() != nil {
			return anyOK
		}
		v, err := p.Registry.Read(ctx, name)
		if err != nil {
			metrics.IncPollError()
			if errors.Is(err, lauda.ErrProtocol) {
				metrics.IncProtocolError()
			}
			p.Logger.Warn("poll_read_error", "attr", name, "error", err)
			continue
		}
		anyOK = true
		p.Hub.Broadcast(attr.Update{Name: name, Value: v})
	}
	return anyOK
}
