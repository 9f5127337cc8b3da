// Package connectivity watches whether the remote note service is reachable.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/notesync/pkg/core"
)

// DefaultInterval is the time between probes.
const DefaultInterval = 15 * time.Second

// Pinger is anything that can cheaply check the remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Config configures a Probe.
type Config struct {
	Pinger   Pinger
	Interval time.Duration
	// Initial is the state assumed before the first probe.
	Initial bool
	// OnChange is called from the probe goroutine on every transition.
	OnChange func(online bool)
	Logger   *slog.Logger
}

// Probe is a worker that pings the service periodically and reports
// online/offline transitions.
type Probe struct {
	*worker.BaseWorker
	cfg    Config
	online atomic.Bool
	probes atomic.Int64
	cancel context.CancelFunc
}

// New creates a probe worker.
func New(cfg Config) *Probe {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Probe{
		BaseWorker: worker.NewBaseWorker("connectivity-probe"),
		cfg:        cfg,
	}
	p.online.Store(cfg.Initial)
	return p
}

// Online returns the last observed state.
func (p *Probe) Online() bool {
	return p.online.Load()
}

func (p *Probe) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status := p.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("probe already started (status: %s)", status)
	}
	if p.cfg.Pinger == nil {
		return errors.New("probe has no pinger")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.SetStatus(worker.StatusRunning)
	return p.StartFunc(runCtx, p.run)
}

func (p *Probe) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.StopRequested = true
		p.cancel()
	}
	return p.BaseWorker.Stop(ctx)
}

func (p *Probe) State() worker.State {
	return p.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"online":            strconv.FormatBool(p.online.Load()),
			"probes":            strconv.FormatInt(p.probes.Load(), 10),
		}
	})
}

// Check runs one probe and applies the result.
func (p *Probe) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Interval)
	defer cancel()

	err := p.cfg.Pinger.Ping(probeCtx)
	p.probes.Add(1)
	if ctx.Err() != nil {
		return p.online.Load()
	}
	online := Reachable(err)
	if p.online.Swap(online) != online {
		p.cfg.Logger.Info("connectivity changed", "online", online, "error", err)
		if p.cfg.OnChange != nil {
			p.cfg.OnChange(online)
		}
	}
	return online
}

// Reachable reports whether a ping error still proves the service answered.
// Only transport failures and unavailability count as offline.
func Reachable(err error) bool {
	if err == nil {
		return true
	}
	return !errors.Is(err, core.ErrUnavailable) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (p *Probe) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("probe panic: %v", recovered)
			if p.cfg.Logger.Enabled(ctx, slog.LevelDebug) {
				p.cfg.Logger.Error("probe panic", "error", err, "stack", string(debug.Stack()))
			} else {
				p.cfg.Logger.Error("probe panic", "error", err)
			}
		}
	}()

	p.Check(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
