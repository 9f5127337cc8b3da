package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/notesync/pkg/adapters/httpremote"
	"github.com/aretw0/notesync/pkg/connectivity"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/engine"
	"github.com/aretw0/notesync/pkg/offline"
)

// ErrNoService is returned when neither WithService nor WithRemote is set.
var ErrNoService = errors.New("no note service configured")

// Runtime is a wired engine together with the resources it owns.
type Runtime struct {
	Engine  *engine.Engine
	Probe   *connectivity.Probe
	Storage *Storage
	Service core.Service

	probing bool
}

// New wires an engine over the local state in dir.
//
//	rt, err := notesync.New("./workspace",
//		notesync.WithRemote("https://notes.example.com", token),
//		notesync.WithAutoInit(true),
//	)
func New(dir string, opts ...Option) (*Runtime, error) {
	o := buildOptions(opts)

	svc, err := newService(o)
	if err != nil {
		return nil, err
	}

	storage, err := initStorage(dir, o)
	if err != nil {
		return nil, err
	}

	queue, err := offline.Open(storage.Queue, offline.WithLogger(o.logger))
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	cfg := engine.Config{
		Service:         svc,
		Cache:           storage.Cache,
		Queue:           queue,
		Notifier:        o.notifier,
		Metrics:         o.metrics,
		Logger:          o.logger,
		PageSize:        o.pageSize,
		AdmissionTTL:    o.admissionTTL,
		PollInterval:    o.pollInterval,
		PollMaxAttempts: o.pollMaxAttempts,
		RefreshDelay:    o.refreshDelay,
		Strategies:      o.strategies,
		Offline:         o.offline,
	}
	if storage.Drafts != nil {
		cfg.Drafts = storage.Drafts
	}

	eng, err := engine.New(cfg)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	probe := connectivity.New(connectivity.Config{
		Pinger:   pinger(svc),
		Interval: o.probeInterval,
		Initial:  !o.offline,
		OnChange: eng.SetOnline,
		Logger:   o.logger,
	})

	return &Runtime{
		Engine:  eng,
		Probe:   probe,
		Storage: storage,
		Service: svc,
	}, nil
}

func newService(o *options) (core.Service, error) {
	if o.service != nil {
		return o.service, nil
	}
	if o.remoteURL == "" {
		return nil, ErrNoService
	}
	c, err := httpremote.New(o.remoteURL,
		httpremote.WithToken(o.token),
		httpremote.WithLogger(o.logger),
		httpremote.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote client: %w", err)
	}
	return c, nil
}

// pinger uses the service's own Ping when it has one, and a config fetch
// otherwise.
func pinger(svc core.Service) connectivity.Pinger {
	if p, ok := svc.(connectivity.Pinger); ok {
		return p
	}
	return connectivity.PingFunc(func(ctx context.Context) error {
		_, err := svc.Config(ctx)
		return err
	})
}

// Start runs the connectivity probe and the engine's initial load.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.Probe.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connectivity probe: %w", err)
	}
	r.probing = true
	return r.Engine.Start(ctx)
}

// Close stops the probe and the engine and releases local storage.
func (r *Runtime) Close() error {
	var errs []error
	if r.probing {
		if err := r.Probe.Stop(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.Engine.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.Storage.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
