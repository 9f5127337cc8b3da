package notesync

import (
	"log/slog"
	"time"

	"github.com/aretw0/notesync/internal/platform"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/engine"
	"github.com/aretw0/notesync/pkg/metrics"
	"github.com/aretw0/notesync/pkg/projection"
)

// --- Types ---

// Engine is a public alias for the sync engine.
type Engine = engine.Engine

// Runtime is a wired engine together with its probe and local storage.
type Runtime = platform.Runtime

// Storage is the local state of a workspace.
type Storage = platform.Storage

// Strategy selects how a view refreshes.
type Strategy = projection.Strategy

// Refresh strategies.
const (
	RefreshSilent = projection.RefreshSilent
	RefreshReset  = projection.RefreshReset
)

// Cache adapter names.
const (
	CacheFS     = platform.CacheFS
	CacheSQLite = platform.CacheSQLite
	CacheMemory = platform.CacheMemory
)

// ConfigFile is the workspace configuration file name.
const ConfigFile = platform.ConfigFile

// ErrNoService is returned by New when no remote is configured.
var ErrNoService = platform.ErrNoService

// --- Configuration ---

// Option defines a functional option for configuring notesync.
type Option = platform.Option

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithService injects a custom remote note service.
func WithService(svc core.Service) Option {
	return platform.WithService(svc)
}

// WithRemote points the runtime at an HTTP note service.
func WithRemote(baseURL, token string) Option {
	return platform.WithRemote(baseURL, token)
}

// WithCacheAdapter selects the local cache by name ("fs", "sqlite", "memory").
func WithCacheAdapter(name string) Option {
	return platform.WithCacheAdapter(name)
}

// WithCache injects a custom local cache.
func WithCache(c core.Cache) Option {
	return platform.WithCache(c)
}

// WithSystemDir sets the hidden directory name (default ".notesync").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithDraftDir enables the on-disk draft directory.
func WithDraftDir(dir string) Option {
	return platform.WithDraftDir(dir)
}

// WithNotifier sets the sink for user-facing notifications.
func WithNotifier(n core.Notifier) Option {
	return platform.WithNotifier(n)
}

// WithMetrics sets the prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return platform.WithMetrics(m)
}

// WithPageSize sets the list page size.
func WithPageSize(n int) Option {
	return platform.WithPageSize(n)
}

// WithAdmissionTTL sets how long a fresh write survives list refreshes.
func WithAdmissionTTL(d time.Duration) Option {
	return platform.WithAdmissionTTL(d)
}

// WithPollInterval sets the base enrichment poll interval.
func WithPollInterval(d time.Duration) Option {
	return platform.WithPollInterval(d)
}

// WithPollMaxAttempts bounds enrichment polling per stage.
func WithPollMaxAttempts(n int) Option {
	return platform.WithPollMaxAttempts(n)
}

// WithRefreshDelay sets the debounce for refresh triggers.
func WithRefreshDelay(d time.Duration) Option {
	return platform.WithRefreshDelay(d)
}

// WithRefreshStrategy overrides how one view refreshes.
func WithRefreshStrategy(view core.View, s Strategy) Option {
	return platform.WithRefreshStrategy(view, s)
}

// WithProbeInterval sets how often connectivity is checked.
func WithProbeInterval(d time.Duration) Option {
	return platform.WithProbeInterval(d)
}

// WithOffline starts the engine offline.
func WithOffline(offline bool) Option {
	return platform.WithOffline(offline)
}

// WithAutoInit creates the workspace directory when missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithMustExist fails when the workspace directory is missing.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces the dev sandbox.
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety toggles the sandbox applied under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Factory ---

// New wires an engine over the workspace in dir.
func New(dir string, opts ...Option) (*Runtime, error) {
	return platform.New(dir, opts...)
}

// Init opens the local state of a workspace without a remote.
func Init(dir string, opts ...Option) (*Storage, error) {
	return platform.Init(dir, opts...)
}

// FindRoot looks upwards from dir for a workspace.
func FindRoot(dir string) (string, error) {
	return platform.FindRoot(dir)
}

// ResolveDataDir applies the dev sandbox to a path.
func ResolveDataDir(path string, forceTemp bool) string {
	return platform.ResolveDataDir(path, forceTemp)
}

// IsDevRun reports whether the binary runs under `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}
