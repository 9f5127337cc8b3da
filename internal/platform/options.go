package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/metrics"
	"github.com/aretw0/notesync/pkg/projection"
)

// Cache adapter names accepted by WithCacheAdapter.
const (
	CacheFS     = "fs"
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
)

// DefaultSystemDir is the hidden directory holding the cache and the
// offline queue inside the data directory.
const DefaultSystemDir = ".notesync"

// options holds the internal configuration for a notesync runtime.
type options struct {
	logger   *slog.Logger
	service  core.Service
	cache    core.Cache
	notifier core.Notifier
	metrics  *metrics.Metrics

	remoteURL    string
	token        string
	cacheAdapter string
	systemDir    string
	draftDir     string

	pageSize        int
	admissionTTL    time.Duration
	pollInterval    time.Duration
	pollMaxAttempts int
	refreshDelay    time.Duration
	probeInterval   time.Duration
	strategies      map[core.View]projection.Strategy
	offline         bool

	config map[string]any
}

// Option defines a functional option for configuring notesync.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		cacheAdapter: CacheFS,
		systemDir:    DefaultSystemDir,
		strategies:   make(map[core.View]projection.Strategy),
		config:       make(map[string]any),
	}
}

func buildOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithService injects the remote note service. When set, WithRemote is
// ignored.
func WithService(svc core.Service) Option {
	return func(o *options) {
		o.service = svc
	}
}

// WithRemote points the engine at an HTTP note service.
func WithRemote(baseURL, token string) Option {
	return func(o *options) {
		o.remoteURL = baseURL
		o.token = token
	}
}

// WithCacheAdapter selects the local cache by name ("fs", "sqlite" or
// "memory"). Defaults to "fs".
func WithCacheAdapter(name string) Option {
	return func(o *options) {
		o.cacheAdapter = name
	}
}

// WithCache injects a cache implementation, skipping the adapter lookup.
func WithCache(c core.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithSystemDir sets the hidden directory name. Defaults to ".notesync".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithDraftDir tracks {id}.md files in dir as open edits.
func WithDraftDir(dir string) Option {
	return func(o *options) {
		o.draftDir = dir
	}
}

// WithNotifier receives user-facing notifications.
func WithNotifier(n core.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithMetrics records engine instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithPageSize sets the list page size.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithAdmissionTTL sets how long a created note survives list responses
// that omit it.
func WithAdmissionTTL(d time.Duration) Option {
	return func(o *options) {
		o.admissionTTL = d
	}
}

// WithPollInterval sets the enrichment poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithPollMaxAttempts sets how many unchanged polls end a session.
func WithPollMaxAttempts(n int) Option {
	return func(o *options) {
		o.pollMaxAttempts = n
	}
}

// WithRefreshDelay sets the refresh debounce window.
func WithRefreshDelay(d time.Duration) Option {
	return func(o *options) {
		o.refreshDelay = d
	}
}

// WithRefreshStrategy sets how a view reloads during a refresh pass.
func WithRefreshStrategy(view core.View, s projection.Strategy) Option {
	return func(o *options) {
		o.strategies[view] = s
	}
}

// WithProbeInterval sets the connectivity probe interval.
func WithProbeInterval(d time.Duration) Option {
	return func(o *options) {
		o.probeInterval = d
	}
}

// WithOffline starts without connectivity. The probe flips it once the
// service answers.
func WithOffline(offline bool) Option {
	return func(o *options) {
		o.offline = offline
	}
}

// WithAutoInit creates the data directory when it is missing.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.config["auto_init"] = auto
	}
}

// WithMustExist fails when the data directory does not exist.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithForceTemp re-roots the data directory under the system temp dir.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithDevSafety controls the sandbox applied under `go run` and `go test`.
// By default (true) the data directory is re-rooted into a temp dir so a
// development run never touches a real cache or offline queue.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}
