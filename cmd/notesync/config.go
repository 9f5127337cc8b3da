package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/connectivity"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/engine"
	"github.com/aretw0/notesync/pkg/poller"
	"github.com/aretw0/notesync/pkg/projection"
	"github.com/aretw0/notesync/pkg/refresh"
)

// Settings is the content of notesync.yaml. Every key can be overridden by
// a NOTESYNC_* environment variable or the matching flag.
type Settings struct {
	Remote          string            `mapstructure:"remote"`
	Token           string            `mapstructure:"token"`
	Cache           string            `mapstructure:"cache"`
	Drafts          string            `mapstructure:"drafts"`
	PageSize        int               `mapstructure:"page_size"`
	AdmissionTTL    time.Duration     `mapstructure:"admission_ttl"`
	PollInterval    time.Duration     `mapstructure:"poll_interval"`
	PollMaxAttempts int               `mapstructure:"poll_max_attempts"`
	RefreshDelay    time.Duration     `mapstructure:"refresh_delay"`
	ProbeInterval   time.Duration     `mapstructure:"probe_interval"`
	Offline         bool              `mapstructure:"offline"`
	Strategies      map[string]string `mapstructure:"strategies"`
}

// defaultSettings mirrors the engine defaults so a fresh notesync.yaml
// documents them.
func defaultSettings() Settings {
	return Settings{
		Cache:           notesync.CacheSQLite,
		PageSize:        engine.DefaultPageSize,
		AdmissionTTL:    engine.DefaultAdmissionTTL,
		PollInterval:    poller.DefaultInterval,
		PollMaxAttempts: poller.DefaultMaxAttempts,
		RefreshDelay:    refresh.DefaultDelay,
		ProbeInterval:   connectivity.DefaultInterval,
		Strategies: map[string]string{
			string(core.ViewGeneric): "silent",
			string(core.ViewTrash):   "reset",
		},
	}
}

// MarshalYAML writes durations in their human form.
func (s Settings) MarshalYAML() (any, error) {
	type file struct {
		Remote          string            `yaml:"remote"`
		Token           string            `yaml:"token,omitempty"`
		Cache           string            `yaml:"cache"`
		Drafts          string            `yaml:"drafts,omitempty"`
		PageSize        int               `yaml:"page_size"`
		AdmissionTTL    string            `yaml:"admission_ttl"`
		PollInterval    string            `yaml:"poll_interval"`
		PollMaxAttempts int               `yaml:"poll_max_attempts"`
		RefreshDelay    string            `yaml:"refresh_delay"`
		ProbeInterval   string            `yaml:"probe_interval"`
		Offline         bool              `yaml:"offline,omitempty"`
		Strategies      map[string]string `yaml:"strategies,omitempty"`
	}
	return file{
		Remote:          s.Remote,
		Token:           s.Token,
		Cache:           s.Cache,
		Drafts:          s.Drafts,
		PageSize:        s.PageSize,
		AdmissionTTL:    s.AdmissionTTL.String(),
		PollInterval:    s.PollInterval.String(),
		PollMaxAttempts: s.PollMaxAttempts,
		RefreshDelay:    s.RefreshDelay.String(),
		ProbeInterval:   s.ProbeInterval.String(),
		Offline:         s.Offline,
		Strategies:      s.Strategies,
	}, nil
}

// WriteFile stores the settings as notesync.yaml in dir.
func (s Settings) WriteFile(dir string) (string, error) {
	path := filepath.Join(dir, notesync.ConfigFile)
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write settings: %w", err)
	}
	return path, nil
}

// newViper returns a viper instance with the defaults, the environment
// bindings and, when present, notesync.yaml from root.
func newViper(root string) (*viper.Viper, error) {
	v := viper.New()
	d := defaultSettings()
	v.SetDefault("remote", d.Remote)
	v.SetDefault("cache", d.Cache)
	v.SetDefault("drafts", d.Drafts)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("admission_ttl", d.AdmissionTTL)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("poll_max_attempts", d.PollMaxAttempts)
	v.SetDefault("refresh_delay", d.RefreshDelay)
	v.SetDefault("probe_interval", d.ProbeInterval)
	v.SetDefault("offline", false)

	v.SetEnvPrefix("NOTESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if root == "" {
		return v, nil
	}
	v.SetConfigFile(filepath.Join(root, notesync.ConfigFile))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", notesync.ConfigFile, err)
	}
	return v, nil
}

func loadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// Options converts the settings into runtime options.
func (s Settings) Options() []notesync.Option {
	opts := []notesync.Option{
		notesync.WithRemote(s.Remote, s.Token),
		notesync.WithCacheAdapter(s.Cache),
		notesync.WithPageSize(s.PageSize),
		notesync.WithAdmissionTTL(s.AdmissionTTL),
		notesync.WithPollInterval(s.PollInterval),
		notesync.WithPollMaxAttempts(s.PollMaxAttempts),
		notesync.WithRefreshDelay(s.RefreshDelay),
		notesync.WithProbeInterval(s.ProbeInterval),
		notesync.WithOffline(s.Offline),
	}
	if s.Drafts != "" {
		opts = append(opts, notesync.WithDraftDir(s.Drafts))
	}
	for view, strategy := range s.Strategies {
		opts = append(opts, notesync.WithRefreshStrategy(core.ParseView(view), projection.ParseStrategy(strategy)))
	}
	return opts
}
