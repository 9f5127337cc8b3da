package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/notesync/pkg/adapters/fs"
	"github.com/aretw0/notesync/pkg/adapters/memory"
	"github.com/aretw0/notesync/pkg/adapters/sqlite"
	"github.com/aretw0/notesync/pkg/core"
	"github.com/aretw0/notesync/pkg/offline"
)

// SQLiteFile is the sqlite cache database inside the system directory.
const SQLiteFile = "cache.db"

// Storage is the local state of one workspace: the note cache, the
// offline queue store and the optional draft directory.
type Storage struct {
	Dir    string
	Cache  core.Cache
	Queue  offline.Store
	Drafts *fs.DraftDir

	closers []func() error
}

// Close releases the cache handles.
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Init opens the local state under dir. The directory is resolved through
// the dev sandbox, created when auto-init is on, and must exist otherwise.
func Init(dir string, opts ...Option) (*Storage, error) {
	o := buildOptions(opts)
	return initStorage(dir, o)
}

func initStorage(dir string, o *options) (*Storage, error) {
	autoInit, _ := o.config["auto_init"].(bool)
	mustExist, _ := o.config["must_exist"].(bool)
	tempDir, _ := o.config["temp_dir"].(bool)
	devSafety := true
	if v, ok := o.config["dev_safety"].(bool); ok {
		devSafety = v
	}

	useTemp := tempDir || (IsDevRun() && devSafety)
	resolved := ResolveDataDir(dir, useTemp)
	if useTemp {
		o.logger.Warn("running in SAFE MODE (dev sandbox)", "original_path", dir, "resolved_path", resolved)
	}

	if _, err := os.Stat(resolved); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat data dir: %w", err)
		}
		if mustExist || !(autoInit || useTemp) {
			return nil, fmt.Errorf("data dir %s does not exist", resolved)
		}
	}

	s := &Storage{Dir: resolved}
	system := filepath.Join(resolved, o.systemDir)
	if o.cacheAdapter != CacheMemory {
		if err := os.MkdirAll(system, 0755); err != nil {
			return nil, fmt.Errorf("failed to create system dir: %w", err)
		}
	}

	if err := s.openCache(system, o); err != nil {
		return nil, err
	}

	if o.cacheAdapter == CacheMemory {
		s.Queue = offline.NewMemoryStore()
	} else {
		s.Queue = fs.NewQueueFile(system)
	}

	if o.draftDir != "" {
		draftDir := o.draftDir
		if !filepath.IsAbs(draftDir) {
			draftDir = filepath.Join(resolved, draftDir)
		}
		if err := os.MkdirAll(draftDir, 0755); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to create draft dir: %w", err)
		}
		s.Drafts = fs.NewDraftDir(draftDir, o.logger)
		if err := s.Drafts.Scan(); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Storage) openCache(system string, o *options) error {
	if o.cache != nil {
		s.Cache = o.cache
		return nil
	}
	switch o.cacheAdapter {
	case CacheFS:
		c := fs.NewNoteCache(system, o.logger)
		if err := c.Load(); err != nil {
			return err
		}
		s.Cache = c
	case CacheSQLite:
		c, err := sqlite.Open(filepath.Join(system, SQLiteFile), sqlite.WithLogger(o.logger))
		if err != nil {
			return err
		}
		s.Cache = c
		s.closers = append(s.closers, c.Close)
	case CacheMemory:
		s.Cache = memory.NewCache()
	default:
		return fmt.Errorf("unknown cache adapter: %s", o.cacheAdapter)
	}
	return nil
}
