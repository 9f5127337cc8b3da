// Package sqlite implements the local persistent note cache on SQLite
// through gorm.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/aretw0/notesync/pkg/core"
)

const batchSize = 100

// noteRow is one cached note. The full note is kept as JSON so the schema
// does not follow every field change; type and update marker are columns
// for ordering and inspection.
type noteRow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false"`
	Type       int       `gorm:"index"`
	ModifiedAt time.Time `gorm:"column:updated_at;index"`
	Payload    []byte    `gorm:"not null"`
}

func (noteRow) TableName() string { return "notes" }

// Cache is a core.Cache backed by a SQLite database.
type Cache struct {
	db     *gorm.DB
	logger *slog.Logger
	owned  bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// Open opens (creating if needed) the database at path and migrates the
// notes table.
func Open(path string, opts ...Option) (*Cache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache %s: %w", path, err)
	}
	c, err := New(db, opts...)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	c.owned = true
	return c, nil
}

// New wraps an existing gorm handle. The caller keeps ownership of db.
func New(db *gorm.DB, opts ...Option) (*Cache, error) {
	c := &Cache{db: db}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if err := db.AutoMigrate(&noteRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate notes table: %w", err)
	}
	return c, nil
}

// PutMany upserts notes by id.
func (c *Cache) PutMany(ctx context.Context, notes []core.Note) error {
	if len(notes) == 0 {
		return nil
	}
	rows := make([]noteRow, 0, len(notes))
	for _, n := range notes {
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("failed to encode note %d: %w", n.ID, err)
		}
		rows = append(rows, noteRow{
			ID:         n.ID,
			Type:       int(n.Type),
			ModifiedAt: n.UpdatedAt,
			Payload:    payload,
		})
	}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		CreateInBatches(rows, batchSize).Error
	if err != nil {
		return fmt.Errorf("failed to put %d notes: %w", len(rows), err)
	}
	return nil
}

// GetAll returns every cached note, most recently updated first. Rows that
// fail to decode are skipped and logged.
func (c *Cache) GetAll(ctx context.Context) ([]core.Note, error) {
	var rows []noteRow
	if err := c.db.WithContext(ctx).Order("updated_at desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	out := make([]core.Note, 0, len(rows))
	for _, r := range rows {
		var n core.Note
		if err := json.Unmarshal(r.Payload, &n); err != nil {
			c.logger.Warn("skipping corrupt cache row", "id", r.ID, "error", err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Delete removes id. Missing ids are not an error.
func (c *Cache) Delete(ctx context.Context, id int64) error {
	if err := c.db.WithContext(ctx).Delete(&noteRow{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete note %d: %w", id, err)
	}
	return nil
}

// Clear removes every cached note.
func (c *Cache) Clear(ctx context.Context) error {
	err := c.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&noteRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear notes: %w", err)
	}
	return nil
}

// Count returns the number of cached notes.
func (c *Cache) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.WithContext(ctx).Model(&noteRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return n, nil
}

// Close releases the database if Open created it.
func (c *Cache) Close() error {
	if !c.owned {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}

var _ core.Cache = (*Cache)(nil)
