package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/notesync"
	"github.com/aretw0/notesync/pkg/core"
)

func TestSettings_WriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := defaultSettings()
	s.Remote = "https://notes.example.com"
	s.Drafts = "drafts"
	s.AdmissionTTL = 45 * time.Second

	path, err := s.WriteFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, notesync.ConfigFile), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Equal(t, "45s", doc["admission_ttl"], "durations are written in human form")
	assert.NotContains(t, doc, "token")

	v, err := newViper(dir)
	require.NoError(t, err)
	got, err := loadSettings(v)
	require.NoError(t, err)

	assert.Equal(t, s.Remote, got.Remote)
	assert.Equal(t, s.Drafts, got.Drafts)
	assert.Equal(t, 45*time.Second, got.AdmissionTTL)
	assert.Equal(t, s.PageSize, got.PageSize)
	assert.Equal(t, "reset", got.Strategies[string(core.ViewTrash)])
}

func TestSettings_MissingFileUsesDefaults(t *testing.T) {
	v, err := newViper(t.TempDir())
	require.NoError(t, err)
	got, err := loadSettings(v)
	require.NoError(t, err)

	d := defaultSettings()
	assert.Equal(t, d.Cache, got.Cache)
	assert.Equal(t, d.PageSize, got.PageSize)
	assert.Equal(t, d.RefreshDelay, got.RefreshDelay)
}

func TestSettings_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	s := defaultSettings()
	s.Remote = "https://file.example.com"
	_, err := s.WriteFile(dir)
	require.NoError(t, err)

	t.Setenv("NOTESYNC_REMOTE", "https://env.example.com")
	t.Setenv("NOTESYNC_PAGE_SIZE", "10")

	v, err := newViper(dir)
	require.NoError(t, err)
	got, err := loadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", got.Remote)
	assert.Equal(t, 10, got.PageSize)
}

func TestSettings_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, notesync.ConfigFile), []byte("remote: [unterminated"), 0600))

	_, err := newViper(dir)
	assert.Error(t, err)
}

func TestFormatNote(t *testing.T) {
	n := core.Note{
		ID:      42,
		Content: "groceries\n- milk",
		IsTop:   true,
		Tags:    []core.Tag{{ID: 1, Name: "home"}},
	}
	line := formatNote(n, true)
	assert.Contains(t, line, "42")
	assert.Contains(t, line, "^~")
	assert.Contains(t, line, "groceries")
	assert.NotContains(t, line, "milk")
	assert.Contains(t, line, "#home")
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1", "22"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 22}, ids)

	_, err = parseIDs([]string{"x"})
	assert.Error(t, err)
}
