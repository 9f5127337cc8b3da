package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	// base/
	//   ws/ (.notesync)
	//     notes/deep/
	//   cfg/ (notesync.yaml)
	//     inner/ (.notesync)
	//   bare/
	base := t.TempDir()
	mkdir := func(parts ...string) string {
		p := filepath.Join(append([]string{base}, parts...)...)
		require.NoError(t, os.MkdirAll(p, 0755))
		return p
	}

	ws := mkdir("ws")
	mkdir("ws", DefaultSystemDir)
	deep := mkdir("ws", "notes", "deep")

	cfg := mkdir("cfg")
	require.NoError(t, os.WriteFile(filepath.Join(cfg, ConfigFile), []byte("cache: fs\n"), 0644))
	inner := mkdir("cfg", "inner")
	mkdir("cfg", "inner", DefaultSystemDir)

	bare := mkdir("bare")

	tests := []struct {
		name  string
		start string
		want  string
	}{
		{name: "system dir at start", start: ws, want: ws},
		{name: "system dir above start", start: deep, want: ws},
		{name: "config file", start: cfg, want: cfg},
		{name: "nearest indicator wins", start: inner, want: inner},
		{name: "relative start", start: filepath.Join(deep, ".."), want: ws},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.start)
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.want), filepath.Clean(got))
		})
	}

	t.Run("not found", func(t *testing.T) {
		if _, err := FindRoot(bare); err == nil {
			t.Skip("an indicator exists above the temp dir on this machine")
		}
		_, err := FindRoot(bare)
		assert.ErrorContains(t, err, "workspace root not found")
	})
}
