package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notesync/pkg/core"
)

func TestSource_FiltersViews(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 4)
	src := NewSource(in, core.ViewAll)
	require.NoError(t, src.Start(ctx))

	in <- core.Event{Type: core.EventProjectionChanged, View: core.ViewTrash}
	in <- core.Event{Type: core.EventProjectionChanged, View: core.ViewAll, Notes: []core.Note{{ID: 1}}}
	in <- core.Event{Type: core.EventSelectionChanged}
	close(in)

	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-src.Events():
			if !ok {
				assert.Equal(t, []string{
					"PROJECTION_CHANGED view=all notes=1",
					"SELECTION_CHANGED view= notes=0",
				}, got)
				return
			}
			got = append(got, e.String())
		case <-timeout:
			t.Fatal("source did not close")
		}
	}
}
