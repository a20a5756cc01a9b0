package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/agenda/store"
)

func TestMemoryDriver(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	d := NewDB(&store.Event{ID: "seeded", Start: start, End: start.Add(time.Hour), Description: "Seed"})

	id, err := d.InsertEvent(ctx, &store.Event{Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour), Description: "New"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	list, err := d.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Snapshots are copies.
	list[0].Description = "mutated"
	again, err := d.ListEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Seed", again[0].Description)

	ok, err := d.ReplaceEvent(ctx, id, &store.Event{Start: start.Add(4 * time.Hour), End: start.Add(5 * time.Hour), Description: "Moved"})
	require.NoError(t, err)
	assert.True(t, ok)
	again, _ = d.ListEvents(ctx)
	assert.Equal(t, id, again[1].ID)
	assert.Equal(t, "Moved", again[1].Description)

	ok, err = d.ReplaceEvent(ctx, "missing", &store.Event{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.RemoveEvent(ctx, "seeded")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.RemoveEvent(ctx, "seeded")
	require.NoError(t, err)
	assert.False(t, ok)

	again, _ = d.ListEvents(ctx)
	assert.Len(t, again, 1)
	assert.Equal(t, store.IdentityOpaque, d.IdentityScheme())
}
