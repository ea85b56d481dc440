package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	r := NewRegistry()
	r.now = func() time.Time { return now }

	first := r.Create("command-center")
	second := r.Create("organization-chat")

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "command-center", first.Source)
	assert.Equal(t, now, first.CreatedAt)
	assert.Equal(t, 2, r.Len())

	assert.True(t, r.Touch(first.ID))
	assert.False(t, r.Touch("unknown"))

	// Only the first session is used again later
	now = now.Add(90 * time.Minute)
	r.Touch(first.ID)
	now = now.Add(40 * time.Minute)

	assert.Equal(t, 1, r.Prune(time.Hour))
	assert.True(t, r.Touch(first.ID))
	assert.False(t, r.Touch(second.ID))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryStartPruning(t *testing.T) {
	r := NewRegistry()

	_, err := r.StartPruning("not a schedule", time.Hour)
	assert.Error(t, err)

	c, err := r.StartPruning("@every 1h", time.Hour)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)
	c.Stop()
}
