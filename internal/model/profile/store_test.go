package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedContainsDefaultProfile(t *testing.T) {
	store := NewMemoryStore(Seed())

	p, ok := store.FindByID(DefaultID)
	require.True(t, ok)
	assert.Equal(t, "WayChat", p.Name)
	assert.Contains(t, p.SystemPrompt, "You are WayChat")
}

func TestMemoryStoreListIsACopy(t *testing.T) {
	store := NewMemoryStore(Seed())

	items := store.List()
	items[0].Name = "mutated"

	p, ok := store.FindByID(DefaultID)
	require.True(t, ok)
	assert.Equal(t, "WayChat", p.Name)
}

func TestMemoryStoreMissingProfile(t *testing.T) {
	store := NewMemoryStore(nil)

	_, ok := store.FindByID("nobody")
	assert.False(t, ok)
	assert.Empty(t, store.List())
}
