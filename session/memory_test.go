package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invictus-insights/aegnix-platform-sdk-ae/session"
)

func TestMemoryStore_SaveLoad(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	_, ok := store.Load(ctx)
	assert.False(t, ok)

	state := testState()
	require.NoError(t, store.Save(ctx, state))

	loaded, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, state, loaded)
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	state := testState()
	require.NoError(t, store.Save(ctx, state))

	state.AccessToken = "mutated-after-save"
	loaded, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "acc", loaded.AccessToken)

	loaded.AccessToken = "mutated-after-load"
	again, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "acc", again.AccessToken)
}

func TestMemoryStore_Clear(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testState()))

	require.NoError(t, store.Clear(ctx))
	_, ok := store.Load(ctx)
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx))
}
