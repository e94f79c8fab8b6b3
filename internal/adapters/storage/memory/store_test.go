package memory

import (
	"context"
	"testing"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore(0)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "jf_userId", "u1"))
	require.NoError(t, store.Set(ctx, "serverId", "s1"))

	value, err := store.Get(ctx, "jf_userId")
	require.NoError(t, err)
	assert.Equal(t, "u1", value)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jf_userId", "serverId"}, keys)

	require.NoError(t, store.Remove(ctx, "jf_userId"))
	_, err = store.Get(ctx, "jf_userId")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStoreEnforcesQuota(t *testing.T) {
	t.Parallel()

	store := NewStore(10)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "12345"))
	assert.Equal(t, int64(6), store.UsedBytes())

	err := store.Set(ctx, "k2", "123456789")
	require.ErrorIs(t, err, ports.ErrQuotaExceeded)

	// overwriting an existing slot only counts the delta
	require.NoError(t, store.Set(ctx, "k", "123456789"))
	assert.Equal(t, int64(10), store.UsedBytes())

	require.NoError(t, store.Remove(ctx, "k"))
	assert.Zero(t, store.UsedBytes())
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewStore(0).Set(ctx, "k", "v")
	require.ErrorIs(t, err, context.Canceled)
}
