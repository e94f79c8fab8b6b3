package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/ports"
	portmocks "github.com/bnema/jellyfin-enrich/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockStorage(t)
	fallback := portmocks.NewMockStorage(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "jf_userId").Return("u-primary", nil).Once()

	value, err := store.Get(context.Background(), "jf_userId")
	require.NoError(t, err)
	assert.Equal(t, "u-primary", value)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockStorage(t)
	fallback := portmocks.NewMockStorage(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "jf_userId").Return("", errors.New("database locked")).Once()
	fallback.EXPECT().Get(mock.Anything, "jf_userId").Return("u-fallback", nil).Once()

	value, err := store.Get(context.Background(), "jf_userId")
	require.NoError(t, err)
	assert.Equal(t, "u-fallback", value)
}

func TestStoreGetKeepsNotFoundWhenBothMiss(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockStorage(t)
	fallback := portmocks.NewMockStorage(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "absent").Return("", fmt.Errorf("slot: %w", domain.ErrKeyNotFound)).Once()
	fallback.EXPECT().Get(mock.Anything, "absent").Return("", fmt.Errorf("slot: %w", domain.ErrKeyNotFound)).Once()

	_, err := store.Get(context.Background(), "absent")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
	assert.NotContains(t, err.Error(), "fallback backend")
}

func TestStoreGetReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockStorage(t)
	fallback := portmocks.NewMockStorage(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "jf_userId").Return("", errors.New("sqlite failed")).Once()
	fallback.EXPECT().Get(mock.Anything, "jf_userId").Return("", errors.New("toml failed")).Once()

	_, err := store.Get(context.Background(), "jf_userId")
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend")
	assert.ErrorContains(t, err, "fallback backend")
	assert.ErrorContains(t, err, "sqlite failed")
	assert.ErrorContains(t, err, "toml failed")
}

func TestStoreSetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockStorage(t)
	fallback := portmocks.NewMockStorage(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Set(mock.Anything, "serverId", "s1").Return(errors.New("disk full")).Once()
	fallback.EXPECT().Set(mock.Anything, "serverId", "s1").Return(nil).Once()

	require.NoError(t, store.Set(context.Background(), "serverId", "s1"))
}

func TestStoreSetSurfacesQuotaWithoutFallback(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockStorage(t)
	fallback := portmocks.NewMockStorage(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Set(mock.Anything, "videoQualityCache", "blob").Return(ports.ErrQuotaExceeded).Once()

	err := store.Set(context.Background(), "videoQualityCache", "blob")
	require.ErrorIs(t, err, ports.ErrQuotaExceeded)
}

func TestStoreRemoveClearsBothBackends(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockStorage(t)
	fallback := portmocks.NewMockStorage(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Remove(mock.Anything, "embyToken").Return(nil).Once()
	fallback.EXPECT().Remove(mock.Anything, "embyToken").Return(nil).Once()

	require.NoError(t, store.Remove(context.Background(), "embyToken"))
}

func TestStoreKeysMergesBackends(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockStorage(t)
	fallback := portmocks.NewMockStorage(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Keys(mock.Anything).Return([]string{"b", "a"}, nil).Once()
	fallback.EXPECT().Keys(mock.Anything).Return([]string{"c", "a"}, nil).Once()

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestStoreGetDoesNotFallbackOnCanceledContextError(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockStorage(t)
	fallback := portmocks.NewMockStorage(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, "jf_userId").Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), "jf_userId")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewStoreCheckedRejectsNilBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStoreChecked(nil, portmocks.NewMockStorage(t))
	require.ErrorIs(t, err, errNilPrimaryStore)

	_, err = NewStoreChecked(portmocks.NewMockStorage(t), nil)
	require.ErrorIs(t, err, errNilFallbackStore)
}
