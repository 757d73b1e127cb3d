package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	passstore "github.com/bnema/opennow-cli/internal/adapters/store/pass"
	"github.com/bnema/opennow-cli/internal/domain"
	portmocks "github.com/bnema/opennow-cli/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const tokensKey = "opennow/auth/tokens"

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockKVStore(t)
	fallback := portmocks.NewMockKVStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, tokensKey).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), tokensKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockKVStore(t)
	fallback := portmocks.NewMockKVStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, tokensKey).Return("", passstore.ErrUnavailable).Once()
	fallback.EXPECT().Get(mock.Anything, tokensKey).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), tokensKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetMissingEverywhereIsNotFound(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockKVStore(t)
	fallback := portmocks.NewMockKVStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, tokensKey).Return("", passstore.ErrUnavailable).Once()
	fallback.EXPECT().Get(mock.Anything, tokensKey).Return("", fmt.Errorf("%q: %w", tokensKey, domain.ErrKeyNotFound)).Once()

	_, err := store.Get(context.Background(), tokensKey)
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStoreGetReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockKVStore(t)
	fallback := portmocks.NewMockKVStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, tokensKey).Return("", errors.New("pass failed")).Once()
	fallback.EXPECT().Get(mock.Anything, tokensKey).Return("", errors.New("file failed")).Once()

	_, err := store.Get(context.Background(), tokensKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend")
	assert.ErrorContains(t, err, "fallback backend")
	assert.ErrorContains(t, err, "pass failed")
	assert.ErrorContains(t, err, "file failed")
}

func TestStorePutFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockKVStore(t)
	fallback := portmocks.NewMockKVStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Put(mock.Anything, tokensKey, "secret").Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Put(mock.Anything, tokensKey, "secret").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), tokensKey, "secret"))
}

func TestStorePutDoesNotCallFallbackWhenPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockKVStore(t)
	fallback := portmocks.NewMockKVStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Put(mock.Anything, tokensKey, "secret").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), tokensKey, "secret"))
}

func TestStoreDeleteClearsBothBackends(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockKVStore(t)
	fallback := portmocks.NewMockKVStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Delete(mock.Anything, tokensKey).Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, tokensKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), tokensKey))
}

func TestStoreDeleteToleratesMissingPass(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockKVStore(t)
	fallback := portmocks.NewMockKVStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Delete(mock.Anything, tokensKey).Return(passstore.ErrUnavailable).Once()
	fallback.EXPECT().Delete(mock.Anything, tokensKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), tokensKey))
}

func TestStoreGetDoesNotFallbackOnCanceledContextError(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockKVStore(t)
	fallback := portmocks.NewMockKVStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, tokensKey).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), tokensKey)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewStoreCheckedRejectsNilBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStoreChecked(nil, portmocks.NewMockKVStore(t))
	require.Error(t, err)
	_, err = NewStoreChecked(portmocks.NewMockKVStore(t), nil)
	require.Error(t, err)
}
