package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokensKey = "opennow/auth/tokens"

func TestStorePutUsesPassInsert(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"insert", "-m", "-f", tokensKey}, args)
			assert.Equal(t, "{\"access_token\":\"at\"}\n", input)
			return "", "", nil
		},
	}

	err := store.Put(context.Background(), tokensKey, `{"access_token":"at"}`)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestStoreGetUsesPassShowAndTrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", tokensKey}, args)
			assert.Empty(t, input)
			return "value\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), tokensKey)
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}

func TestStoreGetMissingEntryIsNotFound(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "Error: opennow/auth/tokens is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), tokensKey)
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStoreDeleteMissingEntryIsNotAnError(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"rm", "-f", tokensKey}, args)
			return "", "Error: opennow/auth/tokens is not in the password store.", errors.New("exit status 1")
		},
	}

	require.NoError(t, store.Delete(context.Background(), tokensKey))
}

func TestStoreGetReturnsClearError(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			return "", "gpg: decryption failed", errors.New("exit status 2")
		},
	}

	_, err := store.Get(context.Background(), tokensKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrKeyNotFound)
	assert.ErrorContains(t, err, "pass get")
	assert.ErrorContains(t, err, tokensKey)
	assert.ErrorContains(t, err, "decryption failed")
}
