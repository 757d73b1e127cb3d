package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/bnema/opennow-cli/internal/domain"
	portmocks "github.com/bnema/opennow-cli/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSlotLastWriteWins(t *testing.T) {
	t.Parallel()

	for _, writes := range [][]int{{1}, {1, 2}, {5, 4, 3, 2, 1}, {7, 7, 7}} {
		t.Run(fmt.Sprint(writes), func(t *testing.T) {
			slot := NewSlot[int]("n")
			for _, w := range writes {
				slot.Write(w)
			}

			got, ok := slot.Take()
			require.True(t, ok)
			assert.Equal(t, writes[len(writes)-1], got)
			assert.Equal(t, uint64(len(writes)-1), slot.Overwrites())
		})
	}
}

func TestSlotTakeIsDestructive(t *testing.T) {
	t.Parallel()

	slot := NewSlot[string]("signal")
	slot.Write("once")

	got, ok := slot.Take()
	require.True(t, ok)
	assert.Equal(t, "once", got)

	_, ok = slot.Take()
	assert.False(t, ok)
	assert.False(t, slot.Has())
}

func TestSlotPeekReturnsCloneAndKeepsValue(t *testing.T) {
	t.Parallel()

	slot := NewSlot("games", WithClone(func(in []domain.Game) []domain.Game {
		return append([]domain.Game(nil), in...)
	}))
	slot.Write([]domain.Game{{ID: "a"}, {ID: "b"}})

	first, ok := slot.Peek()
	require.True(t, ok)
	first[0].ID = "mutated"

	second, ok := slot.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", second[0].ID)
	assert.True(t, slot.Has())
}

func TestSlotPeekMarksValueRead(t *testing.T) {
	t.Parallel()

	slot := NewSlot[int]("cache")
	slot.Write(1)
	_, _ = slot.Peek()
	slot.Write(2)
	assert.Zero(t, slot.Overwrites())

	slot.Write(3)
	assert.Equal(t, uint64(1), slot.Overwrites())
	assert.Equal(t, uint64(3), slot.Version())
}

func TestSlotConcurrentWritersLeaveOneValue(t *testing.T) {
	t.Parallel()

	slot := NewSlot[int]("race")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			slot.Write(v)
		}(i)
	}
	wg.Wait()

	_, ok := slot.Take()
	assert.True(t, ok)
	_, ok = slot.Take()
	assert.False(t, ok)
	assert.Equal(t, uint64(49), slot.Overwrites())
}

func TestPersistedSlotWritesAndHydrates(t *testing.T) {
	t.Parallel()

	store := portmocks.NewMockKVStore(t)
	cred := domain.Credential{AccessToken: "at", RefreshToken: "rt"}
	payload, err := json.Marshal(cred)
	require.NoError(t, err)

	store.EXPECT().Put(mock.Anything, KeyTokens, string(payload)).Return(nil).Once()
	store.EXPECT().Get(mock.Anything, KeyTokens).Return(string(payload), nil).Once()
	store.EXPECT().Delete(mock.Anything, KeyTokens).Return(nil).Once()

	writer := New(Config{Secrets: store})
	writer.Tokens.Write(cred)

	reader := New(Config{Secrets: store})
	require.NoError(t, reader.Tokens.Load(context.Background()))
	got, ok := reader.Tokens.Peek()
	require.True(t, ok)
	assert.Equal(t, "at", got.AccessToken)

	reader.Tokens.Clear()
	assert.False(t, reader.Tokens.Has())
}

func TestHydrateIgnoresMissingKeys(t *testing.T) {
	t.Parallel()

	store := portmocks.NewMockKVStore(t)
	store.EXPECT().Get(mock.Anything, mock.Anything).Return("", fmt.Errorf("lookup: %w", domain.ErrKeyNotFound))

	m := New(Config{Secrets: store, Cache: store})
	require.NoError(t, m.Hydrate(context.Background()))
	assert.False(t, m.Tokens.Has())
	assert.False(t, m.Games.Has())
}

func TestPersistFailureDoesNotReachWriter(t *testing.T) {
	t.Parallel()

	store := portmocks.NewMockKVStore(t)
	store.EXPECT().Put(mock.Anything, KeyWelcomeShown, "true").Return(fmt.Errorf("disk full")).Once()

	m := New(Config{Cache: store})
	m.WelcomeShown.Write(true)

	got, ok := m.WelcomeShown.Peek()
	require.True(t, ok)
	assert.True(t, got)
}

func TestForwarderDropsWhenFullOrClosed(t *testing.T) {
	t.Parallel()

	f := NewForwarder(1)
	assert.True(t, f.Send(domain.InputEvent{Kind: domain.InputKey, Code: 1}))
	assert.False(t, f.Send(domain.InputEvent{Kind: domain.InputKey, Code: 2}))

	f.Close()
	f.Close()
	assert.True(t, f.Closed())
	assert.False(t, f.Send(domain.InputEvent{Kind: domain.InputKey, Code: 3}))
	assert.Equal(t, uint64(2), f.Dropped())

	ev, ok := <-f.Events()
	require.True(t, ok)
	assert.Equal(t, uint16(1), ev.Code)
	_, ok = <-f.Events()
	assert.False(t, ok)
}
