package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/metrics"
	"github.com/bnema/opennow-cli/internal/ports"
	"github.com/rs/zerolog"
)

const persistTimeout = 2 * time.Second

// Slot holds at most one value. Write replaces whatever is there, read or
// not. Take empties the slot; Peek leaves it in place and returns a clone.
//
// Any goroutine may Write. Reads belong to a single consumer.
type Slot[T any] struct {
	name  string
	clone func(T) T

	mu         sync.Mutex
	value      T
	full       bool
	unread     bool
	version    uint64
	overwrites uint64

	store  ports.KVStore
	key    string
	logger zerolog.Logger
}

type Option[T any] func(*Slot[T])

// WithClone sets the copy function used by Peek. Values are copied with
// plain assignment otherwise.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(s *Slot[T]) {
		s.clone = clone
	}
}

// WithStore mirrors the slot into store under key as JSON.
func WithStore[T any](store ports.KVStore, key string, logger zerolog.Logger) Option[T] {
	return func(s *Slot[T]) {
		s.store = store
		s.key = key
		s.logger = logger
	}
}

func NewSlot[T any](name string, opts ...Option[T]) *Slot[T] {
	s := &Slot[T]{name: name, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Slot[T]) Name() string {
	return s.name
}

// Write stores value, dropping any unread predecessor. It never waits on
// the reader.
func (s *Slot[T]) Write(value T) {
	s.mu.Lock()
	if s.full && s.unread {
		s.overwrites++
		metrics.MailboxOverwritesTotal.WithLabelValues(s.name).Inc()
	}
	s.value = value
	s.full = true
	s.unread = true
	s.version++
	s.mu.Unlock()

	s.persist(value)
}

// Take returns and clears the value.
func (s *Slot[T]) Take() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if !s.full {
		return zero, false
	}

	value := s.value
	s.value = zero
	s.full = false
	s.unread = false

	return value, true
}

// Peek returns a copy of the value and keeps it in the slot.
func (s *Slot[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		var zero T
		return zero, false
	}

	s.unread = false
	if s.clone != nil {
		return s.clone(s.value), true
	}

	return s.value, true
}

func (s *Slot[T]) Has() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.full
}

// Version increases on every Write and Load.
func (s *Slot[T]) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.version
}

// Overwrites counts writes that replaced a value nobody had read.
func (s *Slot[T]) Overwrites() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.overwrites
}

// Clear empties the slot and removes the persisted copy.
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	var zero T
	s.value = zero
	s.full = false
	s.unread = false
	s.mu.Unlock()

	if s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, s.key); err != nil {
		s.logger.Warn().Err(err).Str("slot", s.name).Msg("delete persisted slot")
	}
}

// Load hydrates the slot from its store. A missing key leaves it empty.
func (s *Slot[T]) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	raw, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil
		}
		return err
	}

	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return err
	}

	s.mu.Lock()
	s.value = value
	s.full = true
	s.unread = true
	s.version++
	s.mu.Unlock()

	return nil
}

func (s *Slot[T]) persist(value T) {
	if s.store == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("slot", s.name).Msg("encode slot value")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.Put(ctx, s.key, string(payload)); err != nil {
		s.logger.Warn().Err(err).Str("slot", s.name).Msg("persist slot value")
	}
}
