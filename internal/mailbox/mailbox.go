package mailbox

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/ports"
	"github.com/rs/zerolog"
)

const (
	KeyTokens        = "opennow/auth/tokens"
	KeyLoginProvider = "opennow/auth/login_provider"
	KeyGames         = "opennow/cache/games"
	KeyWelcomeShown  = "opennow/cache/welcome_shown"
)

// StreamEnd is the final report of a streaming run, retries included.
type StreamEnd struct {
	Outcome  domain.StreamOutcome
	Attempts int
	Err      error
}

// StreamAttachment exposes the live resources of the current attempt.
type StreamAttachment struct {
	Attempt int
	Frames  *Slot[domain.Frame]
	Stats   <-chan domain.StreamStats
	Input   *Forwarder
}

// Mailbox is the set of slots background work uses to hand results to the
// foreground tick.
type Mailbox struct {
	// caches: read with Peek
	Games         *Slot[[]domain.Game]
	Sections      *Slot[[]domain.GameSection]
	Subscription  *Slot[domain.Subscription]
	Tokens        *Slot[domain.Credential]
	LoginProvider *Slot[domain.LoginProvider]
	WelcomeShown  *Slot[bool]
	Regions       *Slot[[]domain.Region]
	QueueServers  *Slot[[]domain.QueueServer]

	// signals: read with Take
	Session          *Slot[domain.SessionRecord]
	SessionError     *Slot[string]
	ActiveSessions   *Slot[[]domain.ActiveSessionDescriptor]
	PendingGame      *Slot[domain.Game]
	LaunchProceed    *Slot[struct{}]
	PingResults      *Slot[[]domain.ServerCandidate]
	QueuePingResults *Slot[[]domain.QueueServer]
	StreamAttach     *Slot[StreamAttachment]
	StreamResult     *Slot[StreamEnd]
}

type Config struct {
	// Secrets backs tokens and the login provider. Optional.
	Secrets ports.KVStore
	// Cache backs the games list and the welcome flag. Optional.
	Cache  ports.KVStore
	Logger zerolog.Logger
}

func New(cfg Config) *Mailbox {
	return &Mailbox{
		Games:         NewSlot("games", persisted(cfg.Cache, KeyGames, cfg.Logger, WithClone(slices.Clone[[]domain.Game]))...),
		Sections:      NewSlot("sections", WithClone(cloneSections)),
		Subscription:  NewSlot[domain.Subscription]("subscription"),
		Tokens:        NewSlot("tokens", persisted[domain.Credential](cfg.Secrets, KeyTokens, cfg.Logger)...),
		LoginProvider: NewSlot("login_provider", persisted[domain.LoginProvider](cfg.Secrets, KeyLoginProvider, cfg.Logger)...),
		WelcomeShown:  NewSlot("welcome_shown", persisted[bool](cfg.Cache, KeyWelcomeShown, cfg.Logger)...),
		Regions:       NewSlot("regions", WithClone(slices.Clone[[]domain.Region])),
		QueueServers:  NewSlot("queue_servers", WithClone(slices.Clone[[]domain.QueueServer])),

		Session:          NewSlot[domain.SessionRecord]("session"),
		SessionError:     NewSlot[string]("session_error"),
		ActiveSessions:   NewSlot[[]domain.ActiveSessionDescriptor]("active_sessions"),
		PendingGame:      NewSlot[domain.Game]("pending_game"),
		LaunchProceed:    NewSlot[struct{}]("launch_proceed"),
		PingResults:      NewSlot[[]domain.ServerCandidate]("ping_results"),
		QueuePingResults: NewSlot[[]domain.QueueServer]("queue_ping_results"),
		StreamAttach:     NewSlot[StreamAttachment]("stream_attach"),
		StreamResult:     NewSlot[StreamEnd]("stream_result"),
	}
}

// Hydrate loads every persisted slot. Failures are joined; slots that
// loaded stay loaded.
func (m *Mailbox) Hydrate(ctx context.Context) error {
	var errs []error
	if err := m.Tokens.Load(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load tokens: %w", err))
	}
	if err := m.LoginProvider.Load(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load login provider: %w", err))
	}
	if err := m.Games.Load(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load games: %w", err))
	}
	if err := m.WelcomeShown.Load(ctx); err != nil {
		errs = append(errs, fmt.Errorf("load welcome flag: %w", err))
	}

	return errors.Join(errs...)
}

// ClearAccount drops everything tied to the signed-in account.
func (m *Mailbox) ClearAccount() {
	m.Tokens.Clear()
	m.LoginProvider.Clear()
	m.Games.Clear()
	m.Sections.Clear()
	m.Subscription.Clear()
	m.ActiveSessions.Clear()
}

func persisted[T any](store ports.KVStore, key string, logger zerolog.Logger, extra ...Option[T]) []Option[T] {
	if store == nil {
		return extra
	}

	return append(extra, WithStore[T](store, key, logger))
}

func cloneSections(sections []domain.GameSection) []domain.GameSection {
	out := make([]domain.GameSection, len(sections))
	for i, section := range sections {
		out[i] = section
		out[i].Games = slices.Clone(section.Games)
	}

	return out
}
