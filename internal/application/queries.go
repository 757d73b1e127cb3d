package application

import (
	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/mailbox"
)

// Snapshot is a read-only copy of the Orchestrator state for rendering.
type Snapshot struct {
	LoggedIn   bool
	Refreshing bool

	Session    *domain.SessionRecord
	Requesting bool
	ReadyPolls int
	Status     string
	LastError  string

	PendingGame *domain.Game
	Conflicts   []domain.ActiveSessionDescriptor

	Servers        []domain.ServerCandidate
	SelectedServer string
	AutoSelect     bool
	Probing        bool
	QueueServers   []domain.QueueServer

	Attempt int
	Stats   domain.StreamStats
	LastEnd *mailbox.StreamEnd
}

func (s Snapshot) Streaming() bool {
	return s.Session != nil && s.Session.Phase.Kind == domain.PhaseStreaming
}

func (s Snapshot) AwaitingDecision() bool {
	return s.PendingGame != nil && len(s.Conflicts) > 0
}

func (s Snapshot) Busy() bool {
	if s.Requesting || s.Streaming() {
		return true
	}

	return s.Session != nil && s.Session.Phase.Transient()
}

func (s Snapshot) Failed() bool {
	return s.LastError != ""
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, loggedIn := o.tokens.Current()
	snap := Snapshot{
		LoggedIn:       loggedIn,
		Refreshing:     o.tokens.Refreshing(),
		Requesting:     o.requesting,
		ReadyPolls:     o.readyPolls,
		Status:         o.status,
		LastError:      o.lastError,
		Conflicts:      append([]domain.ActiveSessionDescriptor(nil), o.conflicts...),
		Servers:        o.servers.Candidates(),
		SelectedServer: o.servers.SelectedID(),
		AutoSelect:     o.servers.Auto(),
		Probing:        o.servers.Probing(),
		QueueServers:   append([]domain.QueueServer(nil), o.queueServers...),
		Stats:          o.stats,
	}
	if o.session != nil {
		record := *o.session
		snap.Session = &record
	}
	if o.pendingGame != nil {
		game := *o.pendingGame
		snap.PendingGame = &game
	}
	if o.attachment != nil {
		snap.Attempt = o.attachment.Attempt
	}
	if o.lastEnd != nil {
		end := *o.lastEnd
		snap.LastEnd = &end
	}

	return snap
}
