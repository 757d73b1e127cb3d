package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/ports"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errRemote = errors.New("remote unavailable")

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	waited []time.Duration
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// After fires immediately and records the requested duration.
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waited = append(c.waited, d)
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)

	return ch
}

func (c *fakeClock) Waited() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.waited...)
}

type fakeSessions struct {
	mu sync.Mutex

	create     func(req ports.CreateSessionRequest) (domain.SessionRecord, error)
	claim      func(req ports.ClaimSessionRequest) (domain.SessionRecord, error)
	poll       func(sessionID string) (domain.SessionRecord, error)
	stopErr    error
	active     []domain.ActiveSessionDescriptor
	activeErr  error
	appDetails map[string]domain.Game

	creates  []ports.CreateSessionRequest
	claims   []ports.ClaimSessionRequest
	polls    int
	stops    []string
	listings int
}

func (f *fakeSessions) Create(_ context.Context, _ domain.Credential, req ports.CreateSessionRequest) (domain.SessionRecord, error) {
	f.mu.Lock()
	f.creates = append(f.creates, req)
	create := f.create
	f.mu.Unlock()

	if create == nil {
		return domain.SessionRecord{}, errRemote
	}
	return create(req)
}

func (f *fakeSessions) Claim(_ context.Context, _ domain.Credential, req ports.ClaimSessionRequest) (domain.SessionRecord, error) {
	f.mu.Lock()
	f.claims = append(f.claims, req)
	claim := f.claim
	f.mu.Unlock()

	if claim == nil {
		return domain.SessionRecord{}, errRemote
	}
	return claim(req)
}

func (f *fakeSessions) Poll(_ context.Context, _ domain.Credential, sessionID, _, _ string) (domain.SessionRecord, error) {
	f.mu.Lock()
	f.polls++
	poll := f.poll
	f.mu.Unlock()

	if poll == nil {
		return domain.SessionRecord{}, errRemote
	}
	return poll(sessionID)
}

func (f *fakeSessions) Stop(_ context.Context, _ domain.Credential, sessionID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops = append(f.stops, sessionID)
	return f.stopErr
}

func (f *fakeSessions) ListActive(context.Context, domain.Credential) ([]domain.ActiveSessionDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listings++
	return f.active, f.activeErr
}

func (f *fakeSessions) AppDetails(_ context.Context, _ domain.Credential, appID string) (domain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	game, ok := f.appDetails[appID]
	if !ok {
		return domain.Game{}, errRemote
	}
	return game, nil
}

func (f *fakeSessions) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.polls
}

func (f *fakeSessions) Creates() []ports.CreateSessionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]ports.CreateSessionRequest(nil), f.creates...)
}

func (f *fakeSessions) Claims() []ports.ClaimSessionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]ports.ClaimSessionRequest(nil), f.claims...)
}

func (f *fakeSessions) Stops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.stops...)
}

type fakeCatalog struct {
	games   []domain.Game
	regions []domain.Region
	queue   []domain.QueueServer
	err     error

	queueFetches atomic.Int32
}

func (f *fakeCatalog) Games(context.Context, domain.Credential) ([]domain.Game, error) {
	return f.games, f.err
}

func (f *fakeCatalog) Sections(context.Context, domain.Credential) ([]domain.GameSection, error) {
	return nil, f.err
}

func (f *fakeCatalog) Subscription(context.Context, domain.Credential) (domain.Subscription, error) {
	return domain.Subscription{Tier: "PRIORITY"}, f.err
}

func (f *fakeCatalog) Regions(context.Context, domain.Credential) ([]domain.Region, error) {
	return f.regions, f.err
}

func (f *fakeCatalog) QueueServers(context.Context) ([]domain.QueueServer, error) {
	f.queueFetches.Add(1)
	return f.queue, f.err
}

// fakeTransport returns scripted outcomes. With block set, an attempt that
// has no scripted outcome waits for cancellation.
type fakeTransport struct {
	mu       sync.Mutex
	outcomes []domain.StreamOutcome
	block    bool
	runs     []ports.StreamResources
}

func (f *fakeTransport) Run(ctx context.Context, _ domain.SessionRecord, _ domain.StreamSettings, res ports.StreamResources) domain.StreamOutcome {
	f.mu.Lock()
	f.runs = append(f.runs, res)
	var outcome *domain.StreamOutcome
	if len(f.outcomes) > 0 {
		next := f.outcomes[0]
		f.outcomes = f.outcomes[1:]
		outcome = &next
	}
	block := f.block
	f.mu.Unlock()

	if outcome != nil {
		res.Frames.Write(domain.Frame{Seq: 1})
		res.Stats <- domain.StreamStats{Packets: 10}
		return *outcome
	}
	if block {
		<-ctx.Done()
	}
	return domain.NormalEnd()
}

func (f *fakeTransport) Runs() []ports.StreamResources {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]ports.StreamResources(nil), f.runs...)
}

type fakeSettings struct {
	mu    sync.Mutex
	saved []domain.StreamSettings
}

func (f *fakeSettings) Load(context.Context) (domain.StreamSettings, error) {
	return domain.DefaultStreamSettings(), nil
}

func (f *fakeSettings) Save(_ context.Context, settings domain.StreamSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.saved = append(f.saved, settings)
	return nil
}

func (f *fakeSettings) Last() (domain.StreamSettings, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.saved) == 0 {
		return domain.StreamSettings{}, false
	}
	return f.saved[len(f.saved)-1], true
}
