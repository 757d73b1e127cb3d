package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/mailbox"
	"github.com/bnema/opennow-cli/internal/metrics"
	"github.com/bnema/opennow-cli/internal/ports"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultPollInterval     = 2 * time.Second
	DefaultReadySettleCount = 3
	DefaultTerminateSettle  = time.Second
	DefaultQueueServerTTL   = 30 * time.Second
)

var ErrSessionInProgress = errors.New("a session is already in progress")

type OrchestratorConfig struct {
	PollInterval     time.Duration
	ReadySettleCount int
	// TerminateSettle is waited after a successful stop before relaunching.
	TerminateSettle time.Duration
	QueueServerTTL  time.Duration
	// AutoResume resumes the first active session found when no launch is
	// pending.
	AutoResume bool
	// DefaultZone is used when no server is selected.
	DefaultZone string
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PollInterval:     DefaultPollInterval,
		ReadySettleCount: DefaultReadySettleCount,
		TerminateSettle:  DefaultTerminateSettle,
		QueueServerTTL:   DefaultQueueServerTTL,
		AutoResume:       true,
		DefaultZone:      DefaultZone,
	}
}

type Dependencies struct {
	Mailbox   *mailbox.Mailbox
	Tokens    *TokenManager
	Sessions  ports.SessionService
	Catalog   ports.Catalog
	Settings  ports.SettingsRepository
	Prober    *Prober
	Reconnect *ReconnectController
	Runner    *Runner
	Clock     ports.Clock
	Logger    zerolog.Logger
}

// Orchestrator is the session state machine. Tick is the only place that
// consumes mailbox deliveries; entry points only validate and spawn
// background work. A single mutex lets the tick driver and event handlers
// share the instance; it is never held while waiting on I/O.
type Orchestrator struct {
	mu sync.Mutex

	cfg       OrchestratorConfig
	box       *mailbox.Mailbox
	tokens    *TokenManager
	sessions  ports.SessionService
	catalog   ports.Catalog
	settings  ports.SettingsRepository
	prober    *Prober
	reconnect *ReconnectController
	runner    *Runner
	clock     ports.Clock
	logger    zerolog.Logger

	stream  domain.StreamSettings
	servers *ServerDirectory
	regionV uint64

	session    *domain.SessionRecord
	stoppedID  string
	requesting bool
	poller     *rate.Limiter
	readyPolls int

	pendingGame *domain.Game
	conflicts   []domain.ActiveSessionDescriptor

	status    string
	lastError string

	streamCancel context.CancelFunc
	attachment   *mailbox.StreamAttachment
	stats        domain.StreamStats
	lastEnd      *mailbox.StreamEnd

	queueServers   []domain.QueueServer
	queueFetchedAt time.Time
	queueProbing   bool
}

func NewOrchestrator(cfg OrchestratorConfig, deps Dependencies, stream domain.StreamSettings) *Orchestrator {
	defaults := DefaultOrchestratorConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.ReadySettleCount < 0 {
		cfg.ReadySettleCount = defaults.ReadySettleCount
	}
	if cfg.TerminateSettle < 0 {
		cfg.TerminateSettle = 0
	}
	if cfg.QueueServerTTL <= 0 {
		cfg.QueueServerTTL = defaults.QueueServerTTL
	}
	clock := deps.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}

	servers := NewServerDirectory(stream.SelectedServer, stream.AutoServerSelection)
	servers.SetFallbackZone(cfg.DefaultZone)

	return &Orchestrator{
		cfg:       cfg,
		box:       deps.Mailbox,
		tokens:    deps.Tokens,
		sessions:  deps.Sessions,
		catalog:   deps.Catalog,
		settings:  deps.Settings,
		prober:    deps.Prober,
		reconnect: deps.Reconnect,
		runner:    deps.Runner,
		clock:     clock,
		logger:    deps.Logger,
		stream:    stream,
		servers:   servers,
	}
}

// Tick drains the mailbox and advances the state machine. It never blocks
// on I/O.
func (o *Orchestrator) Tick(now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.tokens.Tick(now)
	o.applyRegions()
	o.applyProbeResults()
	o.applyActiveSessions()
	o.applyLaunchProceed()
	o.stepSession(now)
	o.applyStream()
}

// Login adopts a freshly exchanged Credential.
func (o *Orchestrator) Login(cred domain.Credential) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.tokens.Adopt(cred)
}

// Logout drops the Credential and the account caches.
func (o *Orchestrator) Logout() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.tokens.Logout()
	o.resetAttempt()
	o.status = ""
}

// Launch starts a new session for game, surfacing a conflict first when
// the account already owns sessions.
func (o *Orchestrator) Launch(game domain.Game) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	cred, err := o.credential()
	if err != nil {
		return err
	}
	if o.busy() {
		return o.fail(fmt.Errorf("launch %s: %w", game.Title, ErrSessionInProgress))
	}

	o.resetAttempt()
	o.requesting = true
	o.status = "Checking for active sessions..."

	o.runner.Go("launch", func(ctx context.Context) {
		active, err := o.sessions.ListActive(ctx, cred)
		o.box.PendingGame.Write(game)
		if err != nil {
			o.logger.Warn().Err(err).Msg("list active sessions, launching anyway")
			o.box.LaunchProceed.Write(struct{}{})
			return
		}
		if len(active) > 0 {
			o.box.ActiveSessions.Write(active)
			return
		}
		o.box.LaunchProceed.Write(struct{}{})
	})

	return nil
}

// Resume attaches to a session the account already owns.
func (o *Orchestrator) Resume(desc domain.ActiveSessionDescriptor) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.resume(desc)
}

// TerminateAndLaunch stops sessionID and launches game. The stop is best
// effort; the launch goes ahead whatever it returns.
func (o *Orchestrator) TerminateAndLaunch(sessionID string, game domain.Game) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	cred, err := o.credential()
	if err != nil {
		return err
	}

	serverIP := ""
	for _, c := range o.conflicts {
		if c.ID == sessionID {
			serverIP = c.ServerIP
		}
	}
	zone := o.servers.Zone()

	o.resetAttempt()
	o.requesting = true
	o.status = "Terminating existing session..."

	o.runner.Go("terminate-and-launch", func(ctx context.Context) {
		if err := o.sessions.Stop(ctx, cred, sessionID, zone, serverIP); err != nil {
			o.logger.Warn().Err(err).Str("session_id", sessionID).Msg("stop session failed, launching anyway")
		} else {
			select {
			case <-o.clock.After(o.cfg.TerminateSettle):
			case <-ctx.Done():
				return
			}
		}
		o.box.PendingGame.Write(game)
		o.box.LaunchProceed.Write(struct{}{})
	})

	return nil
}

// DismissConflict drops the conflict and the launch that raised it.
func (o *Orchestrator) DismissConflict() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.conflicts = nil
	o.pendingGame = nil
	o.requesting = false
	o.status = ""
}

// CheckActiveSessions looks for sessions owned by the account. With
// AutoResume set, the first one found is resumed.
func (o *Orchestrator) CheckActiveSessions() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	cred, err := o.credential()
	if err != nil {
		return err
	}

	o.runner.Go("check-active-sessions", func(ctx context.Context) {
		active, err := o.sessions.ListActive(ctx, cred)
		if err != nil {
			o.logger.Warn().Err(err).Msg("check active sessions")
			return
		}
		o.logger.Info().Int("count", len(active)).Msg("checked active sessions")
		if len(active) > 0 {
			o.box.ActiveSessions.Write(active)
		}
	})

	return nil
}

// StopStreaming ends the transport and stops the remote session.
func (o *Orchestrator) StopStreaming() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.streamCancel != nil {
		o.streamCancel()
		o.streamCancel = nil
	}
	o.terminateCurrent()
}

// TerminateCurrent stops the tracked remote session, best effort.
func (o *Orchestrator) TerminateCurrent() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.terminateCurrent()
}

// FetchCatalog refreshes games, sections and subscription in the background.
func (o *Orchestrator) FetchCatalog() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	cred, err := o.credential()
	if err != nil {
		return err
	}

	o.runner.Go("fetch-games", func(ctx context.Context) {
		games, err := o.catalog.Games(ctx, cred)
		if err != nil {
			o.logger.Warn().Err(err).Msg("fetch games")
			return
		}
		o.box.Games.Write(games)
	})
	o.runner.Go("fetch-sections", func(ctx context.Context) {
		sections, err := o.catalog.Sections(ctx, cred)
		if err != nil {
			o.logger.Warn().Err(err).Msg("fetch sections")
			return
		}
		o.box.Sections.Write(sections)
	})
	o.runner.Go("fetch-subscription", func(ctx context.Context) {
		sub, err := o.catalog.Subscription(ctx, cred)
		if err != nil {
			o.logger.Warn().Err(err).Msg("fetch subscription")
			return
		}
		o.box.Subscription.Write(sub)
	})

	return nil
}

// LoadServers installs the built-in zones and fetches the dynamic list.
func (o *Orchestrator) LoadServers() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.servers.Replace(DefaultCandidates())
	cred, ok := o.tokens.Current()
	if !ok {
		return
	}

	o.runner.Go("fetch-regions", func(ctx context.Context) {
		regions, err := o.catalog.Regions(ctx, cred)
		if err != nil {
			o.logger.Warn().Err(err).Msg("fetch dynamic regions")
			return
		}
		o.box.Regions.Write(regions)
	})
}

func (o *Orchestrator) StartPingTest() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.startPingTest()
}

// StartQueuePingTest probes the queue servers, refetching the list once it
// is older than the queue TTL.
func (o *Orchestrator) StartQueuePingTest(now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.queueProbing {
		return
	}
	o.queueProbing = true

	cached := append([]domain.QueueServer(nil), o.queueServers...)
	fresh := len(cached) > 0 && now.Sub(o.queueFetchedAt) < o.cfg.QueueServerTTL
	if !fresh {
		o.queueFetchedAt = now
	}

	o.runner.Go("queue-ping", func(ctx context.Context) {
		servers := cached
		if !fresh {
			fetched, err := o.catalog.QueueServers(ctx)
			if err != nil {
				o.logger.Warn().Err(err).Msg("fetch queue servers")
				o.box.QueuePingResults.Write(cached)
				return
			}
			o.box.QueueServers.Write(fetched)
			servers = fetched
		}
		o.box.QueuePingResults.Write(o.prober.ProbeQueue(ctx, servers))
	})
}

// SelectServer pins a zone and turns auto selection off.
func (o *Orchestrator) SelectServer(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.servers.Select(id); err != nil {
		return fmt.Errorf("select server %q: %w", id, err)
	}
	o.persistSelection()

	return nil
}

func (o *Orchestrator) SetAutoServerSelection(auto bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.servers.SetAuto(auto)
	o.persistSelection()
}

// SendInput forwards an input event to the live attempt, if any.
func (o *Orchestrator) SendInput(event domain.InputEvent) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.attachment == nil {
		return false
	}

	return o.attachment.Input.Send(event)
}

// LatestFrame returns the newest frame of the live attempt.
func (o *Orchestrator) LatestFrame() (domain.Frame, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.attachment == nil {
		return domain.Frame{}, false
	}

	return o.attachment.Frames.Take()
}

func (o *Orchestrator) resume(desc domain.ActiveSessionDescriptor) error {
	cred, err := o.credential()
	if err != nil {
		return err
	}
	if !desc.HasServerIP() {
		return o.fail(domain.ErrMissingServerAddress)
	}

	o.resetAttempt()
	o.stoppedID = ""
	o.requesting = true
	o.status = "Resuming session..."
	settings := o.stream

	o.runner.Go("resume", func(ctx context.Context) {
		record, err := o.sessions.Claim(ctx, cred, ports.ClaimSessionRequest{
			SessionID: desc.ID,
			ServerIP:  desc.ServerIP,
			AppID:     desc.AppID,
			Settings:  settings,
		})
		if err != nil {
			o.box.SessionError.Write(fmt.Sprintf("Failed to resume session: %v", err))
			return
		}
		o.box.Session.Write(record)
	})

	return nil
}

func (o *Orchestrator) startNewSession(game domain.Game) {
	cred, err := o.credential()
	if err != nil {
		return
	}

	o.requesting = true
	o.status = fmt.Sprintf("Starting %s...", game.Title)
	zone := o.servers.Zone()
	settings := o.stream

	o.runner.Go("create-session", func(ctx context.Context) {
		linked := game.AccountLinked()
		if details, err := o.sessions.AppDetails(ctx, cred, game.LaunchID()); err != nil {
			o.logger.Debug().Err(err).Str("app_id", game.LaunchID()).Msg("app details unavailable, using cached game info")
		} else {
			linked = details.AccountLinked()
		}

		record, err := o.sessions.Create(ctx, cred, ports.CreateSessionRequest{
			AppID:         game.LaunchID(),
			Title:         game.Title,
			Settings:      settings,
			Zone:          zone,
			AccountLinked: linked,
		})
		if err != nil {
			o.box.SessionError.Write(fmt.Sprintf("Failed to create session: %v", err))
			return
		}
		o.box.Session.Write(record)
	})
}

func (o *Orchestrator) applyRegions() {
	version := o.box.Regions.Version()
	if version == o.regionV {
		return
	}
	o.regionV = version

	regions, ok := o.box.Regions.Peek()
	if !ok || len(regions) == 0 {
		return
	}

	o.servers.Replace(CandidatesFromRegions(regions))
	o.logger.Info().Int("count", len(regions)).Msg("applied dynamic regions")
	o.startPingTest()
}

func (o *Orchestrator) applyProbeResults() {
	if results, ok := o.box.PingResults.Take(); ok {
		o.servers.ApplyResults(results)
	}
	if results, ok := o.box.QueuePingResults.Take(); ok {
		o.queueProbing = false
		o.queueServers = results
	}
}

func (o *Orchestrator) applyActiveSessions() {
	active, ok := o.box.ActiveSessions.Take()
	if !ok || len(active) == 0 {
		return
	}

	if game, ok := o.box.PendingGame.Take(); ok {
		o.pendingGame = &game
		o.conflicts = active
		o.requesting = false
		o.status = fmt.Sprintf("%d active session(s) found", len(active))
		return
	}

	if !o.cfg.AutoResume || o.busy() {
		o.conflicts = active
		return
	}

	o.logger.Info().Str("session_id", active[0].ID).Msg("resuming active session")
	if err := o.resume(active[0]); err != nil {
		o.logger.Warn().Err(err).Msg("auto-resume")
	}
}

func (o *Orchestrator) applyLaunchProceed() {
	if _, ok := o.box.LaunchProceed.Take(); !ok {
		return
	}

	game, ok := o.box.PendingGame.Take()
	if !ok {
		if o.pendingGame == nil {
			return
		}
		game = *o.pendingGame
	}
	o.pendingGame = nil
	o.conflicts = nil
	o.startNewSession(game)
}

func (o *Orchestrator) stepSession(now time.Time) {
	if msg, ok := o.box.SessionError.Take(); ok {
		o.box.Session.Take()
		o.requesting = false
		o.lastError = msg
		o.status = msg
		if o.session != nil {
			failed := *o.session
			failed.Phase = domain.Failed(msg)
			o.session = &failed
		}
		o.logger.Error().Str("error", msg).Msg("session attempt failed")
	}

	if record, ok := o.box.Session.Take(); ok {
		o.adopt(record)
	}

	if o.session == nil || !o.session.Phase.Transient() {
		return
	}

	phase := o.session.Phase
	if phase.Kind == domain.PhaseReady && o.readyPolls >= o.cfg.ReadySettleCount {
		o.beginStreaming()
		return
	}
	o.status = o.describe(phase)

	if !o.poller.AllowN(now, 1) {
		return
	}
	if phase.Kind == domain.PhaseReady {
		o.readyPolls++
		o.status = o.describe(phase)
	}
	o.spawnPoll(*o.session)
}

func (o *Orchestrator) adopt(record domain.SessionRecord) {
	if record.ID != "" && record.ID == o.stoppedID {
		return
	}
	if o.session != nil && o.session.ID == record.ID && o.session.Phase.Kind == domain.PhaseStreaming {
		return
	}
	// Streaming is entered locally after the ready settle polls.
	if record.Phase.Kind == domain.PhaseStreaming {
		record.Phase = domain.Phase(domain.PhaseReady)
	}
	if o.session == nil || o.session.ID != record.ID {
		o.readyPolls = 0
		o.poller = rate.NewLimiter(rate.Every(o.cfg.PollInterval), 1)
	}
	if o.session == nil || o.session.Phase.Kind != record.Phase.Kind {
		metrics.SessionPhaseTransitionsTotal.WithLabelValues(string(record.Phase.Kind)).Inc()
		o.logger.Info().
			Str("session_id", record.ID).
			Str("phase", record.Phase.String()).
			Msg("session phase")
	}

	o.requesting = false
	o.session = &record
	if record.Phase.Kind == domain.PhaseError {
		o.lastError = record.Phase.Message
		o.status = record.Phase.Message
	}
}

func (o *Orchestrator) spawnPoll(record domain.SessionRecord) {
	cred, ok := o.tokens.Current()
	if !ok {
		return
	}

	o.runner.Go("poll-session", func(ctx context.Context) {
		updated, err := o.sessions.Poll(ctx, cred, record.ID, record.Zone, record.ServerIP)
		if err != nil {
			metrics.SessionPollsTotal.WithLabelValues(metrics.ResultFailure).Inc()
			o.logger.Warn().Err(err).Str("session_id", record.ID).Msg("poll session")
			return
		}
		metrics.SessionPollsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		o.box.Session.Write(updated)
	})
}

func (o *Orchestrator) beginStreaming() {
	record := *o.session
	record.Phase = domain.Phase(domain.PhaseStreaming)
	o.session = &record
	o.readyPolls = 0
	o.lastEnd = nil
	metrics.SessionPhaseTransitionsTotal.WithLabelValues(string(domain.PhaseStreaming)).Inc()

	if record.GPUType != "" {
		o.status = fmt.Sprintf("Connecting to GPU: %s", record.GPUType)
	} else {
		o.status = fmt.Sprintf("Connecting to server: %s", record.ServerIP)
	}
	o.logger.Info().
		Str("session_id", record.ID).
		Str("server_ip", record.ServerIP).
		Str("gpu", record.GPUType).
		Msg("session ready, starting stream")

	ctx, cancel := context.WithCancel(o.runner.Context())
	o.streamCancel = cancel
	settings := o.stream
	o.runner.Go("stream", func(context.Context) {
		defer cancel()
		o.box.StreamResult.Write(o.reconnect.Run(ctx, record, settings))
	})
}

func (o *Orchestrator) applyStream() {
	if att, ok := o.box.StreamAttach.Take(); ok {
		o.attachment = &att
		o.stats = domain.StreamStats{}
	}
	if o.attachment != nil {
		o.drainStats()
	}

	end, ok := o.box.StreamResult.Take()
	if !ok {
		return
	}
	o.lastEnd = &end
	o.attachment = nil
	o.streamCancel = nil

	if o.session == nil {
		return
	}
	record := *o.session
	switch {
	case end.Err != nil:
		record.Phase = domain.Failed(end.Err.Error())
		o.lastError = end.Err.Error()
		o.status = record.Phase.Message
	case end.Outcome.Kind == domain.OutcomeError:
		record.Phase = domain.Failed(end.Outcome.Reason)
		o.lastError = end.Outcome.Reason
		o.status = "Stream error: " + end.Outcome.Reason
	default:
		o.session = nil
		o.status = "Stream ended"
		return
	}
	o.session = &record
}

func (o *Orchestrator) drainStats() {
	for {
		select {
		case s, ok := <-o.attachment.Stats:
			if !ok {
				return
			}
			o.stats = s
		default:
			return
		}
	}
}

func (o *Orchestrator) startPingTest() {
	candidates, ok := o.servers.BeginProbe()
	if !ok {
		return
	}

	o.runner.Go("ping-test", func(ctx context.Context) {
		o.box.PingResults.Write(o.prober.Probe(ctx, candidates))
	})
}

func (o *Orchestrator) terminateCurrent() {
	if o.session == nil {
		return
	}
	record := *o.session
	o.session = nil
	o.stoppedID = record.ID
	o.attachment = nil
	o.requesting = false
	o.status = "Session stopped"

	cred, ok := o.tokens.Current()
	if !ok {
		return
	}
	o.runner.Go("stop-session", func(ctx context.Context) {
		if err := o.sessions.Stop(ctx, cred, record.ID, record.Zone, record.ServerIP); err != nil {
			o.logger.Warn().Err(err).Str("session_id", record.ID).Msg("stop session")
		}
	})
}

func (o *Orchestrator) persistSelection() {
	if o.settings == nil {
		return
	}
	o.stream.SelectedServer = o.servers.ManualID()
	o.stream.AutoServerSelection = o.servers.Auto()
	settings := o.stream

	o.runner.Go("save-settings", func(ctx context.Context) {
		if err := o.settings.Save(ctx, settings); err != nil {
			o.logger.Warn().Err(err).Msg("save server selection")
		}
	})
}

func (o *Orchestrator) credential() (domain.Credential, error) {
	cred, ok := o.tokens.Current()
	if !ok {
		return domain.Credential{}, o.fail(domain.ErrNotLoggedIn)
	}

	return cred, nil
}

func (o *Orchestrator) fail(err error) error {
	o.lastError = err.Error()
	o.status = err.Error()

	return err
}

func (o *Orchestrator) busy() bool {
	if o.requesting {
		return true
	}

	return o.session != nil && !o.session.Phase.Terminal() || o.streamCancel != nil
}

func (o *Orchestrator) resetAttempt() {
	o.session = nil
	o.readyPolls = 0
	o.lastError = ""
	o.conflicts = nil
	o.pendingGame = nil
}

func (o *Orchestrator) describe(phase domain.SessionPhase) string {
	switch phase.Kind {
	case domain.PhaseInQueue:
		return fmt.Sprintf("Queue position: %d (ETA: %ds)", phase.QueuePosition, int(phase.QueueETA.Seconds()))
	case domain.PhaseWatchingAds:
		return fmt.Sprintf("Waiting for ads... (~%ds remaining)", int(phase.AdsRemaining.Seconds()))
	case domain.PhaseReady:
		n := o.readyPolls
		if n < 1 {
			n = 1
		}
		return fmt.Sprintf("Session ready, finalizing connection (%d/%d)...", n, o.cfg.ReadySettleCount)
	case domain.PhaseConnecting:
		return "Connecting to server..."
	case domain.PhaseCleaningUp:
		return "Cleaning up previous session..."
	case domain.PhaseWaitingForStorage:
		return "Waiting for storage to be ready..."
	default:
		return "Setting up session..."
	}
}
