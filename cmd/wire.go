package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	authadapter "github.com/bnema/opennow-cli/internal/adapters/auth"
	"github.com/bnema/opennow-cli/internal/adapters/gfn"
	tomlrepo "github.com/bnema/opennow-cli/internal/adapters/repo/toml"
	chainstore "github.com/bnema/opennow-cli/internal/adapters/store/chain"
	filestore "github.com/bnema/opennow-cli/internal/adapters/store/file"
	"github.com/bnema/opennow-cli/internal/adapters/transport/webrtc"
	"github.com/bnema/opennow-cli/internal/application"
	"github.com/bnema/opennow-cli/internal/config"
	"github.com/bnema/opennow-cli/internal/domain"
	applog "github.com/bnema/opennow-cli/internal/log"
	"github.com/bnema/opennow-cli/internal/mailbox"
	"github.com/bnema/opennow-cli/internal/ports"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	logFileName  = "opennow.log"
	stateDirMode = 0o700
)

type app struct {
	cfg      config.Config
	settings *tomlrepo.Repository
	now      func() time.Time

	logStderr bool
	logger    zerolog.Logger
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New(), config.Defaults{
		Issuer:           authadapter.DefaultIssuer,
		ListenAddr:       "127.0.0.1:0",
		APITimeout:       30 * time.Second,
		RefreshThreshold: application.DefaultRefreshThreshold,
		PollInterval:     application.DefaultPollInterval,
		DefaultZone:      application.DefaultZone,
		ProbeTimeout:     application.DefaultProbeTimeout,
		ProbeDomain:      application.DefaultProbeDomain,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	settings, err := tomlrepo.NewRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire settings repository: %w", err)
	}

	return &app{
		cfg:      cfg,
		settings: settings,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}, nil
}

// setupLogging routes logs to the state dir unless --log-stderr is set, so
// the terminal UI is not interleaved with log lines.
func (a *app) setupLogging(stderr io.Writer) error {
	var out io.Writer = stderr
	if !a.logStderr {
		if err := os.MkdirAll(a.cfg.StateDir, stateDirMode); err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(a.cfg.StateDir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = file
	}

	applog.Configure(applog.Config{Level: a.cfg.Log.Level, Output: out})
	a.logger = applog.WithComponent("cli")

	return nil
}

func (a *app) secretStore() (ports.KVStore, error) {
	root := filepath.Join(a.cfg.StateDir, "secrets")
	if a.cfg.SecretsBackend == config.SecretsBackendFile {
		return filestore.NewStore(root), nil
	}

	store, err := chainstore.NewPassFirstWithFileFallback(root)
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	return store, nil
}

// openMailbox builds a mailbox backed by the configured stores and loads
// the persisted slots. Hydration failures are logged; a missing or corrupt
// entry only means starting from scratch.
func (a *app) openMailbox(ctx context.Context) (*mailbox.Mailbox, error) {
	secrets, err := a.secretStore()
	if err != nil {
		return nil, err
	}

	box := mailbox.New(mailbox.Config{
		Secrets: secrets,
		Cache:   filestore.NewStore(filepath.Join(a.cfg.StateDir, "cache")),
		Logger:  applog.WithComponent("mailbox"),
	})
	if err := box.Hydrate(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("hydrate mailbox")
	}

	return box, nil
}

func (a *app) authenticator() *authadapter.Authenticator {
	return authadapter.NewAuthenticator(authadapter.Config{
		Issuer:     a.cfg.Auth.Issuer,
		ClientID:   a.cfg.Auth.ClientID,
		ListenAddr: a.cfg.Auth.ListenAddr,
		Now:        a.now,
	}, applog.WithComponent("auth"))
}

func (a *app) apiClient() (*gfn.Client, error) {
	if err := a.cfg.RequireAPI(); err != nil {
		return nil, err
	}

	client, err := gfn.NewClient(gfn.Options{
		APIBaseURL:     a.cfg.API.BaseURL,
		CatalogBaseURL: a.cfg.API.CatalogBaseURL,
		Timeout:        a.cfg.API.Timeout,
	}, applog.WithComponent("api"))
	if err != nil {
		return nil, fmt.Errorf("wire api client: %w", err)
	}

	return client, nil
}

// runtime is the object graph behind one command invocation.
type runtime struct {
	box    *mailbox.Mailbox
	runner *application.Runner
	client *gfn.Client
	orch   *application.Orchestrator
	now    func() time.Time
}

func (a *app) newRuntime(ctx context.Context) (*runtime, error) {
	client, err := a.apiClient()
	if err != nil {
		return nil, err
	}
	box, err := a.openMailbox(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := a.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	runner := application.NewRunner(ctx, applog.WithComponent("runner"))
	tokens := application.NewTokenManager(a.authenticator(), box, runner, a.cfg.Session.RefreshThreshold, applog.WithComponent("tokens"))
	prober := application.NewProber(application.ProberConfig{
		Timeout: a.cfg.Probe.Timeout,
		Domain:  a.cfg.Probe.Domain,
	}, applog.WithComponent("prober"))
	transport := webrtc.NewTransport(client.Signaler(), webrtc.Options{}, applog.WithComponent("transport"))
	reconnect := application.NewReconnectController(transport, box, ports.SystemClock{}, application.DefaultReconnectConfig(), applog.WithComponent("reconnect"))

	cfg := application.DefaultOrchestratorConfig()
	cfg.PollInterval = a.cfg.Session.PollInterval
	cfg.DefaultZone = a.cfg.Session.DefaultZone
	cfg.AutoResume = false

	orch := application.NewOrchestrator(cfg, application.Dependencies{
		Mailbox:   box,
		Tokens:    tokens,
		Sessions:  client.Sessions(),
		Catalog:   client.Catalog(),
		Settings:  a.settings,
		Prober:    prober,
		Reconnect: reconnect,
		Runner:    runner,
		Clock:     ports.SystemClock{},
		Logger:    applog.WithComponent("orchestrator"),
	}, stream)

	rt := &runtime{box: box, runner: runner, client: client, orch: orch, now: a.now}
	// The first tick adopts the persisted credential.
	orch.Tick(a.now())

	return rt, nil
}

// credential returns the signed-in credential.
func (r *runtime) credential() (domain.Credential, error) {
	snap := r.orch.Snapshot()
	if !snap.LoggedIn {
		return domain.Credential{}, errNotLoggedIn
	}
	cred, _ := r.box.Tokens.Peek()

	return cred, nil
}

// settle waits for background tasks and applies their results.
func (r *runtime) settle() {
	r.runner.Wait()
	r.orch.Tick(r.now())
}

// shutdown gives in-flight tasks up to grace to finish before cancelling
// them.
func (r *runtime) shutdown(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		r.runner.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
	}
	r.runner.Close()
}

var errNotLoggedIn = fmt.Errorf("%w, run `opennow login` first", domain.ErrNotLoggedIn)
