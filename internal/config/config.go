// Package config loads client settings from config.toml and OPENNOW_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = "opennow"
	envPrefix  = "OPENNOW"

	KeyAuthIssuer       = "auth.issuer"
	KeyAuthClientID     = "auth.client_id"
	KeyAuthListenAddr   = "auth.listen_addr"
	KeyAPIBaseURL       = "api.base_url"
	KeyCatalogBaseURL   = "api.catalog_base_url"
	KeyAPITimeout       = "api.timeout"
	KeyRefreshThreshold = "session.refresh_threshold"
	KeyPollInterval     = "session.poll_interval"
	KeyDefaultZone      = "session.default_zone"
	KeyProbeTimeout     = "probe.timeout"
	KeyProbeDomain      = "probe.domain"
	KeyLogLevel         = "log.level"
	KeyStateDir         = "state.dir"
	KeySecretsBackend   = "secrets.backend"
)

const (
	SecretsBackendChain = "chain"
	SecretsBackendFile  = "file"
)

var (
	ErrMissingClientID   = errors.New("auth.client_id is not configured (set OPENNOW_AUTH_CLIENT_ID)")
	ErrMissingAPIBaseURL = errors.New("api.base_url is not configured (set OPENNOW_API_BASE_URL)")
)

type Config struct {
	Auth    AuthConfig
	API     APIConfig
	Session SessionConfig
	Probe   ProbeConfig
	Log     LogConfig
	// StateDir holds the file store fallback and logs.
	StateDir string
	// SecretsBackend is "chain" (pass, then files) or "file".
	SecretsBackend string
}

type AuthConfig struct {
	Issuer     string
	ClientID   string
	ListenAddr string
}

type APIConfig struct {
	BaseURL        string
	CatalogBaseURL string
	Timeout        time.Duration
}

type SessionConfig struct {
	RefreshThreshold time.Duration
	PollInterval     time.Duration
	DefaultZone      string
}

type ProbeConfig struct {
	Timeout time.Duration
	Domain  string
}

type LogConfig struct {
	Level string
}

// Defaults mirrors the built-in values of the services that consume them.
type Defaults struct {
	Issuer           string
	ListenAddr       string
	APITimeout       time.Duration
	RefreshThreshold time.Duration
	PollInterval     time.Duration
	DefaultZone      string
	ProbeTimeout     time.Duration
	ProbeDomain      string
}

// Load reads config.toml from the user config dir (or the file already set on
// v) and applies environment overrides. A missing file is not an error.
func Load(v *viper.Viper, defaults Defaults) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve config directory: %w", err)
	}
	userStateDir, err := stateHome()
	if err != nil {
		return Config{}, err
	}

	v.SetDefault(KeyAuthIssuer, defaults.Issuer)
	v.SetDefault(KeyAuthListenAddr, defaults.ListenAddr)
	v.SetDefault(KeyAPITimeout, defaults.APITimeout)
	v.SetDefault(KeyRefreshThreshold, defaults.RefreshThreshold)
	v.SetDefault(KeyPollInterval, defaults.PollInterval)
	v.SetDefault(KeyDefaultZone, defaults.DefaultZone)
	v.SetDefault(KeyProbeTimeout, defaults.ProbeTimeout)
	v.SetDefault(KeyProbeDomain, defaults.ProbeDomain)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyStateDir, filepath.Join(userStateDir, configDir))
	v.SetDefault(KeySecretsBackend, SecretsBackendChain)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(filepath.Join(userConfigDir, configDir))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Auth: AuthConfig{
			Issuer:     strings.TrimSpace(v.GetString(KeyAuthIssuer)),
			ClientID:   strings.TrimSpace(v.GetString(KeyAuthClientID)),
			ListenAddr: strings.TrimSpace(v.GetString(KeyAuthListenAddr)),
		},
		API: APIConfig{
			BaseURL:        strings.TrimSpace(v.GetString(KeyAPIBaseURL)),
			CatalogBaseURL: strings.TrimSpace(v.GetString(KeyCatalogBaseURL)),
			Timeout:        v.GetDuration(KeyAPITimeout),
		},
		Session: SessionConfig{
			RefreshThreshold: v.GetDuration(KeyRefreshThreshold),
			PollInterval:     v.GetDuration(KeyPollInterval),
			DefaultZone:      strings.TrimSpace(v.GetString(KeyDefaultZone)),
		},
		Probe: ProbeConfig{
			Timeout: v.GetDuration(KeyProbeTimeout),
			Domain:  strings.TrimSpace(v.GetString(KeyProbeDomain)),
		},
		Log:            LogConfig{Level: strings.TrimSpace(v.GetString(KeyLogLevel))},
		StateDir:       strings.TrimSpace(v.GetString(KeyStateDir)),
		SecretsBackend: strings.ToLower(strings.TrimSpace(v.GetString(KeySecretsBackend))),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Session.PollInterval < 0 {
		return errors.New("session.poll_interval must not be negative")
	}
	if c.Session.RefreshThreshold < 0 {
		return errors.New("session.refresh_threshold must not be negative")
	}
	if c.Probe.Timeout < 0 {
		return errors.New("probe.timeout must not be negative")
	}
	if c.StateDir == "" {
		return errors.New("state.dir is empty")
	}
	if c.SecretsBackend != SecretsBackendChain && c.SecretsBackend != SecretsBackendFile {
		return fmt.Errorf("secrets.backend %q is not one of %q, %q", c.SecretsBackend, SecretsBackendChain, SecretsBackendFile)
	}

	return nil
}

// RequireLogin checks the settings the login flow needs.
func (c Config) RequireLogin() error {
	if c.Auth.ClientID == "" {
		return ErrMissingClientID
	}
	return nil
}

// RequireAPI checks the settings remote calls need.
func (c Config) RequireAPI() error {
	if c.API.BaseURL == "" {
		return ErrMissingAPIBaseURL
	}
	return nil
}

func stateHome() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".local", "state"), nil
}
