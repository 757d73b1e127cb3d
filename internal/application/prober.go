package application

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultProbeTimeout = 1500 * time.Millisecond
	DefaultProbePort    = "443"
	DefaultProbeDomain  = "cloudmatchbeta.nvidiagrid.net"
)

type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type ProberConfig struct {
	Timeout time.Duration
	Port    string
	Domain  string
	// Dial defaults to a net.Dialer.
	Dial DialFunc
}

// Prober measures TCP connect latency to every candidate in parallel.
type Prober struct {
	cfg    ProberConfig
	now    func() time.Time
	logger zerolog.Logger
}

func NewProber(cfg ProberConfig, logger zerolog.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.Port == "" {
		cfg.Port = DefaultProbePort
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultProbeDomain
	}
	if cfg.Dial == nil {
		var dialer net.Dialer
		cfg.Dial = dialer.DialContext
	}

	return &Prober{cfg: cfg, now: time.Now, logger: logger}
}

// Probe returns a copy of candidates with Status and Latency filled in. It
// returns once every probe has connected or hit its deadline.
func (p *Prober) Probe(ctx context.Context, candidates []domain.ServerCandidate) []domain.ServerCandidate {
	results := append([]domain.ServerCandidate(nil), candidates...)

	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			latency, ok := p.ping(ctx, results[i].Host(p.cfg.Domain))
			if ok {
				results[i].Status = domain.ServerStatusOnline
				results[i].Latency = latency
			} else {
				results[i].Status = domain.ServerStatusOffline
				results[i].Latency = 0
			}
			metrics.ProbeResultsTotal.WithLabelValues(string(results[i].Status)).Inc()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ProbeQueue probes queue servers; the host label is the lowercased id.
func (p *Prober) ProbeQueue(ctx context.Context, servers []domain.QueueServer) []domain.QueueServer {
	results := append([]domain.QueueServer(nil), servers...)

	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			host := strings.ToLower(results[i].ID) + "." + p.cfg.Domain
			latency, ok := p.ping(ctx, host)
			if ok {
				results[i].Status = domain.ServerStatusOnline
				results[i].Latency = latency
			} else {
				results[i].Status = domain.ServerStatusOffline
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Prober) ping(ctx context.Context, host string) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := p.now()
	conn, err := p.cfg.Dial(ctx, "tcp", net.JoinHostPort(host, p.cfg.Port))
	if err != nil {
		p.logger.Debug().Err(err).Str("host", host).Msg("probe failed")
		return 0, false
	}
	elapsed := p.now().Sub(start)
	_ = conn.Close()

	p.logger.Debug().Str("host", host).Dur("latency", elapsed).Msg("probe ok")
	return elapsed, true
}
