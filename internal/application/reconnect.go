package application

import (
	"context"
	"errors"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/mailbox"
	"github.com/bnema/opennow-cli/internal/metrics"
	"github.com/bnema/opennow-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrManualRestartRequired = errors.New("auto-reconnect failed, please restart the session manually")

type ReconnectConfig struct {
	// Grace is the pause between a discontinuity and the re-attach.
	Grace       time.Duration
	MaxRetries  int
	StatsBuffer int
	InputBuffer int
}

func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Grace:       500 * time.Millisecond,
		MaxRetries:  1,
		StatsBuffer: 8,
		InputBuffer: 64,
	}
}

// ReconnectController runs the transport for a session and re-attaches once
// after a stream discontinuity. The remote session is reused as is.
type ReconnectController struct {
	transport ports.MediaTransport
	box       *mailbox.Mailbox
	clock     ports.Clock
	cfg       ReconnectConfig
	logger    zerolog.Logger
}

func NewReconnectController(transport ports.MediaTransport, box *mailbox.Mailbox, clock ports.Clock, cfg ReconnectConfig, logger zerolog.Logger) *ReconnectController {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	defaults := DefaultReconnectConfig()
	if cfg.Grace <= 0 {
		cfg.Grace = defaults.Grace
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.StatsBuffer <= 0 {
		cfg.StatsBuffer = defaults.StatsBuffer
	}
	if cfg.InputBuffer <= 0 {
		cfg.InputBuffer = defaults.InputBuffer
	}

	return &ReconnectController{
		transport: transport,
		box:       box,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

type attemptResources struct {
	frames *mailbox.Slot[domain.Frame]
	stats  chan domain.StreamStats
	input  *mailbox.Forwarder
}

func (c *ReconnectController) newResources() attemptResources {
	return attemptResources{
		frames: mailbox.NewSlot[domain.Frame]("frames"),
		stats:  make(chan domain.StreamStats, c.cfg.StatsBuffer),
		input:  mailbox.NewForwarder(c.cfg.InputBuffer),
	}
}

// release is only called after the transport returned, so nothing writes to
// stats any more.
func (r attemptResources) release() {
	close(r.stats)
	r.input.Close()
}

// Run blocks until streaming ends for good. Every attempt gets fresh
// resources, published through the stream-attach slot; the previous
// attempt's resources are released before the grace period starts.
func (c *ReconnectController) Run(ctx context.Context, record domain.SessionRecord, settings domain.StreamSettings) mailbox.StreamEnd {
	for attempt := 1; ; attempt++ {
		logger := c.logger.With().
			Str("session_id", record.ID).
			Str("attempt_id", uuid.NewString()).
			Int("attempt", attempt).
			Logger()

		res := c.newResources()
		c.box.StreamAttach.Write(mailbox.StreamAttachment{
			Attempt: attempt,
			Frames:  res.frames,
			Stats:   res.stats,
			Input:   res.input,
		})

		logger.Info().Msg("starting stream attempt")
		outcome := c.transport.Run(ctx, record, settings, ports.StreamResources{
			Frames: res.frames,
			Stats:  res.stats,
			Input:  res.input.Events(),
		})
		res.release()

		if outcome.Kind != domain.OutcomeDiscontinuity {
			logger.Info().Str("outcome", outcome.String()).Msg("stream ended")
			return mailbox.StreamEnd{Outcome: outcome, Attempts: attempt}
		}

		if attempt > c.cfg.MaxRetries {
			metrics.ReconnectAttemptsTotal.WithLabelValues("exhausted").Inc()
			logger.Error().Dur("stall", outcome.Stall).Msg("stream discontinuity after re-attach, giving up")
			return mailbox.StreamEnd{Outcome: outcome, Attempts: attempt, Err: ErrManualRestartRequired}
		}

		logger.Warn().Dur("stall", outcome.Stall).Dur("grace", c.cfg.Grace).Msg("stream discontinuity, re-attaching")
		select {
		case <-c.clock.After(c.cfg.Grace):
		case <-ctx.Done():
			return mailbox.StreamEnd{Outcome: domain.NormalEnd(), Attempts: attempt}
		}
		metrics.ReconnectAttemptsTotal.WithLabelValues("retried").Inc()
	}
}
