// Package webrtc receives the session's media over a pion PeerConnection and
// forwards input on a data channel.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	applog "github.com/bnema/opennow-cli/internal/log"
	"github.com/bnema/opennow-cli/internal/ports"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

const (
	defaultGatherTimeout = 10 * time.Second
	defaultStatsInterval = time.Second
	inputChannelLabel    = "input"
)

type Options struct {
	GatherTimeout time.Duration
	StatsInterval time.Duration
	// IncludeLoopback adds loopback ICE candidates, for same-host testing.
	IncludeLoopback bool
}

// Transport implements ports.MediaTransport. Each Run builds its own
// PeerConnection.
type Transport struct {
	signaler ports.Signaler
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

var _ ports.MediaTransport = (*Transport)(nil)

func NewTransport(signaler ports.Signaler, opts Options, logger zerolog.Logger) *Transport {
	if opts.GatherTimeout <= 0 {
		opts.GatherTimeout = defaultGatherTimeout
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = defaultStatsInterval
	}

	return &Transport{
		signaler: signaler,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// attempt is the state of one Run.
type attempt struct {
	t        *Transport
	record   domain.SessionRecord
	res      ports.StreamResources
	logger   zerolog.Logger
	watch    ssrcWatch
	outcome  chan domain.StreamOutcome
	stop     chan struct{}
	endOnce  sync.Once
	statsMu  sync.Mutex
	stats    domain.StreamStats
	lastSent time.Time
}

func (a *attempt) end(outcome domain.StreamOutcome) {
	a.endOnce.Do(func() {
		a.outcome <- outcome
	})
}

func (t *Transport) Run(ctx context.Context, record domain.SessionRecord, settings domain.StreamSettings, res ports.StreamResources) domain.StreamOutcome {
	a := &attempt{
		t:       t,
		record:  record,
		res:     res,
		logger:  t.logger.With().Str(applog.FieldSessionID, record.ID).Logger(),
		outcome: make(chan domain.StreamOutcome, 1),
		stop:    make(chan struct{}),
	}
	a.stats.Codec = settings.Codec

	pc, err := t.newPeerConnection(record)
	if err != nil {
		return domain.StreamError(err.Error())
	}
	defer func() {
		if closeErr := pc.Close(); closeErr != nil {
			a.logger.Debug().Err(closeErr).Msg("close peer connection")
		}
	}()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			go drainTrack(track)
			return
		}
		go a.readVideo(ctx, track)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		a.logger.Debug().Str("state", state.String()).Msg("peer connection state")
		switch state {
		case webrtc.PeerConnectionStateFailed:
			a.end(domain.StreamError("peer connection failed"))
		case webrtc.PeerConnectionStateClosed:
			a.end(domain.NormalEnd())
		}
	})

	input, err := pc.CreateDataChannel(inputChannelLabel, nil)
	if err != nil {
		return domain.StreamError(fmt.Sprintf("create input channel: %v", err))
	}
	inputOpen := make(chan struct{})
	input.OnOpen(func() { close(inputOpen) })

	if err := t.negotiate(ctx, pc, record); err != nil {
		if ctx.Err() != nil {
			return domain.NormalEnd()
		}
		return domain.StreamError(err.Error())
	}

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		a.forwardInput(ctx, input, inputOpen)
	}()
	defer func() {
		close(a.stop)
		<-inputDone
	}()

	select {
	case outcome := <-a.outcome:
		a.logger.Info().Str(applog.FieldOutcome, outcome.String()).Msg("stream attempt ended")
		return outcome
	case <-ctx.Done():
		return domain.NormalEnd()
	}
}

func (t *Transport) newPeerConnection(record domain.SessionRecord) (*webrtc.PeerConnection, error) {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	settingEngine := webrtc.SettingEngine{}
	if t.opts.IncludeLoopback {
		settingEngine.SetIncludeLoopbackCandidate(true)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(media), webrtc.WithSettingEngine(settingEngine))
	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServersFromRecord(record)})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	return pc, nil
}

// negotiate sends a complete (vanilla ICE) offer and applies the answer.
func (t *Transport) negotiate(ctx context.Context, pc *webrtc.PeerConnection, record domain.SessionRecord) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	timer := time.NewTimer(t.opts.GatherTimeout)
	defer timer.Stop()
	select {
	case <-gatherComplete:
	case <-timer.C:
		return fmt.Errorf("ice gathering timed out after %s", t.opts.GatherTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	answer, err := t.signaler.Signal(ctx, record, pc.LocalDescription().SDP)
	if err != nil {
		return fmt.Errorf("signal offer: %w", err)
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	return nil
}

func (a *attempt) readVideo(ctx context.Context, track *webrtc.TrackRemote) {
	assembler := newFrameAssembler(track.Codec().MimeType)
	a.logger.Info().
		Uint32("ssrc", uint32(track.SSRC())).
		Str("codec", track.Codec().MimeType).
		Msg("video track started")

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				a.end(domain.NormalEnd())
				return
			}
			a.end(domain.StreamError(fmt.Sprintf("read video: %v", err)))
			return
		}

		now := a.t.now()
		if stall, switched := a.watch.Observe(pkt.SSRC, now); switched {
			a.logger.Warn().Dur("stall", stall).Uint32("ssrc", pkt.SSRC).Msg("video source switched")
			a.end(domain.Discontinuity(stall))
			return
		}

		a.count(pkt.SSRC, len(pkt.Payload), now)
		if frame, ok := assembler.Push(pkt, now); ok {
			a.res.Frames.Write(frame)
			a.countFrame()
		}
	}
}

func (a *attempt) count(ssrc uint32, size int, now time.Time) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()

	a.stats.Packets++
	a.stats.Bytes += uint64(size)
	a.stats.SSRC = ssrc
	a.stats.UpdatedAt = now

	if now.Sub(a.lastSent) < a.t.opts.StatsInterval {
		return
	}
	select {
	case a.res.Stats <- a.stats:
		a.lastSent = now
	default:
	}
}

func (a *attempt) countFrame() {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()

	a.stats.Frames++
}

func (a *attempt) forwardInput(ctx context.Context, channel *webrtc.DataChannel, open <-chan struct{}) {
	select {
	case <-open:
	case <-ctx.Done():
		return
	case <-a.stop:
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case event, ok := <-a.res.Input:
			if !ok {
				return
			}
			msg, ok := encodeInput(event)
			if !ok {
				continue
			}
			if err := channel.Send(msg); err != nil {
				a.logger.Debug().Err(err).Msg("send input")
				return
			}
		}
	}
}

func drainTrack(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}
