package ports

import (
	"context"

	"github.com/bnema/opennow-cli/internal/domain"
)

// FrameSink receives decoded frames; only the newest frame is kept.
type FrameSink interface {
	Write(frame domain.Frame)
}

// StreamResources are the transport-side handles of one streaming attempt.
// A retry always gets a new set.
type StreamResources struct {
	Frames FrameSink
	Stats  chan<- domain.StreamStats
	Input  <-chan domain.InputEvent
}

type MediaTransport interface {
	// Run blocks until the attempt ends and reports how it ended.
	Run(ctx context.Context, record domain.SessionRecord, settings domain.StreamSettings, res StreamResources) domain.StreamOutcome
}

// Signaler exchanges SDP with the session's signaling endpoint.
type Signaler interface {
	Signal(ctx context.Context, record domain.SessionRecord, offerSDP string) (answerSDP string, err error)
}
