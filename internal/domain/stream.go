package domain

import (
	"fmt"
	"time"
)

type StreamSettings struct {
	Resolution          string
	FPS                 int
	Codec               string
	MaxBitrateMbps      int
	SelectedServer      string
	AutoServerSelection bool
}

func DefaultStreamSettings() StreamSettings {
	return StreamSettings{
		Resolution:          "1920x1080",
		FPS:                 60,
		Codec:               "H264",
		MaxBitrateMbps:      50,
		AutoServerSelection: true,
	}
}

type OutcomeKind string

const (
	OutcomeNormal        OutcomeKind = "normal"
	OutcomeError         OutcomeKind = "error"
	OutcomeDiscontinuity OutcomeKind = "discontinuity"
)

// StreamOutcome is how one transport attempt ended. Stall is only set for
// discontinuities.
type StreamOutcome struct {
	Kind   OutcomeKind
	Reason string
	Stall  time.Duration
}

func NormalEnd() StreamOutcome {
	return StreamOutcome{Kind: OutcomeNormal}
}

func StreamError(reason string) StreamOutcome {
	return StreamOutcome{Kind: OutcomeError, Reason: reason}
}

func Discontinuity(stall time.Duration) StreamOutcome {
	return StreamOutcome{Kind: OutcomeDiscontinuity, Stall: stall}
}

func (o StreamOutcome) String() string {
	switch o.Kind {
	case OutcomeError:
		return fmt.Sprintf("error(%s)", o.Reason)
	case OutcomeDiscontinuity:
		return fmt.Sprintf("discontinuity(%s)", o.Stall)
	default:
		return string(o.Kind)
	}
}

type Frame struct {
	Seq        uint64
	Payload    []byte
	ReceivedAt time.Time
}

type StreamStats struct {
	Packets   uint64
	Bytes     uint64
	Frames    uint64
	Codec     string
	SSRC      uint32
	UpdatedAt time.Time
}

type InputKind string

const (
	InputKey         InputKind = "key"
	InputMouseMove   InputKind = "mouse_move"
	InputMouseButton InputKind = "mouse_button"
	InputGamepad     InputKind = "gamepad"
)

type InputEvent struct {
	Kind    InputKind
	Code    uint16
	Pressed bool
	DX      int16
	DY      int16
}
