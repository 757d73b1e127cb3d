package webrtc

import (
	"strings"
	"time"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"
)

type depacketizer interface {
	Unmarshal(payload []byte) ([]byte, error)
}

type passthrough struct{}

func (passthrough) Unmarshal(payload []byte) ([]byte, error) {
	return payload, nil
}

func depacketizerFor(mimeType string) depacketizer {
	if strings.EqualFold(mimeType, webrtc.MimeTypeH264) {
		return &codecs.H264Packet{}
	}
	return passthrough{}
}

// frameAssembler joins the packets of one RTP timestamp into a frame. A frame
// whose marker packet was lost is dropped when the next timestamp starts.
type frameAssembler struct {
	depack  depacketizer
	buf     []byte
	ts      uint32
	started bool
	seq     uint64
}

func newFrameAssembler(mimeType string) *frameAssembler {
	return &frameAssembler{depack: depacketizerFor(mimeType)}
}

func (a *frameAssembler) Push(pkt *rtp.Packet, now time.Time) (domain.Frame, bool) {
	if a.started && pkt.Timestamp != a.ts {
		a.buf = a.buf[:0]
	}
	a.ts = pkt.Timestamp
	a.started = true

	payload, err := a.depack.Unmarshal(pkt.Payload)
	if err != nil {
		a.buf = a.buf[:0]
		a.started = false
		return domain.Frame{}, false
	}
	a.buf = append(a.buf, payload...)

	if !pkt.Marker || len(a.buf) == 0 {
		return domain.Frame{}, false
	}

	a.seq++
	frame := domain.Frame{
		Seq:        a.seq,
		Payload:    append([]byte(nil), a.buf...),
		ReceivedAt: now,
	}
	a.buf = a.buf[:0]
	a.started = false

	return frame, true
}
