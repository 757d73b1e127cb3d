package webrtc

import (
	"encoding/binary"

	"github.com/bnema/opennow-cli/internal/domain"
)

const inputMessageSize = 8

var inputKindCodes = map[domain.InputKind]byte{
	domain.InputKey:         1,
	domain.InputMouseMove:   2,
	domain.InputMouseButton: 3,
	domain.InputGamepad:     4,
}

// encodeInput packs an event as kind, code, pressed, dx, dy in big-endian.
func encodeInput(event domain.InputEvent) ([]byte, bool) {
	kind, ok := inputKindCodes[event.Kind]
	if !ok {
		return nil, false
	}

	msg := make([]byte, inputMessageSize)
	msg[0] = kind
	binary.BigEndian.PutUint16(msg[1:3], event.Code)
	if event.Pressed {
		msg[3] = 1
	}
	binary.BigEndian.PutUint16(msg[4:6], uint16(event.DX))
	binary.BigEndian.PutUint16(msg[6:8], uint16(event.DY))

	return msg, true
}
