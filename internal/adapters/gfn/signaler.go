package gfn

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bnema/opennow-cli/internal/domain"
	"github.com/bnema/opennow-cli/internal/ports"
)

// Signaler posts the local SDP offer to the session's signaling URL.
type Signaler struct {
	client *Client
}

var _ ports.Signaler = (*Signaler)(nil)

var (
	ErrNoSignalingURL = errors.New("session has no signaling url")
	ErrEmptyAnswer    = errors.New("signaling returned an empty answer")
)

type sdpBody struct {
	Type      string `json:"type"`
	SDP       string `json:"sdp"`
	SessionID string `json:"sessionId,omitempty"`
}

func (s *Signaler) Signal(ctx context.Context, record domain.SessionRecord, offerSDP string) (string, error) {
	endpoint := strings.TrimSpace(record.SignalingURL)
	if endpoint == "" {
		return "", ErrNoSignalingURL
	}
	endpoint = strings.Replace(endpoint, "wss://", "https://", 1)
	endpoint = strings.Replace(endpoint, "ws://", "http://", 1)

	var answer sdpBody
	if err := s.client.do(ctx, request{
		operation: "signal",
		method:    http.MethodPost,
		url:       endpoint,
		body:      sdpBody{Type: "offer", SDP: offerSDP, SessionID: record.ID},
	}, &answer); err != nil {
		return "", err
	}
	if answer.SDP == "" {
		return "", ErrEmptyAnswer
	}

	return answer.SDP, nil
}
