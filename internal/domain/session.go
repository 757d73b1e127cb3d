package domain

import (
	"fmt"
	"strings"
	"time"
)

type PhaseKind string

const (
	PhaseRequesting        PhaseKind = "requesting"
	PhaseLaunching         PhaseKind = "launching"
	PhaseConnecting        PhaseKind = "connecting"
	PhaseCleaningUp        PhaseKind = "cleaning_up"
	PhaseWaitingForStorage PhaseKind = "waiting_for_storage"
	PhaseInQueue           PhaseKind = "in_queue"
	PhaseWatchingAds       PhaseKind = "watching_ads"
	PhaseReady             PhaseKind = "ready"
	PhaseStreaming         PhaseKind = "streaming"
	PhaseError             PhaseKind = "error"
)

// SessionPhase is a tagged union. Payload fields are only meaningful for
// the kind that carries them.
type SessionPhase struct {
	Kind          PhaseKind
	QueuePosition int
	QueueETA      time.Duration
	AdsRemaining  time.Duration
	AdsTotal      time.Duration
	Message       string
}

func Phase(kind PhaseKind) SessionPhase {
	return SessionPhase{Kind: kind}
}

func InQueue(position int, eta time.Duration) SessionPhase {
	return SessionPhase{Kind: PhaseInQueue, QueuePosition: position, QueueETA: eta}
}

func WatchingAds(remaining, total time.Duration) SessionPhase {
	return SessionPhase{Kind: PhaseWatchingAds, AdsRemaining: remaining, AdsTotal: total}
}

func Failed(message string) SessionPhase {
	return SessionPhase{Kind: PhaseError, Message: message}
}

func (p SessionPhase) Terminal() bool {
	return p.Kind == PhaseStreaming || p.Kind == PhaseError
}

// Transient phases keep the poll loop running.
func (p SessionPhase) Transient() bool {
	switch p.Kind {
	case PhaseRequesting, PhaseLaunching, PhaseConnecting, PhaseCleaningUp,
		PhaseWaitingForStorage, PhaseInQueue, PhaseWatchingAds, PhaseReady:
		return true
	default:
		return false
	}
}

func (p SessionPhase) String() string {
	switch p.Kind {
	case PhaseInQueue:
		return fmt.Sprintf("%s(position=%d, eta=%s)", p.Kind, p.QueuePosition, p.QueueETA)
	case PhaseWatchingAds:
		return fmt.Sprintf("%s(remaining=%s, total=%s)", p.Kind, p.AdsRemaining, p.AdsTotal)
	case PhaseError:
		return fmt.Sprintf("%s(%s)", p.Kind, p.Message)
	default:
		return string(p.Kind)
	}
}

type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

type SessionRecord struct {
	ID           string
	Zone         string
	ServerIP     string
	GPUType      string
	AppID        string
	SignalingURL string
	ICEServers   []ICEServer
	Phase        SessionPhase
}

func (r SessionRecord) HasServerIP() bool {
	return strings.TrimSpace(r.ServerIP) != ""
}

// ActiveSessionDescriptor is a session owned by the account that may not
// have been started by this client.
type ActiveSessionDescriptor struct {
	ID           string
	AppID        string
	Status       string
	ServerIP     string
	SignalingURL string
}

func (d ActiveSessionDescriptor) HasServerIP() bool {
	return strings.TrimSpace(d.ServerIP) != ""
}
