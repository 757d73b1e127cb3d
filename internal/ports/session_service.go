package ports

import (
	"context"

	"github.com/bnema/opennow-cli/internal/domain"
)

type CreateSessionRequest struct {
	AppID         string
	Title         string
	Settings      domain.StreamSettings
	Zone          string
	AccountLinked bool
}

type ClaimSessionRequest struct {
	SessionID string
	ServerIP  string
	AppID     string
	Settings  domain.StreamSettings
}

// SessionService is the remote session lifecycle API. Every call is
// authenticated with the Credential passed in.
type SessionService interface {
	Create(ctx context.Context, cred domain.Credential, req CreateSessionRequest) (domain.SessionRecord, error)
	Claim(ctx context.Context, cred domain.Credential, req ClaimSessionRequest) (domain.SessionRecord, error)
	Poll(ctx context.Context, cred domain.Credential, sessionID, zone, serverIP string) (domain.SessionRecord, error)
	Stop(ctx context.Context, cred domain.Credential, sessionID, zone, serverIP string) error
	ListActive(ctx context.Context, cred domain.Credential) ([]domain.ActiveSessionDescriptor, error)
	AppDetails(ctx context.Context, cred domain.Credential, appID string) (domain.Game, error)
}
