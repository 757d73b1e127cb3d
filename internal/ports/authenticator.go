package ports

import (
	"context"

	"github.com/bnema/opennow-cli/internal/domain"
)

type Authenticator interface {
	// Exchange trades an authorization code obtained on the loopback port
	// for a Credential.
	Exchange(ctx context.Context, code, verifier string, port int) (domain.Credential, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Credential, error)
}
