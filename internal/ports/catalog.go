package ports

import (
	"context"

	"github.com/bnema/opennow-cli/internal/domain"
)

type Catalog interface {
	Games(ctx context.Context, cred domain.Credential) ([]domain.Game, error)
	Sections(ctx context.Context, cred domain.Credential) ([]domain.GameSection, error)
	Subscription(ctx context.Context, cred domain.Credential) (domain.Subscription, error)
	Regions(ctx context.Context, cred domain.Credential) ([]domain.Region, error)
	QueueServers(ctx context.Context) ([]domain.QueueServer, error)
}
