package ports

import (
	"context"

	"github.com/bnema/opennow-cli/internal/domain"
)

type SettingsRepository interface {
	Load(ctx context.Context) (domain.StreamSettings, error)
	Save(ctx context.Context, settings domain.StreamSettings) error
}
