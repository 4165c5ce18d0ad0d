package rewards

import (
	"context"

	"go.uber.org/zap"

	"github.com/questlabs/walletgate/ports"
)

// NoopMinter is used when rewards are disabled (dev/test profiles).
type NoopMinter struct {
	log *zap.Logger
}

func NewNoopMinter(log *zap.Logger) ports.RewardMinter {
	return &NoopMinter{log: log.Named("rewards")}
}

func (m *NoopMinter) MintForNewUser(_ context.Context, address string) (string, error) {
	m.log.Debug("reward minting disabled, skipping", zap.String("address", address))
	return "", nil
}
