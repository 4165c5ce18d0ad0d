package ports

import (
	"context"

	"github.com/google/uuid"
)

// EventPublisher notifies other subsystems about auth lifecycle
// events. All publishes are best-effort from the orchestrator's point
// of view.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, address string, userID uuid.UUID) error
	PublishLogin(ctx context.Context, address string, sessionID uuid.UUID) error
	PublishLogout(ctx context.Context, userID, sessionID uuid.UUID) error
	PublishRewardMinted(ctx context.Context, address, txHash string) error
}
