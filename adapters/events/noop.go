package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/questlabs/walletgate/ports"
)

// NoopPublisher drops all events; used when no broker is configured.
type NoopPublisher struct{}

func NewNoopPublisher() ports.EventPublisher { return &NoopPublisher{} }

func (NoopPublisher) PublishUserRegistered(context.Context, string, uuid.UUID) error { return nil }
func (NoopPublisher) PublishLogin(context.Context, string, uuid.UUID) error          { return nil }
func (NoopPublisher) PublishLogout(context.Context, uuid.UUID, uuid.UUID) error      { return nil }
func (NoopPublisher) PublishRewardMinted(context.Context, string, string) error      { return nil }
