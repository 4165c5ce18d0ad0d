// Package events publishes auth lifecycle events for the quiz,
// progress, and notification subsystems.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/questlabs/walletgate/ports"
)

// Topics published by the auth service.
const (
	TopicUserRegistered = "walletgate.user_registered"
	TopicLogin          = "walletgate.login"
	TopicLogout         = "walletgate.logout"
	TopicRewardMinted   = "walletgate.reward_minted"
)

// UserRegisteredEvent signals a wallet-first signup.
type UserRegisteredEvent struct {
	Address    string    `json:"address"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LoginEvent signals a successful authentication.
type LoginEvent struct {
	Address    string    `json:"address"`
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RewardMintedEvent signals a submitted welcome mint.
type RewardMintedEvent struct {
	Address    string    `json:"address"`
	TxHash     string    `json:"tx_hash"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LogoutEvent signals a revoked session.
type LogoutEvent struct {
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher port using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (p *WatermillPublisher) publish(topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := message.NewMessage(key, payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *WatermillPublisher) PublishUserRegistered(_ context.Context, address string, userID uuid.UUID) error {
	return p.publish(TopicUserRegistered, userID.String(), UserRegisteredEvent{
		Address:    address,
		UserID:     userID.String(),
		OccurredAt: time.Now(),
	})
}

func (p *WatermillPublisher) PublishLogin(_ context.Context, address string, sessionID uuid.UUID) error {
	return p.publish(TopicLogin, sessionID.String(), LoginEvent{
		Address:    address,
		SessionID:  sessionID.String(),
		OccurredAt: time.Now(),
	})
}

func (p *WatermillPublisher) PublishRewardMinted(_ context.Context, address, txHash string) error {
	return p.publish(TopicRewardMinted, txHash, RewardMintedEvent{
		Address:    address,
		TxHash:     txHash,
		OccurredAt: time.Now(),
	})
}

func (p *WatermillPublisher) PublishLogout(_ context.Context, userID, sessionID uuid.UUID) error {
	return p.publish(TopicLogout, sessionID.String(), LogoutEvent{
		UserID:     userID.String(),
		SessionID:  sessionID.String(),
		OccurredAt: time.Now(),
	})
}
