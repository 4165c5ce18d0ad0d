// Package service contains the wallet authentication business logic:
// challenge issuance, signature verification, device binding, account
// resolution, and session token issuance, sequenced by AuthService.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

// Mint retry budget. The hook runs detached from the request cycle;
// its failure is counted, never surfaced.
const (
	mintAttempts = 3
	mintBackoff  = 500 * time.Millisecond
	mintTimeout  = 15 * time.Second
)

// AuthService sequences the wallet login flow. Within one attempt the
// steps are strictly sequential; the account-creation and
// device-binding writes are the serialization points for concurrent
// attempts on the same address.
type AuthService struct {
	challenges  *ChallengeIssuer
	verifier    *SignatureVerifier
	fingerprint *DeviceFingerprint
	devices     *DeviceBindingGuard
	accounts    *AccountResolver
	tokens      *SessionTokenIssuer
	signer      ports.TokenSigner
	rewards     ports.RewardMinter
	events      ports.EventPublisher
	log         *zap.Logger
}

func NewAuthService(
	challenges *ChallengeIssuer,
	verifier *SignatureVerifier,
	fingerprint *DeviceFingerprint,
	devices *DeviceBindingGuard,
	accounts *AccountResolver,
	tokens *SessionTokenIssuer,
	signer ports.TokenSigner,
	rewards ports.RewardMinter,
	events ports.EventPublisher,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		challenges:  challenges,
		verifier:    verifier,
		fingerprint: fingerprint,
		devices:     devices,
		accounts:    accounts,
		tokens:      tokens,
		signer:      signer,
		rewards:     rewards,
		events:      events,
		log:         log.Named("auth"),
	}
}

// Connect issues (or re-issues, idempotently within the TTL) the
// challenge a wallet must sign for address.
func (s *AuthService) Connect(ctx context.Context, address string) (*core.Challenge, error) {
	normalized, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.challenges.Issue(ctx, normalized)
}

// AuthenticateRequest carries the authenticate submission.
type AuthenticateRequest struct {
	Address   string
	Message   string
	Signature string
	Email     string
	Meta      core.RequestMeta
}

// Authenticate verifies a signed challenge and establishes a session.
// The challenge is deleted only after every step has succeeded, so the
// whole call can be retried with the same signature after a transient
// failure.
func (s *AuthService) Authenticate(ctx context.Context, req AuthenticateRequest) (*core.AuthResult, error) {
	res, err := s.authenticate(ctx, req)
	switch {
	case err == nil:
		authAttempts.WithLabelValues(outcomeSuccess).Inc()
	case errors.Is(err, core.ErrDeviceConflict):
		authAttempts.WithLabelValues(outcomeConflict).Inc()
		deviceConflicts.Inc()
	case errors.Is(err, core.ErrMalformedAddress),
		errors.Is(err, core.ErrInvalidSignatureFormat),
		errors.Is(err, core.ErrSignatureMismatch),
		errors.Is(err, core.ErrChallengeExpired):
		authAttempts.WithLabelValues(outcomeCredential).Inc()
	default:
		authAttempts.WithLabelValues(outcomeError).Inc()
	}
	return res, err
}

func (s *AuthService) authenticate(ctx context.Context, req AuthenticateRequest) (*core.AuthResult, error) {
	address, err := core.NormalizeAddress(req.Address)
	if err != nil {
		return nil, err
	}

	// The submitted message must be exactly the issued challenge;
	// otherwise a signature over an arbitrary message could be replayed
	// as if it answered the challenge.
	challenge, err := s.challenges.Consume(ctx, address)
	if err != nil {
		return nil, err
	}
	if req.Message != challenge.Message {
		return nil, core.ErrChallengeExpired
	}

	recovered, err := s.verifier.Recover(req.Message, req.Signature)
	if err != nil {
		return nil, err
	}
	if recovered != address {
		return nil, core.ErrSignatureMismatch
	}

	deviceID := s.fingerprint.Derive(req.Meta)
	if err := s.devices.ValidatePairing(ctx, deviceID, address); err != nil {
		return nil, err
	}

	user, isNewUser, err := s.accounts.Resolve(ctx, address, req.Email)
	if err != nil {
		return nil, err
	}

	// Durable write; the loser of a concurrent first-use race for this
	// device stops here with a conflict.
	if err := s.devices.Bind(ctx, deviceID, address); err != nil {
		return nil, err
	}

	tokens, sessionID, err := s.tokens.IssueTokens(ctx, user, deviceID, req.Meta)
	if err != nil {
		return nil, err
	}

	s.challenges.Clear(ctx, address)

	if isNewUser {
		go s.mintWelcomeReward(address)
		s.publishRegistered(ctx, address, user.ID)
	}
	s.publishLogin(ctx, address, sessionID)

	s.log.Info("wallet authenticated",
		zap.String("address", address),
		zap.String("user_id", user.ID.String()),
		zap.String("device_id", deviceID),
		zap.Bool("is_new_user", isNewUser))

	return &core.AuthResult{Tokens: tokens, User: user, IsNewUser: isNewUser}, nil
}

// Refresh exchanges a live refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error) {
	return s.tokens.Refresh(ctx, refreshToken)
}

// Logout revokes the session behind a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.tokens.Revoke(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.events.PublishLogout(ctx, session.UserID, session.ID); err != nil {
		s.log.Warn("failed to publish logout event", zap.Error(err))
	}
	return nil
}

// ValidateAccess verifies an access token for the HTTP middleware.
func (s *AuthService) ValidateAccess(_ context.Context, token string) (*core.Identity, error) {
	return s.signer.VerifyAccess(token)
}

// mintWelcomeReward runs the best-effort mint hook detached from the
// request, with a bounded retry budget.
func (s *AuthService) mintWelcomeReward(address string) {
	ctx, cancel := context.WithTimeout(context.Background(), mintTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= mintAttempts; attempt++ {
		txHash, err := s.rewards.MintForNewUser(ctx, address)
		if err == nil {
			if txHash != "" {
				s.log.Info("welcome reward minted",
					zap.String("address", address), zap.String("tx_hash", txHash))
				if err := s.events.PublishRewardMinted(ctx, address, txHash); err != nil {
					s.log.Warn("failed to publish reward event", zap.Error(err))
				}
			}
			return
		}
		lastErr = err
		if attempt < mintAttempts {
			select {
			case <-time.After(mintBackoff):
			case <-ctx.Done():
				attempt = mintAttempts
			}
		}
	}
	rewardMintFailures.Inc()
	s.log.Error("welcome mint failed after retries",
		zap.String("address", address), zap.Error(lastErr))
}

func (s *AuthService) publishRegistered(ctx context.Context, address string, userID uuid.UUID) {
	if err := s.events.PublishUserRegistered(ctx, address, userID); err != nil {
		s.log.Warn("failed to publish registration event", zap.Error(err))
	}
}

func (s *AuthService) publishLogin(ctx context.Context, address string, sessionID uuid.UUID) {
	if sessionID == uuid.Nil {
		return
	}
	if err := s.events.PublishLogin(ctx, address, sessionID); err != nil {
		s.log.Warn("failed to publish login event", zap.Error(err))
	}
}
