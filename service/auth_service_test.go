package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cachememory "github.com/questlabs/walletgate/adapters/cache/memory"
	"github.com/questlabs/walletgate/adapters/events"
	storememory "github.com/questlabs/walletgate/adapters/store/memory"
	"github.com/questlabs/walletgate/adapters/tokenizer"
	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/internal/eth"
	"github.com/questlabs/walletgate/ports"
)

type testWallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return testWallet{
		key:     key,
		address: strings.ToLower(ethcrypto.PubkeyToAddress(key.PublicKey).Hex()),
	}
}

func (w testWallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := eth.PersonalSign(message, w.key)
	require.NoError(t, err)
	return sig
}

type testEnv struct {
	svc      *AuthService
	sessions *storememory.SessionStore
	minter   *countingMinter
}

// countingMinter records mint calls and can be made to fail.
type countingMinter struct {
	calls atomic.Int32
	fail  bool
}

func (m *countingMinter) MintForNewUser(_ context.Context, _ string) (string, error) {
	m.calls.Add(1)
	if m.fail {
		return "", errors.New("rpc unavailable")
	}
	return "0xdeadbeef", nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, storememory.NewSessionStore(), false)
}

func newTestEnvWith(t *testing.T, sessions ports.SessionStore, bypassDevices bool) *testEnv {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	signer := tokenizer.NewJWTTokenizer(signKey, "walletgate-test")

	users := storememory.NewUserStore()
	log := zap.NewNop()

	env := &testEnv{minter: &countingMinter{}}
	if ms, ok := sessions.(*storememory.SessionStore); ok {
		env.sessions = ms
	}
	env.svc = NewAuthService(
		NewChallengeIssuer(cachememory.New(time.Hour), time.Hour, log),
		NewSignatureVerifier(),
		NewDeviceFingerprint(),
		NewDeviceBindingGuard(storememory.NewDeviceStore(), bypassDevices, log),
		NewAccountResolver(users, "ethereum", log),
		NewSessionTokenIssuer(signer, sessions, users, 5*time.Minute, time.Hour, log),
		signer,
		env.minter,
		events.NewNoopPublisher(),
		log,
	)
	return env
}

func authReq(wallet testWallet, message, signature, deviceID string) AuthenticateRequest {
	return AuthenticateRequest{
		Address:   wallet.address,
		Message:   message,
		Signature: signature,
		Meta:      core.RequestMeta{DeviceID: deviceID, UserAgent: "test-agent", IP: "10.0.0.1"},
	}
}

func TestAuthenticateEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	challenge, err := env.svc.Connect(ctx, wallet.address)
	require.NoError(t, err)

	res, err := env.svc.Authenticate(ctx, authReq(wallet, challenge.Message, wallet.sign(t, challenge.Message), "dev-1"))
	require.NoError(t, err)
	assert.True(t, res.IsNewUser)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	require.NotNil(t, res.User)

	identity, err := env.svc.ValidateAccess(ctx, res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, identity.UserID)

	recorded := env.sessions.ForUser(res.User.ID)
	require.Len(t, recorded, 1)
	assert.Equal(t, "dev-1", recorded[0].DeviceID)
	assert.Equal(t, "10.0.0.1", recorded[0].IPAddress)

	// New-user mint hook fired off the critical path.
	assert.Eventually(t, func() bool { return env.minter.calls.Load() >= 1 },
		time.Second, 10*time.Millisecond)
}

func TestAuthenticateSecondLoginIsNotNewUser(t *testing.T) {
	env := newTestEnv(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.Connect(ctx, wallet.address)
	require.NoError(t, err)
	first, err := env.svc.Authenticate(ctx, authReq(wallet, ch.Message, wallet.sign(t, ch.Message), "dev-1"))
	require.NoError(t, err)

	ch2, err := env.svc.Connect(ctx, wallet.address)
	require.NoError(t, err)
	// The challenge was cleared on success; a new one is issued.
	assert.NotEqual(t, ch.Message, ch2.Message)

	second, err := env.svc.Authenticate(ctx, authReq(wallet, ch2.Message, wallet.sign(t, ch2.Message), "dev-1"))
	require.NoError(t, err)
	assert.False(t, second.IsNewUser)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestAuthenticateWrongSigner(t *testing.T) {
	env := newTestEnv(t)
	wallet := newTestWallet(t)
	intruder := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.Connect(ctx, wallet.address)
	require.NoError(t, err)

	// Signed by a different key but claiming wallet's address.
	_, err = env.svc.Authenticate(ctx, authReq(wallet, ch.Message, intruder.sign(t, ch.Message), "dev-1"))
	assert.ErrorIs(t, err, core.ErrSignatureMismatch)
}

func TestAuthenticateCorruptedSignature(t *testing.T) {
	env := newTestEnv(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.Connect(ctx, wallet.address)
	require.NoError(t, err)

	_, err = env.svc.Authenticate(ctx, authReq(wallet, ch.Message, "0x1234", "dev-1"))
	assert.ErrorIs(t, err, core.ErrInvalidSignatureFormat)
}

func TestAuthenticateArbitraryMessageRejected(t *testing.T) {
	env := newTestEnv(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	_, err := env.svc.Connect(ctx, wallet.address)
	require.NoError(t, err)

	// A valid signature over a message that is not the issued challenge
	// must not authenticate.
	forged := "Sign this message to authenticate: 1700000000000-aaaa"
	_, err = env.svc.Authenticate(ctx, authReq(wallet, forged, wallet.sign(t, forged), "dev-1"))
	assert.ErrorIs(t, err, core.ErrChallengeExpired)
}

func TestAuthenticateWithoutChallenge(t *testing.T) {
	env := newTestEnv(t)
	wallet := newTestWallet(t)

	msg := "Sign this message to authenticate: 1700000000000-bbbb"
	_, err := env.svc.Authenticate(context.Background(), authReq(wallet, msg, wallet.sign(t, msg), "dev-1"))
	assert.ErrorIs(t, err, core.ErrChallengeExpired)
}

func TestAuthenticateMalformedAddress(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Connect(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, core.ErrMalformedAddress)
}

func TestAuthenticateDeviceBindingInvariant(t *testing.T) {
	env := newTestEnv(t)
	walletA := newTestWallet(t)
	walletB := newTestWallet(t)
	ctx := context.Background()

	// dev-1 authenticates wallet A.
	ch, err := env.svc.Connect(ctx, walletA.address)
	require.NoError(t, err)
	_, err = env.svc.Authenticate(ctx, authReq(walletA, ch.Message, walletA.sign(t, ch.Message), "dev-1"))
	require.NoError(t, err)

	// dev-1 now attempts wallet B: rejected.
	chB, err := env.svc.Connect(ctx, walletB.address)
	require.NoError(t, err)
	_, err = env.svc.Authenticate(ctx, authReq(walletB, chB.Message, walletB.sign(t, chB.Message), "dev-1"))
	assert.ErrorIs(t, err, core.ErrDeviceConflict)

	// The failed attempt kept wallet B's challenge alive; the same
	// signature succeeds from an unbound device.
	res, err := env.svc.Authenticate(ctx, authReq(walletB, chB.Message, walletB.sign(t, chB.Message), "dev-2"))
	require.NoError(t, err)
	assert.True(t, res.IsNewUser)

	// Wallet A from a second device also succeeds: binding is
	// per-device, not exclusive per wallet.
	chA2, err := env.svc.Connect(ctx, walletA.address)
	require.NoError(t, err)
	res, err = env.svc.Authenticate(ctx, authReq(walletA, chA2.Message, walletA.sign(t, chA2.Message), "dev-3"))
	require.NoError(t, err)
	assert.False(t, res.IsNewUser)

	// And dev-1 retrying wallet A still works.
	chA3, err := env.svc.Connect(ctx, walletA.address)
	require.NoError(t, err)
	_, err = env.svc.Authenticate(ctx, authReq(walletA, chA3.Message, walletA.sign(t, chA3.Message), "dev-1"))
	assert.NoError(t, err)
}

func TestAuthenticateDeviceBypass(t *testing.T) {
	env := newTestEnvWith(t, storememory.NewSessionStore(), true)
	walletA := newTestWallet(t)
	walletB := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.Connect(ctx, walletA.address)
	require.NoError(t, err)
	_, err = env.svc.Authenticate(ctx, authReq(walletA, ch.Message, walletA.sign(t, ch.Message), "dev-1"))
	require.NoError(t, err)

	chB, err := env.svc.Connect(ctx, walletB.address)
	require.NoError(t, err)
	_, err = env.svc.Authenticate(ctx, authReq(walletB, chB.Message, walletB.sign(t, chB.Message), "dev-1"))
	assert.NoError(t, err, "bypassed guard never conflicts")
}

// failingSessionStore simulates a session ledger outage.
type failingSessionStore struct{}

func (failingSessionStore) Create(context.Context, *core.Session) error { return errors.New("down") }
func (failingSessionStore) FindByRefreshHash(context.Context, []byte) (*core.Session, error) {
	return nil, errors.New("down")
}
func (failingSessionStore) Rotate(context.Context, uuid.UUID, []byte, time.Time) error {
	return errors.New("down")
}
func (failingSessionStore) Revoke(context.Context, uuid.UUID) error { return errors.New("down") }

func TestAuthenticateSucceedsWhenSessionPersistFails(t *testing.T) {
	env := newTestEnvWith(t, failingSessionStore{}, false)
	wallet := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.Connect(ctx, wallet.address)
	require.NoError(t, err)

	res, err := env.svc.Authenticate(ctx, authReq(wallet, ch.Message, wallet.sign(t, ch.Message), "dev-1"))
	require.NoError(t, err, "session bookkeeping failure must not fail the login")
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
}

func TestAuthenticateSucceedsWhenMintFails(t *testing.T) {
	env := newTestEnv(t)
	env.minter.fail = true
	wallet := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.Connect(ctx, wallet.address)
	require.NoError(t, err)

	res, err := env.svc.Authenticate(ctx, authReq(wallet, ch.Message, wallet.sign(t, ch.Message), "dev-1"))
	require.NoError(t, err, "mint failure is never surfaced to the client")
	assert.True(t, res.IsNewUser)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	wallet := newTestWallet(t)
	ctx := context.Background()

	ch, err := env.svc.Connect(ctx, wallet.address)
	require.NoError(t, err)
	res, err := env.svc.Authenticate(ctx, authReq(wallet, ch.Message, wallet.sign(t, ch.Message), "dev-1"))
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, res.Tokens.RefreshToken))

	_, err = env.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, core.ErrRefreshTokenInvalid)
}
