package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	storememory "github.com/questlabs/walletgate/adapters/store/memory"
	"github.com/questlabs/walletgate/core"
)

const (
	addrOne = "0x1111111111111111111111111111111111111111"
	addrTwo = "0x2222222222222222222222222222222222222222"
)

func TestDeviceGuardAllowsUnboundDevice(t *testing.T) {
	guard := NewDeviceBindingGuard(storememory.NewDeviceStore(), false, zap.NewNop())

	assert.NoError(t, guard.ValidatePairing(context.Background(), "dev-1", addrOne))
}

func TestDeviceGuardBindingIsImmutable(t *testing.T) {
	guard := NewDeviceBindingGuard(storememory.NewDeviceStore(), false, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, guard.Bind(ctx, "dev-1", addrOne))

	// Same pairing again is a no-op.
	assert.NoError(t, guard.ValidatePairing(ctx, "dev-1", addrOne))
	assert.NoError(t, guard.Bind(ctx, "dev-1", addrOne))

	// A different address from the same device is rejected.
	assert.ErrorIs(t, guard.ValidatePairing(ctx, "dev-1", addrTwo), core.ErrDeviceConflict)
	assert.ErrorIs(t, guard.Bind(ctx, "dev-1", addrTwo), core.ErrDeviceConflict)

	// The same address from another device is fine: binding is
	// per-device, not exclusive per wallet.
	assert.NoError(t, guard.Bind(ctx, "dev-2", addrOne))
}

func TestDeviceGuardBypass(t *testing.T) {
	store := storememory.NewDeviceStore()
	guard := NewDeviceBindingGuard(store, true, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, guard.Bind(ctx, "dev-1", addrOne))
	assert.NoError(t, guard.ValidatePairing(ctx, "dev-1", addrTwo))
	assert.NoError(t, guard.Bind(ctx, "dev-1", addrTwo))

	// Bypassed bind writes nothing durable.
	d, err := store.Observe(ctx, "dev-1", time.Now())
	require.NoError(t, err)
	assert.Empty(t, d.BoundAddress)
}

func TestDeviceGuardConcurrentFirstUseSingleWinner(t *testing.T) {
	guard := NewDeviceBindingGuard(storememory.NewDeviceStore(), false, zap.NewNop())
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- guard.Bind(ctx, "dev-1", addrOne) }()
	go func() { errs <- guard.Bind(ctx, "dev-1", addrTwo) }()

	var conflicts, wins int
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			assert.ErrorIs(t, err, core.ErrDeviceConflict)
			conflicts++
		} else {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)
}

func TestDeviceFingerprintPrecedence(t *testing.T) {
	fp := NewDeviceFingerprint()

	assert.Equal(t, "dev-1", fp.Derive(core.RequestMeta{DeviceID: "dev-1", CookieID: "cookie", UserAgent: "ua", IP: "1.2.3.4"}))
	assert.Equal(t, "cookie", fp.Derive(core.RequestMeta{CookieID: "cookie", UserAgent: "ua", IP: "1.2.3.4"}))

	hashed := fp.Derive(core.RequestMeta{UserAgent: "ua", IP: "1.2.3.4"})
	assert.Contains(t, hashed, "fp-")
	// Stable for the same inputs, different for different ones.
	assert.Equal(t, hashed, fp.Derive(core.RequestMeta{UserAgent: "ua", IP: "1.2.3.4"}))
	assert.NotEqual(t, hashed, fp.Derive(core.RequestMeta{UserAgent: "ua", IP: "5.6.7.8"}))
}
