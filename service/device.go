package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

// DeviceBindingGuard enforces the one-device-to-one-wallet invariant.
// ValidatePairing is an advisory fail-fast check; the durable
// check-and-set in Bind (backed by the store's atomic upsert) is the
// real enforcer, so the guard is safe under concurrent first-use
// races across service instances.
type DeviceBindingGuard struct {
	store  ports.DeviceStore
	bypass bool
	log    *zap.Logger
}

// NewDeviceBindingGuard creates the guard. bypass disables it
// entirely; the config layer only honors that switch outside prod.
func NewDeviceBindingGuard(store ports.DeviceStore, bypass bool, log *zap.Logger) *DeviceBindingGuard {
	l := log.Named("device")
	if bypass {
		l.Warn("device binding guard bypassed; multi-account deterrence is off")
	}
	return &DeviceBindingGuard{store: store, bypass: bypass, log: l}
}

// ValidatePairing records the device observation and rejects the
// attempt when the device is already bound to a different address.
func (g *DeviceBindingGuard) ValidatePairing(ctx context.Context, deviceID, address string) error {
	if g.bypass {
		return nil
	}

	d, err := g.store.Observe(ctx, deviceID, time.Now())
	if err != nil {
		return fmt.Errorf("observe device: %w", err)
	}
	if d.BoundAddress != "" && d.BoundAddress != address {
		g.log.Info("device conflict",
			zap.String("device_id", deviceID),
			zap.String("bound_address", d.BoundAddress),
			zap.String("claimed_address", address))
		return core.ErrDeviceConflict
	}
	return nil
}

// Bind durably pairs the device with the address. Idempotent for the
// same pairing; the loser of a concurrent race for a fresh device
// receives core.ErrDeviceConflict from the storage layer.
func (g *DeviceBindingGuard) Bind(ctx context.Context, deviceID, address string) error {
	if g.bypass {
		return nil
	}
	if err := g.store.BindAddress(ctx, deviceID, address); err != nil {
		if errors.Is(err, core.ErrDeviceConflict) {
			return core.ErrDeviceConflict
		}
		return fmt.Errorf("bind device: %w", err)
	}
	return nil
}
