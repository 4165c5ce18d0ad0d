package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questlabs/walletgate/core"
)

type DeviceStore struct {
	pool *pgxpool.Pool
}

func NewDeviceStore(pool *pgxpool.Pool) *DeviceStore {
	return &DeviceStore{pool: pool}
}

func (s *DeviceStore) Observe(ctx context.Context, deviceID string, at time.Time) (*core.Device, error) {
	var d core.Device
	var bound *string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO device (id, first_seen_at, last_seen_at, visit_count)
		VALUES ($1, $2, $2, 1)
		ON CONFLICT (id) DO UPDATE
		   SET last_seen_at = EXCLUDED.last_seen_at,
		       visit_count  = device.visit_count + 1
		RETURNING id, first_seen_at, last_seen_at, visit_count, bound_address`,
		deviceID, at,
	).Scan(&d.ID, &d.FirstSeenAt, &d.LastSeenAt, &d.VisitCount, &bound)
	if err != nil {
		return nil, fmt.Errorf("observe device: %w", err)
	}
	if bound != nil {
		d.BoundAddress = *bound
	}
	return &d, nil
}

// BindAddress performs the authoritative check-and-set: the COALESCE
// keeps an existing binding and the RETURNING value tells the loser of
// a concurrent first-use race that the device went to another address.
func (s *DeviceStore) BindAddress(ctx context.Context, deviceID, address string) error {
	var bound string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO device (id, first_seen_at, last_seen_at, visit_count, bound_address)
		VALUES ($1, now(), now(), 1, $2)
		ON CONFLICT (id) DO UPDATE
		   SET bound_address = COALESCE(device.bound_address, EXCLUDED.bound_address)
		RETURNING bound_address`,
		deviceID, address,
	).Scan(&bound)
	if err != nil {
		return fmt.Errorf("bind device: %w", err)
	}
	if bound != address {
		return core.ErrDeviceConflict
	}
	return nil
}
