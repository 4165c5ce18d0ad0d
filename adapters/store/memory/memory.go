// Package memory provides in-memory implementations of the store
// ports for the development profile and tests. The maps are guarded by
// RWMutexes and reproduce the unique-constraint semantics the postgres
// adapter gets from the schema.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/questlabs/walletgate/core"
	"github.com/questlabs/walletgate/ports"
)

// UserStore keeps users and wallets keyed by id and address.
type UserStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*core.UserAccount
	wallets map[string]*core.WalletAccount // normalized address -> wallet
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[uuid.UUID]*core.UserAccount),
		wallets: make(map[string]*core.WalletAccount),
	}
}

func (s *UserStore) FindByWalletAddress(_ context.Context, address string) (*core.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[address]
	if !ok {
		return nil, core.ErrNotFound
	}
	u, ok := s.users[w.UserID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) FindByID(_ context.Context, id uuid.UUID) (*core.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *UserStore) CreateWithWallet(_ context.Context, p ports.CreateUserParams) (*core.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[p.Address]; exists {
		return nil, core.ErrAddressTaken
	}

	now := time.Now()
	user := &core.UserAccount{
		ID:         uuid.New(),
		Email:      p.Email,
		IsVerified: true,
		Role:       core.RoleUser,
		CreatedAt:  now,
	}
	s.users[user.ID] = user
	s.wallets[p.Address] = &core.WalletAccount{
		Address:   p.Address,
		UserID:    user.ID,
		Chain:     p.Chain,
		CreatedAt: now,
	}

	cp := *user
	return &cp, nil
}

func (s *UserStore) SetEmailIfEmpty(_ context.Context, id uuid.UUID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return core.ErrNotFound
	}
	if u.Email == "" {
		u.Email = email
	}
	return nil
}

// DeviceStore keeps device rows keyed by fingerprint.
type DeviceStore struct {
	mu      sync.Mutex
	devices map[string]*core.Device
}

func NewDeviceStore() *DeviceStore {
	return &DeviceStore{devices: make(map[string]*core.Device)}
}

func (s *DeviceStore) Observe(_ context.Context, deviceID string, at time.Time) (*core.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		d = &core.Device{ID: deviceID, FirstSeenAt: at}
		s.devices[deviceID] = d
	}
	d.LastSeenAt = at
	d.VisitCount++

	cp := *d
	return &cp, nil
}

func (s *DeviceStore) BindAddress(_ context.Context, deviceID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		now := time.Now()
		d = &core.Device{ID: deviceID, FirstSeenAt: now, LastSeenAt: now, VisitCount: 1}
		s.devices[deviceID] = d
	}
	switch d.BoundAddress {
	case "":
		d.BoundAddress = address
		return nil
	case address:
		return nil
	default:
		return core.ErrDeviceConflict
	}
}

// SessionStore keeps the session ledger keyed by session id with a
// secondary index on the refresh token hash.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*core.Session
	byHash   map[string]uuid.UUID
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*core.Session),
		byHash:   make(map[string]uuid.UUID),
	}
}

func (s *SessionStore) Create(_ context.Context, sess *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[cp.ID] = &cp
	s.byHash[string(cp.RefreshTokenHash)] = cp.ID
	return nil
}

func (s *SessionStore) FindByRefreshHash(_ context.Context, hash []byte) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[string(hash)]
	if !ok {
		return nil, core.ErrNotFound
	}
	sess, ok := s.sessions[id]
	if !ok || !bytes.Equal(sess.RefreshTokenHash, hash) {
		return nil, core.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *SessionStore) Rotate(_ context.Context, id uuid.UUID, newHash []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return core.ErrNotFound
	}
	delete(s.byHash, string(sess.RefreshTokenHash))
	sess.RefreshTokenHash = append([]byte(nil), newHash...)
	sess.ExpiresAt = expiresAt
	s.byHash[string(newHash)] = id
	return nil
}

func (s *SessionStore) Revoke(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return core.ErrNotFound
	}
	if sess.RevokedAt == nil {
		now := time.Now()
		sess.RevokedAt = &now
	}
	return nil
}

// Get returns a copy of a session by id. Test helper.
func (s *SessionStore) Get(id uuid.UUID) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	cp := *sess
	return &cp, true
}

// ForUser returns copies of all sessions belonging to a user. Test helper.
func (s *SessionStore) ForUser(userID uuid.UUID) []*core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	return out
}
