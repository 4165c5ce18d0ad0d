package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	storememory "github.com/questlabs/walletgate/adapters/store/memory"
)

func newTestResolver() (*AccountResolver, *storememory.UserStore) {
	store := storememory.NewUserStore()
	return NewAccountResolver(store, "ethereum", zap.NewNop()), store
}

func TestResolveCreatesWalletFirstAccount(t *testing.T) {
	resolver, _ := newTestResolver()

	user, isNew, err := resolver.Resolve(context.Background(), addrOne, "")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, user.IsVerified)
	assert.Empty(t, user.Email)
	assert.Equal(t, "user", user.Role)
}

func TestResolveReturnsExistingAccount(t *testing.T) {
	resolver, _ := newTestResolver()
	ctx := context.Background()

	created, _, err := resolver.Resolve(ctx, addrOne, "")
	require.NoError(t, err)

	again, isNew, err := resolver.Resolve(ctx, addrOne, "")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, again.ID)
}

func TestResolveBackfillsEmailOnce(t *testing.T) {
	resolver, store := newTestResolver()
	ctx := context.Background()

	_, _, err := resolver.Resolve(ctx, addrOne, "")
	require.NoError(t, err)

	user, _, err := resolver.Resolve(ctx, addrOne, "first@example.com")
	require.NoError(t, err)
	assert.Equal(t, "first@example.com", user.Email)

	// A later email never overwrites the stored one.
	user, _, err = resolver.Resolve(ctx, addrOne, "second@example.com")
	require.NoError(t, err)
	assert.Equal(t, "first@example.com", user.Email)

	stored, err := store.FindByWalletAddress(ctx, addrOne)
	require.NoError(t, err)
	assert.Equal(t, "first@example.com", stored.Email)
}

func TestResolveConcurrentFirstConnectSingleAccount(t *testing.T) {
	resolver, store := newTestResolver()
	ctx := context.Background()

	const n = 8
	type result struct {
		id    string
		isNew bool
	}
	results := make([]result, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, isNew, err := resolver.Resolve(ctx, addrOne, "")
			require.NoError(t, err)
			results[i] = result{id: user.ID.String(), isNew: isNew}
		}(i)
	}
	wg.Wait()

	var newCount int
	for _, r := range results {
		assert.Equal(t, results[0].id, r.id, "all callers must see the same account")
		if r.isNew {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount, "exactly one caller creates the account")

	user, err := store.FindByWalletAddress(ctx, addrOne)
	require.NoError(t, err)
	assert.Equal(t, results[0].id, user.ID.String())
}
