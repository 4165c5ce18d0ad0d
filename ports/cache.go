package ports

import (
	"context"

	"github.com/questlabs/walletgate/core"
)

// ChallengeCache stores the single live challenge per normalized
// address. Expired entries are never returned; implementations purge
// them lazily on lookup and by their own sweep.
type ChallengeCache interface {
	// Get returns the live challenge for address, if any.
	Get(ctx context.Context, address string) (*core.Challenge, bool, error)

	// Add stores ch unless a live entry already exists for its address,
	// and returns whichever entry is live afterwards. The set-if-absent
	// must be atomic so concurrent issuers observe a single winner.
	Add(ctx context.Context, ch *core.Challenge) (*core.Challenge, error)

	Delete(ctx context.Context, address string) error
}
