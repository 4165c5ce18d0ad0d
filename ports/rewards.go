package ports

import "context"

// RewardMinter requests a best-effort welcome mint for a freshly
// registered wallet. Failures are logged by the caller and never
// surfaced to the authenticating client.
type RewardMinter interface {
	MintForNewUser(ctx context.Context, address string) (txHash string, err error)
}
