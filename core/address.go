package core

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress canonicalizes a wallet address to its lowercase hex
// form. Every component boundary goes through this function so that
// cache keys, store lookups, and device bindings agree on one spelling.
func NormalizeAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if !common.IsHexAddress(trimmed) {
		return "", ErrMalformedAddress
	}
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return "", ErrMalformedAddress
	}
	return strings.ToLower(trimmed), nil
}
