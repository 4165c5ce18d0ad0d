package service

import (
	"strings"

	"github.com/questlabs/walletgate/internal/eth"
)

// SignatureVerifier recovers the signer of a personal-sign message.
// The claimed-address comparison is the orchestrator's job; this
// component only distinguishes malformed signatures from valid ones.
type SignatureVerifier struct{}

func NewSignatureVerifier() *SignatureVerifier { return &SignatureVerifier{} }

// Recover returns the lowercase address that signed message, or
// core.ErrInvalidSignatureFormat when the signature bytes are
// malformed.
func (v *SignatureVerifier) Recover(message, signature string) (string, error) {
	addr, err := eth.RecoverAddress(message, signature)
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Hex()), nil
}
