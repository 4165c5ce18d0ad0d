// Package eth wraps the go-ethereum primitives used for
// personal-message (EIP-191) signature recovery.
package eth

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/questlabs/walletgate/core"
)

// SignatureLength is the expected byte length of an ECDSA signature
// with its recovery id.
const SignatureLength = 65

// DecodeSignature parses a 0x-prefixed hex signature and normalizes
// the recovery id (wallets emit 27/28, secp256k1 recovery wants 0/1).
func DecodeSignature(signature string) ([]byte, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", core.ErrInvalidSignatureFormat)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes: %w", SignatureLength, core.ErrInvalidSignatureFormat)
	}
	// Copy before mutating the recovery id.
	out := make([]byte, SignatureLength)
	copy(out, sig)
	if out[64] >= 27 {
		out[64] -= 27
	}
	if out[64] > 1 {
		return nil, fmt.Errorf("invalid recovery id: %w", core.ErrInvalidSignatureFormat)
	}
	return out, nil
}

// RecoverAddress recovers the address that produced a personal_sign
// signature over message. The message is hashed with the standard
// "\x19Ethereum Signed Message:\n" prefix before recovery.
func RecoverAddress(message string, signature string) (common.Address, error) {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	hash := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", core.ErrInvalidSignatureFormat)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// PersonalSign signs message with the given key the way a wallet's
// personal_sign does, returning a 0x-prefixed signature with v in
// {27,28}. Used by tests and local tooling.
func PersonalSign(message string, key *ecdsa.PrivateKey) (string, error) {
	hash := accounts.TextHash([]byte(message))
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}
