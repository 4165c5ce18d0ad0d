package service

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/questlabs/walletgate/core"
)

// fingerprintLen bounds the derived id so it stays a compact key.
const fingerprintLen = 32

// DeviceFingerprint derives a stable device identifier from request
// metadata. An explicit client identifier (header, then cookie) wins;
// otherwise the user agent and IP are hashed. The fingerprint is a
// heuristic input to the binding guard, not a security boundary.
type DeviceFingerprint struct{}

func NewDeviceFingerprint() *DeviceFingerprint { return &DeviceFingerprint{} }

func (f *DeviceFingerprint) Derive(meta core.RequestMeta) string {
	if meta.DeviceID != "" {
		return meta.DeviceID
	}
	if meta.CookieID != "" {
		return meta.CookieID
	}
	sum := sha256.Sum256([]byte(meta.UserAgent + "|" + meta.IP))
	return "fp-" + hex.EncodeToString(sum[:])[:fingerprintLen]
}
