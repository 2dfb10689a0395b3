// Package keysystem decides which DRM key system is actually used when an
// application asks for one the platform cannot serve.
//
// The same Policy value must be shared by the capability check and the
// license URL rewrite so both sides of a playback session agree on the
// substitution.
package keysystem

import (
	"strings"

	"drm-shim/internal/model"
)

// Defaults used when a Policy field is empty.
const (
	DefaultUnsupportedToken   = "playready"
	DefaultSupportedKeySystem = model.KeySystemWidevine
)

// Policy substitutes unsupported key systems with a supported one.
type Policy struct {
	// UnsupportedToken is matched case-insensitively as a substring.
	UnsupportedToken string
	// SupportedKeySystem replaces any matching key system.
	SupportedKeySystem string
}

// DefaultPolicy substitutes PlayReady with Widevine.
func DefaultPolicy() Policy {
	return Policy{
		UnsupportedToken:   DefaultUnsupportedToken,
		SupportedKeySystem: DefaultSupportedKeySystem,
	}
}

func (p Policy) token() string {
	if p.UnsupportedToken == "" {
		return DefaultUnsupportedToken
	}
	return strings.ToLower(p.UnsupportedToken)
}

// Supported returns the key system substituted for unsupported ones.
func (p Policy) Supported() string {
	if p.SupportedKeySystem == "" {
		return DefaultSupportedKeySystem
	}
	return p.SupportedKeySystem
}

// Matches reports whether keySystem names the unsupported scheme.
func (p Policy) Matches(keySystem string) bool {
	return strings.Contains(strings.ToLower(keySystem), p.token())
}

// Resolve returns the key system to use in place of keySystem.
//
//	com.microsoft.playready          → com.widevine.alpha
//	com.microsoft.playready.recommendation → com.widevine.alpha
//	org.w3.clearkey                  → org.w3.clearkey
func (p Policy) Resolve(keySystem string) string {
	if p.Matches(keySystem) {
		return p.Supported()
	}
	return keySystem
}

// ResolveAll resolves a list. If any element matches, the whole list collapses
// to the single supported key system; otherwise a copy of the input is
// returned.
func (p Policy) ResolveAll(keySystems []string) []string {
	for _, ks := range keySystems {
		if p.Matches(ks) {
			return []string{p.Supported()}
		}
	}
	out := make([]string, len(keySystems))
	copy(out, keySystems)
	return out
}
