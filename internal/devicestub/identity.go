// Package devicestub fakes the TV platform's identity and system services so
// the shims can run off-device. It performs no negotiation or request
// interception of its own.
package devicestub

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// UserAgentPlatformTag is the token apps look for in the user agent.
const UserAgentPlatformTag = "Web0S"

// Identity is the emulated device information.
type Identity struct {
	ModelName    string            `json:"modelName"`
	Platform     string            `json:"platform"`
	SDKVersion   string            `json:"sdkVersion"`
	DeviceID     string            `json:"deviceId"`
	Country      string            `json:"country"`
	Locale       string            `json:"locale"`
	LaunchParams map[string]string `json:"launchParams"`
}

// DefaultIdentity returns the emulator identity.
func DefaultIdentity() Identity {
	return Identity{
		ModelName:    "Vidaa-Emu",
		Platform:     "vidaajs",
		SDKVersion:   "1.0.0",
		DeviceID:     "vidaademo-0001",
		Country:      "US",
		Locale:       "en-US",
		LaunchParams: map[string]string{},
	}
}

// Validate checks that the identity is complete and its SDK version is a
// semantic version.
func (id Identity) Validate() error {
	if id.ModelName == "" || id.Platform == "" || id.DeviceID == "" {
		return errors.New("device identity requires model name, platform and device id")
	}
	if !semver.IsValid(normalizeVersion(id.SDKVersion)) {
		return fmt.Errorf("invalid sdk version %q", id.SDKVersion)
	}
	return nil
}

// UserAgent appends the platform tag to base unless it is already present.
//
//	"Mozilla/5.0" → "Mozilla/5.0 Web0S/1.0"
func (id Identity) UserAgent(base string) string {
	if strings.Contains(base, UserAgentPlatformTag) {
		return base
	}
	tag := UserAgentPlatformTag + "/" + majorMinor(id.SDKVersion)
	if base == "" {
		return tag
	}
	return base + " " + tag
}

// normalizeVersion adds the "v" prefix semver expects.
func normalizeVersion(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// majorMinor returns "1.0" for "1.0.0", or "1.0" when version is not valid.
func majorMinor(version string) string {
	mm := semver.MajorMinor(normalizeVersion(version))
	if mm == "" {
		return "1.0"
	}
	return strings.TrimPrefix(mm, "v")
}
