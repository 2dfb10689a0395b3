// Package model defines the data types shared by the negotiation shim and the
// request interception layer.
package model

// Robustness is the minimum security level requested for a media capability.
type Robustness string

// Robustness values, most restrictive first. RobustnessUnset means the
// attribute is absent from the capability.
const (
	RobustnessHWSecureAll    Robustness = "HW_SECURE_ALL"
	RobustnessHWSecureCrypto Robustness = "HW_SECURE_CRYPTO"
	RobustnessHWSecureDecode Robustness = "HW_SECURE_DECODE"
	RobustnessSWSecureDecode Robustness = "SW_SECURE_DECODE"
	RobustnessSWSecureCrypto Robustness = "SW_SECURE_CRYPTO"
	RobustnessUnset          Robustness = ""
)

// RobustnessLevels is the fixed order in which fallback candidates are tried.
var RobustnessLevels = []Robustness{
	RobustnessHWSecureAll,
	RobustnessHWSecureCrypto,
	RobustnessHWSecureDecode,
	RobustnessSWSecureDecode,
	RobustnessSWSecureCrypto,
	RobustnessUnset,
}

// String returns the wire value, or "<unset>" for the empty robustness.
func (r Robustness) String() string {
	if r == RobustnessUnset {
		return "<unset>"
	}
	return string(r)
}

// Well-known key system identifiers.
const (
	KeySystemWidevine  = "com.widevine.alpha"
	KeySystemPlayReady = "com.microsoft.playready"
)

// MediaCapability describes one audio or video stream the application wants
// to decrypt.
type MediaCapability struct {
	ContentType string     `json:"contentType"`
	Robustness  Robustness `json:"robustness,omitempty"`
}

// KeySystemConfiguration mirrors the configuration dictionary an application
// passes to the host capability check.
type KeySystemConfiguration struct {
	Label                 string            `json:"label,omitempty"`
	InitDataTypes         []string          `json:"initDataTypes,omitempty"`
	AudioCapabilities     []MediaCapability `json:"audioCapabilities,omitempty"`
	VideoCapabilities     []MediaCapability `json:"videoCapabilities,omitempty"`
	DistinctiveIdentifier string            `json:"distinctiveIdentifier,omitempty"`
	PersistentState       string            `json:"persistentState,omitempty"`
	SessionTypes          []string          `json:"sessionTypes,omitempty"`
}

// Clone returns a deep copy. Slices are never shared with the receiver.
func (c KeySystemConfiguration) Clone() KeySystemConfiguration {
	out := c
	out.InitDataTypes = cloneStrings(c.InitDataTypes)
	out.SessionTypes = cloneStrings(c.SessionTypes)
	out.AudioCapabilities = cloneCapabilities(c.AudioCapabilities)
	out.VideoCapabilities = cloneCapabilities(c.VideoCapabilities)
	return out
}

// CloneConfigurations deep-copies a configuration list.
func CloneConfigurations(configs []KeySystemConfiguration) []KeySystemConfiguration {
	if configs == nil {
		return nil
	}
	out := make([]KeySystemConfiguration, len(configs))
	for i := range configs {
		out[i] = configs[i].Clone()
	}
	return out
}

// VideoRobustness returns the robustness values of the video capabilities in order.
func (c KeySystemConfiguration) VideoRobustness() []Robustness {
	out := make([]Robustness, len(c.VideoCapabilities))
	for i, vc := range c.VideoCapabilities {
		out[i] = vc.Robustness
	}
	return out
}

// KeySystemAccess is the accepted (key system, configuration) pair returned by
// a successful capability check.
type KeySystemAccess struct {
	KeySystem     string                 `json:"key_system"`
	Configuration KeySystemConfiguration `json:"configuration"`
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneCapabilities(in []MediaCapability) []MediaCapability {
	if in == nil {
		return nil
	}
	out := make([]MediaCapability, len(in))
	copy(out, in)
	return out
}
