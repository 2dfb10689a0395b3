package devicestub

import (
	"context"
	"log/slog"

	"drm-shim/internal/host"
	"drm-shim/internal/model"
)

// CDM stands in for the platform's capability check during off-device runs.
// It accepts a configuration only when every video capability asks for a
// robustness the key system supports. It never decrypts anything.
type CDM struct {
	accepted map[string]map[model.Robustness]bool
	logger   *slog.Logger
}

// NewCDM creates a capability check that accepts, per key system, the listed
// robustness values. Include model.RobustnessUnset to accept capabilities
// without robustness.
func NewCDM(accepted map[string][]model.Robustness, logger *slog.Logger) *CDM {
	m := make(map[string]map[model.Robustness]bool, len(accepted))
	for ks, levels := range accepted {
		set := make(map[model.Robustness]bool, len(levels))
		for _, r := range levels {
			set[r] = true
		}
		m[ks] = set
	}
	return &CDM{accepted: m, logger: logger}
}

// errUnsupported is the rejection the platform reports.
var errUnsupported = &host.Error{
	Name:    "NotSupportedError",
	Message: "Unsupported keySystem or supportedConfigurations.",
}

// RequestAccess implements host.AccessRequester. The first acceptable
// configuration wins.
func (c *CDM) RequestAccess(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error) {
	levels, ok := c.accepted[keySystem]
	if !ok {
		c.logger.Debug("cdm rejected key system", slog.String("key_system", keySystem))
		return nil, errUnsupported
	}

	for _, cfg := range configs {
		if !acceptable(cfg, levels) {
			continue
		}
		return &model.KeySystemAccess{KeySystem: keySystem, Configuration: cfg.Clone()}, nil
	}
	c.logger.Debug("cdm rejected configurations",
		slog.String("key_system", keySystem),
		slog.Int("configurations", len(configs)))
	return nil, errUnsupported
}

func acceptable(cfg model.KeySystemConfiguration, levels map[model.Robustness]bool) bool {
	for _, r := range cfg.VideoRobustness() {
		if !levels[r] {
			return false
		}
	}
	return true
}

var _ host.AccessRequester = (*CDM)(nil)
