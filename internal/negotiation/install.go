package negotiation

import (
	"log/slog"

	"drm-shim/internal/host"
	"drm-shim/internal/keysystem"
	"drm-shim/internal/registry"
)

// Install replaces the platform's capability check with the key system policy
// and the fallback ladder, in that order. A second call on the same registry
// is a no-op and reports false.
func Install(reg *registry.Registry, p *host.Platform, policy keysystem.Policy, logger *slog.Logger) (bool, error) {
	installed, err := reg.Install(registry.Negotiation, func() (any, error) {
		original := p.Access()
		if original == nil {
			logger.Warn("no native capability check; negotiation will fail closed")
		}
		n := NewNegotiator(original, logger)
		p.SetAccess(keysystem.NewSubstitutingRequester(n, policy, logger))
		return original, nil
	})
	if err != nil {
		return false, err
	}
	if installed {
		logger.Info("negotiation shim installed",
			slog.String("supported_key_system", policy.Supported()))
	} else {
		logger.Debug("negotiation shim already installed")
	}
	return installed, nil
}
