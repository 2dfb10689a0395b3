package interception

import (
	"log/slog"

	"drm-shim/internal/host"
	"drm-shim/internal/registry"
)

// Originals are the request surfaces captured before installation.
type Originals struct {
	Fetch       host.Fetcher
	NewXHR      host.XHRFactory
	OpenChannel host.ChannelFactory
}

// Install wraps all three request surfaces of p. A second call on the same
// registry is a no-op and reports false.
func Install(reg *registry.Registry, p *host.Platform, rules Rules, logger *slog.Logger) (bool, error) {
	installed, err := reg.Install(registry.Interception, func() (any, error) {
		orig := Originals{
			Fetch:       p.Fetcher(),
			NewXHR:      p.XHRFactory(),
			OpenChannel: p.ChannelFactory(),
		}
		if orig.Fetch == nil || orig.NewXHR == nil || orig.OpenChannel == nil {
			logger.Warn("some request surfaces are missing; they will fail closed",
				slog.Bool("fetch", orig.Fetch != nil),
				slog.Bool("xhr", orig.NewXHR != nil),
				slog.Bool("channel", orig.OpenChannel != nil))
		}

		ic := New(rules, logger)
		p.SetFetcher(ic.WrapFetcher(orig.Fetch))
		p.SetXHRFactory(ic.WrapXHRFactory(orig.NewXHR, orig.Fetch))
		p.SetChannelFactory(ic.WrapChannelFactory(orig.OpenChannel))
		return orig, nil
	})
	if err != nil {
		return false, err
	}
	if installed {
		logger.Info("request interception installed",
			slog.String("license_url_path", rules.Rewrite.PathPattern),
			slog.String("fallback_from", rules.Fallback.From),
			slog.String("fallback_to", rules.Fallback.To),
			slog.Int("fallback_trigger", rules.Fallback.TriggerStatus))
	} else {
		logger.Debug("request interception already installed")
	}
	return installed, nil
}
