package interception

import (
	"context"
	"log/slog"

	"drm-shim/internal/host"
	"drm-shim/internal/model"
)

// Surface names used in log records.
const (
	SurfaceFetch   = "fetch"
	SurfaceXHR     = "xhr"
	SurfaceChannel = "channel"
)

// Interceptor applies Rules to the request surfaces it wraps.
type Interceptor struct {
	rules  Rules
	logger *slog.Logger
}

// New creates an interceptor.
func New(rules Rules, logger *slog.Logger) *Interceptor {
	return &Interceptor{rules: rules, logger: logger}
}

// Rules returns the rules the interceptor applies.
func (ic *Interceptor) Rules() Rules {
	return ic.rules
}

// prepare returns the URL to dispatch first and whether the not-found
// fallback applies to it.
func (ic *Interceptor) prepare(surface, requestID, rawURL string) (string, bool) {
	out, act := ic.rules.classify(rawURL)
	switch act {
	case rewritten:
		ic.logger.Info("rewrote license url key system",
			slog.String("surface", surface),
			slog.String("request_id", requestID),
			slog.String("from", rawURL),
			slog.String("to", out))
	case withFallback:
		ic.logger.Debug("license request eligible for fallback",
			slog.String("surface", surface),
			slog.String("request_id", requestID),
			slog.String("url", rawURL))
	}
	return out, act == withFallback
}

// dispatchFunc sends the caller's request to rawURL through the original
// entry point of one surface.
type dispatchFunc func(ctx context.Context, rawURL string) (*model.Response, error)

// settle dispatches to rawURL and, if the response carries the trigger status,
// discards it and dispatches once more to the fallback target. The second
// dispatch starts only after the first has settled.
func (ic *Interceptor) settle(ctx context.Context, surface, requestID, rawURL string, dispatch dispatchFunc) (*model.Response, error) {
	resp, err := dispatch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !ic.rules.Fallback.Triggered(resp.StatusCode) {
		return resp, nil
	}
	resp.Close()

	target := ic.rules.Fallback.Target(rawURL)
	ic.logger.Warn("license endpoint not found, retrying on fallback path",
		slog.String("surface", surface),
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.String("from", rawURL),
		slog.String("to", target))

	resp, err = dispatch(ctx, target)
	if err != nil {
		ic.logger.Error("fallback license request failed",
			slog.String("surface", surface),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, err
	}
	ic.logger.Info("fallback license request settled",
		slog.String("surface", surface),
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode))
	return resp, nil
}

// Fetcher wraps the original fetch entry point.
type Fetcher struct {
	ic   *Interceptor
	next host.Fetcher
}

// WrapFetcher returns a Fetcher around next. A nil next fails every call with
// host.ErrPlatformUnavailable.
func (ic *Interceptor) WrapFetcher(next host.Fetcher) *Fetcher {
	return &Fetcher{ic: ic, next: next}
}

// Fetch implements host.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, req *model.Request) (*model.Response, error) {
	if f.next == nil {
		return nil, host.ErrPlatformUnavailable
	}

	target, fallback := f.ic.prepare(SurfaceFetch, req.ID, req.URL)
	if target != req.URL {
		req = req.WithURL(target)
	}
	if !fallback {
		return f.next.Fetch(ctx, req)
	}
	return f.ic.settle(ctx, SurfaceFetch, req.ID, req.URL, func(ctx context.Context, rawURL string) (*model.Response, error) {
		if rawURL == req.URL {
			return f.next.Fetch(ctx, req)
		}
		return f.next.Fetch(ctx, req.WithURL(rawURL))
	})
}

var _ host.Fetcher = (*Fetcher)(nil)
