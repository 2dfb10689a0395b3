package interception

import (
	"context"

	"drm-shim/internal/host"
	"drm-shim/internal/model"
)

// WrapChannelFactory returns a channel constructor that rewrites the URL when
// a channel is opened. Channels on the unsupported license path get the
// not-found fallback on every dispatch. A nil original fails every open with
// host.ErrPlatformUnavailable.
func (ic *Interceptor) WrapChannelFactory(original host.ChannelFactory) host.ChannelFactory {
	return func(rawURL string) (host.Channel, error) {
		if original == nil {
			return nil, host.ErrPlatformUnavailable
		}
		target, fallback := ic.prepare(SurfaceChannel, "", rawURL)
		ch, err := original(target)
		if err != nil || !fallback {
			return ch, err
		}
		return &fallbackChannel{Channel: ch, ic: ic, original: original}, nil
	}
}

// fallbackChannel retries a not-found dispatch on a channel opened for the
// fallback URL through the same original constructor.
type fallbackChannel struct {
	host.Channel
	ic       *Interceptor
	original host.ChannelFactory
}

func (c *fallbackChannel) Dispatch(ctx context.Context, method string, header model.Header, body []byte, creds model.CredentialsMode) (*model.Response, error) {
	return c.ic.settle(ctx, SurfaceChannel, newRequestID(), c.URL(), func(ctx context.Context, rawURL string) (*model.Response, error) {
		if rawURL == c.URL() {
			return c.Channel.Dispatch(ctx, method, header, body, creds)
		}
		ch, err := c.original(rawURL)
		if err != nil {
			return nil, err
		}
		return ch.Dispatch(ctx, method, header, body, creds)
	})
}

var _ host.Channel = (*fallbackChannel)(nil)
