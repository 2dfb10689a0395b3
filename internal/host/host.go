// Package host models the platform entry points the shims replace: the
// capability check and the three request-issuing surfaces.
//
// A Platform is a mutable table of the current entry points. Installing a shim
// swaps an entry for a decorator that keeps a handle to the original, the same
// way a browser global would be replaced in place.
package host

import (
	"context"
	"sync"

	"drm-shim/internal/model"
)

// Error is the error shape the platform itself reports. Shims surface host
// failures unchanged, so applications only ever see this type.
type Error struct {
	Name    string
	Message string
}

func (e *Error) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

// ErrPlatformUnavailable is returned when a required pre-patch entry point does
// not exist on this platform.
var ErrPlatformUnavailable = &Error{
	Name:    "NotSupportedError",
	Message: "no native entry point available on this platform",
}

// AccessRequester is the host capability-check entry point.
type AccessRequester interface {
	RequestAccess(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error)
}

// AccessRequesterFunc adapts a function to AccessRequester.
type AccessRequesterFunc func(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error)

// RequestAccess calls f.
func (f AccessRequesterFunc) RequestAccess(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error) {
	return f(ctx, keySystem, configs)
}

// Fetcher is the promise-style request surface: one call, one eventual result.
type Fetcher interface {
	Fetch(ctx context.Context, req *model.Request) (*model.Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req *model.Request) (*model.Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req *model.Request) (*model.Response, error) {
	return f(ctx, req)
}

// Channel is the request-object surface whose dispatch call carries the
// method, headers and body. A channel is bound to one URL.
type Channel interface {
	URL() string
	Dispatch(ctx context.Context, method string, header model.Header, body []byte, creds model.CredentialsMode) (*model.Response, error)
}

// ChannelFactory opens a channel for rawURL.
type ChannelFactory func(rawURL string) (Channel, error)

// XHRFactory constructs a new callback-driven request object.
type XHRFactory func() XHR

// Platform holds the current entry points. Nil entries are absent on this
// platform.
type Platform struct {
	mu          sync.RWMutex
	access      AccessRequester
	fetch       Fetcher
	newXHR      XHRFactory
	openChannel ChannelFactory
}

// Entries lists the entry points a Platform starts with.
type Entries struct {
	Access      AccessRequester
	Fetch       Fetcher
	NewXHR      XHRFactory
	OpenChannel ChannelFactory
}

// NewPlatform creates a platform with the given native entry points.
func NewPlatform(e Entries) *Platform {
	return &Platform{
		access:      e.Access,
		fetch:       e.Fetch,
		newXHR:      e.NewXHR,
		openChannel: e.OpenChannel,
	}
}

// Access returns the current capability-check entry point, or nil.
func (p *Platform) Access() AccessRequester {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.access
}

// SetAccess replaces the capability-check entry point.
func (p *Platform) SetAccess(a AccessRequester) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.access = a
}

// Fetcher returns the current fetch entry point, or nil.
func (p *Platform) Fetcher() Fetcher {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fetch
}

// SetFetcher replaces the fetch entry point.
func (p *Platform) SetFetcher(f Fetcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetch = f
}

// XHRFactory returns the current XHR constructor, or nil.
func (p *Platform) XHRFactory() XHRFactory {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.newXHR
}

// SetXHRFactory replaces the XHR constructor.
func (p *Platform) SetXHRFactory(f XHRFactory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newXHR = f
}

// ChannelFactory returns the current channel constructor, or nil.
func (p *Platform) ChannelFactory() ChannelFactory {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.openChannel
}

// SetChannelFactory replaces the channel constructor.
func (p *Platform) SetChannelFactory(f ChannelFactory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openChannel = f
}

// RequestAccess calls the current capability-check entry point.
func (p *Platform) RequestAccess(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error) {
	a := p.Access()
	if a == nil {
		return nil, ErrPlatformUnavailable
	}
	return a.RequestAccess(ctx, keySystem, configs)
}

// Fetch calls the current fetch entry point.
func (p *Platform) Fetch(ctx context.Context, req *model.Request) (*model.Response, error) {
	f := p.Fetcher()
	if f == nil {
		return nil, ErrPlatformUnavailable
	}
	return f.Fetch(ctx, req)
}

// NewXHR constructs a request object through the current XHR constructor.
func (p *Platform) NewXHR() (XHR, error) {
	f := p.XHRFactory()
	if f == nil {
		return nil, ErrPlatformUnavailable
	}
	return f(), nil
}

// OpenChannel opens a channel through the current channel constructor.
func (p *Platform) OpenChannel(rawURL string) (Channel, error) {
	f := p.ChannelFactory()
	if f == nil {
		return nil, ErrPlatformUnavailable
	}
	return f(rawURL)
}
