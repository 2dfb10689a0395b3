package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"drm-shim/internal/model"
)

// HTTPFetcher is the native fetch surface for off-device runs, backed by an
// *http.Client.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher using client, or http.DefaultClient if nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

// Fetch dispatches req. Network failures are reported as a host TypeError,
// which is what the platform's own fetch rejects with.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *model.Request) (*model.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &Error{Name: "TypeError", Message: fmt.Sprintf("invalid request: %v", err)}
	}
	for name, value := range req.Header {
		if req.Credentials == model.CredentialsOmit && isCredentialHeader(name) {
			continue
		}
		httpReq.Header.Set(name, value)
	}

	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return nil, &Error{Name: "TypeError", Message: fmt.Sprintf("network request failed: %v", err)}
	}
	return &model.Response{
		StatusCode: resp.StatusCode,
		Header:     model.HeaderFromHTTP(resp.Header),
		HTTPHeader: resp.Header,
		Body:       resp.Body,
	}, nil
}

func isCredentialHeader(name string) bool {
	return strings.EqualFold(name, "Cookie") || strings.EqualFold(name, "Authorization")
}

// Errors reported synchronously by the native request objects.
var (
	ErrInvalidState = &Error{Name: "InvalidStateError", Message: "request object is not in the required state"}
)

// HTTPXHR is the native callback-driven request object for off-device runs.
// It dispatches through a Fetcher on its own goroutine.
type HTTPXHR struct {
	fetcher Fetcher
	state   *XHRState

	mu          sync.Mutex
	method      string
	url         string
	header      model.Header
	credentials bool
	sent        bool
}

// NewHTTPXHRFactory returns an XHRFactory whose objects dispatch through f.
func NewHTTPXHRFactory(f Fetcher) XHRFactory {
	return func() XHR {
		return &HTTPXHR{fetcher: f, state: NewXHRState(), header: model.Header{}}
	}
}

func (x *HTTPXHR) Open(method, rawURL string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.sent {
		return ErrInvalidState
	}
	x.method = method
	x.url = rawURL
	x.state.SetReadyState(Opened)
	return nil
}

func (x *HTTPXHR) SetRequestHeader(name, value string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state.ReadyState() != Opened || x.sent {
		return ErrInvalidState
	}
	x.header[name] = value
	return nil
}

func (x *HTTPXHR) SetWithCredentials(include bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.credentials = include
}

func (x *HTTPXHR) State() *XHRState {
	return x.state
}

// Send starts the request and returns immediately.
func (x *HTTPXHR) Send(ctx context.Context, body []byte) error {
	x.mu.Lock()
	if x.state.ReadyState() != Opened || x.sent {
		x.mu.Unlock()
		return ErrInvalidState
	}
	x.sent = true
	creds := model.CredentialsSameOrigin
	if x.credentials {
		creds = model.CredentialsInclude
	}
	req := model.NewRequest(x.method, x.url, x.header, body, creds)
	x.state.SetReadyState(Sent)
	x.mu.Unlock()

	go x.run(ctx, req)
	return nil
}

func (x *HTTPXHR) run(ctx context.Context, req *model.Request) {
	defer x.state.Settle()
	x.state.Complete(x.fetcher.Fetch(ctx, req))
}

// HTTPChannel is the native dispatch-carries-payload surface for off-device
// runs. It is bound to one URL and dispatches through a Fetcher.
type HTTPChannel struct {
	fetcher Fetcher
	url     string
}

// NewHTTPChannelFactory returns a ChannelFactory whose channels dispatch
// through f.
func NewHTTPChannelFactory(f Fetcher) ChannelFactory {
	return func(rawURL string) (Channel, error) {
		if rawURL == "" {
			return nil, &Error{Name: "TypeError", Message: "channel URL is required"}
		}
		return &HTTPChannel{fetcher: f, url: rawURL}, nil
	}
}

func (c *HTTPChannel) URL() string { return c.url }

func (c *HTTPChannel) Dispatch(ctx context.Context, method string, header model.Header, body []byte, creds model.CredentialsMode) (*model.Response, error) {
	return c.fetcher.Fetch(ctx, model.NewRequest(method, c.url, header, body, creds))
}

// NewHTTPPlatform builds a platform whose request surfaces all reach the
// network through client. access may be nil when no capability check exists.
func NewHTTPPlatform(client *http.Client, access AccessRequester) *Platform {
	f := NewHTTPFetcher(client)
	return NewPlatform(Entries{
		Access:      access,
		Fetch:       f,
		NewXHR:      NewHTTPXHRFactory(f),
		OpenChannel: NewHTTPChannelFactory(f),
	})
}

// AsError reports whether err is a host error and returns it.
func AsError(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}
