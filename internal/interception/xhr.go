package interception

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"drm-shim/internal/host"
	"drm-shim/internal/model"
)

// XHR wraps the original request-object constructor. Requests on the
// unsupported license path are sent through the original fetch surface, so
// the primary and the fallback dispatch both yield a response whose body is
// read by the response adapter. Every other send is carried out on a fresh
// object from the original constructor.
type XHR struct {
	ic       *Interceptor
	original host.XHRFactory
	fetch    host.Fetcher
	state    *host.XHRState

	mu          sync.Mutex
	id          string
	method      string
	url         string
	fallback    bool
	header      model.Header
	credentials bool
	sent        bool
}

// WrapXHRFactory returns a constructor for wrapped request objects. fetch
// carries the license path and original carries everything else; a nil
// surface makes the sends it would carry fail through OnError with
// host.ErrPlatformUnavailable.
func (ic *Interceptor) WrapXHRFactory(original host.XHRFactory, fetch host.Fetcher) host.XHRFactory {
	return func() host.XHR {
		return &XHR{
			ic:       ic,
			original: original,
			fetch:    fetch,
			state:    host.NewXHRState(),
			header:   model.Header{},
		}
	}
}

// Open records the target. The query rewrite is applied here, so headers set
// afterwards travel with the rewritten URL.
func (x *XHR) Open(method, rawURL string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.sent {
		return host.ErrInvalidState
	}
	x.id = newRequestID()
	x.method = method
	x.url, x.fallback = x.ic.prepare(SurfaceXHR, x.id, rawURL)
	x.header = model.Header{}
	x.state.SetReadyState(host.Opened)
	return nil
}

func (x *XHR) SetRequestHeader(name, value string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state.ReadyState() != host.Opened || x.sent {
		return host.ErrInvalidState
	}
	x.header[name] = value
	return nil
}

func (x *XHR) SetWithCredentials(include bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.credentials = include
}

func (x *XHR) State() *host.XHRState {
	return x.state
}

// Send starts the request on its own goroutine and returns immediately.
func (x *XHR) Send(ctx context.Context, body []byte) error {
	x.mu.Lock()
	if x.state.ReadyState() != host.Opened || x.sent {
		x.mu.Unlock()
		return host.ErrInvalidState
	}
	x.sent = true
	creds := model.CredentialsSameOrigin
	if x.credentials {
		creds = model.CredentialsInclude
	}
	req := model.NewRequest(x.method, x.url, x.header, body, creds)
	req.ID = x.id
	fallback := x.fallback
	x.state.SetReadyState(host.Sent)
	x.mu.Unlock()

	go func() {
		defer x.state.Settle()
		if fallback {
			x.state.Complete(x.ic.settle(ctx, SurfaceXHR, req.ID, req.URL, func(ctx context.Context, rawURL string) (*model.Response, error) {
				return x.fetchURL(ctx, req, rawURL)
			}))
			return
		}
		x.state.Complete(x.dispatch(ctx, req))
	}()
	return nil
}

// fetchURL sends req to rawURL through the original fetch surface.
func (x *XHR) fetchURL(ctx context.Context, req *model.Request, rawURL string) (*model.Response, error) {
	if x.fetch == nil {
		return nil, host.ErrPlatformUnavailable
	}
	return x.fetch.Fetch(ctx, req.WithURL(rawURL))
}

// dispatch sends req on a fresh original request object and waits for it to
// complete. The inner object has already adapted the body, so whichever
// representation it delivered is passed on as the response body.
func (x *XHR) dispatch(ctx context.Context, req *model.Request) (*model.Response, error) {
	if x.original == nil {
		return nil, host.ErrPlatformUnavailable
	}
	inner := x.original()
	if err := inner.Open(req.Method, req.URL); err != nil {
		return nil, err
	}
	for name, value := range req.Header {
		if err := inner.SetRequestHeader(name, value); err != nil {
			return nil, err
		}
	}
	inner.SetWithCredentials(req.Credentials == model.CredentialsInclude)

	s := inner.State()
	var dispatchErr error
	s.OnError = func(err error) { dispatchErr = err }
	if err := inner.Send(ctx, req.Body); err != nil {
		return nil, err
	}
	<-s.Done()

	if dispatchErr != nil {
		return nil, dispatchErr
	}
	body := s.Response()
	if s.ResponseType() != host.ResponseTypeArrayBuffer {
		body = []byte(s.ResponseText())
	}
	return model.NewResponse(s.Status(), nil, body), nil
}

// newRequestID is used for log correlation on surfaces that have no request
// value of their own until dispatch.
func newRequestID() string {
	return uuid.NewString()
}

var _ host.XHR = (*XHR)(nil)
