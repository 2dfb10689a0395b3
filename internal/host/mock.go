package host

import (
	"context"
	"net/http"

	"drm-shim/internal/model"
)

// MockAccess implements AccessRequester for testing.
type MockAccess struct {
	RequestAccessFunc func(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error)
}

// RequestAccess calls RequestAccessFunc or accepts the first configuration.
func (m *MockAccess) RequestAccess(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error) {
	if m.RequestAccessFunc != nil {
		return m.RequestAccessFunc(ctx, keySystem, configs)
	}
	if len(configs) == 0 {
		return nil, &Error{Name: "NotSupportedError", Message: "no configurations"}
	}
	return &model.KeySystemAccess{KeySystem: keySystem, Configuration: configs[0].Clone()}, nil
}

// MockFetcher implements Fetcher for testing.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, req *model.Request) (*model.Response, error)
}

// Fetch calls FetchFunc or returns an empty 200 response.
func (m *MockFetcher) Fetch(ctx context.Context, req *model.Request) (*model.Response, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, req)
	}
	return model.NewResponse(http.StatusOK, nil, nil), nil
}

// MockChannel implements Channel for testing.
type MockChannel struct {
	RawURL       string
	DispatchFunc func(ctx context.Context, url, method string, header model.Header, body []byte, creds model.CredentialsMode) (*model.Response, error)
}

func (m *MockChannel) URL() string { return m.RawURL }

// Dispatch calls DispatchFunc with the channel URL or returns an empty 200 response.
func (m *MockChannel) Dispatch(ctx context.Context, method string, header model.Header, body []byte, creds model.CredentialsMode) (*model.Response, error) {
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, m.RawURL, method, header, body, creds)
	}
	return model.NewResponse(http.StatusOK, nil, nil), nil
}

var (
	_ AccessRequester = (*MockAccess)(nil)
	_ Fetcher         = (*MockFetcher)(nil)
	_ Channel         = (*MockChannel)(nil)
)
