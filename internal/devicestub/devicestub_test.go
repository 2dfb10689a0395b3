package devicestub

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"drm-shim/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		version string
		base    string
		want    string
	}{
		{name: "append", version: "1.0.0", base: "Mozilla/5.0", want: "Mozilla/5.0 Web0S/1.0"},
		{name: "already tagged", version: "1.0.0", base: "Mozilla/5.0 Web0S/4.0", want: "Mozilla/5.0 Web0S/4.0"},
		{name: "empty base", version: "2.3.1", base: "", want: "Web0S/2.3"},
		{name: "v prefix", version: "v6.1.0", base: "UA", want: "UA Web0S/6.1"},
		{name: "invalid version", version: "latest", base: "UA", want: "UA Web0S/1.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := DefaultIdentity()
			id.SDKVersion = tt.version
			if got := id.UserAgent(tt.base); got != tt.want {
				t.Errorf("UserAgent(%q) = %q, want %q", tt.base, got, tt.want)
			}
		})
	}
}

func TestIdentityValidate(t *testing.T) {
	if err := DefaultIdentity().Validate(); err != nil {
		t.Errorf("default identity: %v", err)
	}

	bad := DefaultIdentity()
	bad.SDKVersion = "one"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid sdk version")
	}

	bad = DefaultIdentity()
	bad.DeviceID = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing device id")
	}
}

func TestServiceRequest(t *testing.T) {
	s := NewService(testLogger())
	got := make(chan ServiceResponse, 1)

	call := s.Request(context.Background(), "luna://com.webos.service.tv.systemproperty", map[string]any{"keys": []string{"modelName"}}, func(r ServiceResponse) {
		got <- r
	})

	select {
	case r := <-got:
		if !r.ReturnValue || r.Data == nil || len(r.Data) != 0 {
			t.Errorf("response = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("onSuccess not called")
	}
	<-call.Done()
}

func TestServiceRequestCancel(t *testing.T) {
	s := NewService(testLogger())
	s.Delay = time.Hour
	called := false

	call := s.Request(context.Background(), "luna://x", nil, func(ServiceResponse) { called = true })
	call.Cancel()
	call.Cancel()

	select {
	case <-call.Done():
	case <-time.After(time.Second):
		t.Fatal("cancelled call did not finish")
	}
	if called {
		t.Error("onSuccess ran after cancel")
	}
}

func TestCDM(t *testing.T) {
	cdm := NewCDM(map[string][]model.Robustness{
		model.KeySystemWidevine: {model.RobustnessSWSecureDecode, model.RobustnessSWSecureCrypto, model.RobustnessUnset},
	}, testLogger())

	withVideo := func(r model.Robustness) model.KeySystemConfiguration {
		return model.KeySystemConfiguration{
			Label:             string(r),
			VideoCapabilities: []model.MediaCapability{{ContentType: "video/mp4", Robustness: r}},
		}
	}

	tests := []struct {
		name      string
		keySystem string
		configs   []model.KeySystemConfiguration
		wantLabel string
		wantErr   bool
	}{
		{
			name:      "hardware rejected",
			keySystem: model.KeySystemWidevine,
			configs:   []model.KeySystemConfiguration{withVideo(model.RobustnessHWSecureAll)},
			wantErr:   true,
		},
		{
			name:      "first acceptable wins",
			keySystem: model.KeySystemWidevine,
			configs:   []model.KeySystemConfiguration{withVideo(model.RobustnessHWSecureAll), withVideo(model.RobustnessSWSecureDecode), withVideo(model.RobustnessUnset)},
			wantLabel: string(model.RobustnessSWSecureDecode),
		},
		{
			name:      "unknown key system",
			keySystem: model.KeySystemPlayReady,
			configs:   []model.KeySystemConfiguration{withVideo(model.RobustnessUnset)},
			wantErr:   true,
		},
		{
			name:      "no configurations",
			keySystem: model.KeySystemWidevine,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access, err := cdm.RequestAccess(context.Background(), tt.keySystem, tt.configs)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", access)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if access.Configuration.Label != tt.wantLabel {
				t.Errorf("accepted %q, want %q", access.Configuration.Label, tt.wantLabel)
			}
		})
	}
}
