package keysystem

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"drm-shim/internal/host"
	"drm-shim/internal/model"
)

func TestResolve(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "playready", in: "com.microsoft.playready", want: model.KeySystemWidevine},
		{name: "playready recommendation", in: "com.microsoft.playready.recommendation", want: model.KeySystemWidevine},
		{name: "mixed case", in: "com.microsoft.PlayReady", want: model.KeySystemWidevine},
		{name: "widevine unchanged", in: model.KeySystemWidevine, want: model.KeySystemWidevine},
		{name: "clearkey unchanged", in: "org.w3.clearkey", want: "org.w3.clearkey"},
		{name: "empty unchanged", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Resolve(tt.in); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveCustomPolicy(t *testing.T) {
	p := Policy{UnsupportedToken: "FairPlay", SupportedKeySystem: "org.w3.clearkey"}
	if got := p.Resolve("com.apple.fps.fairplay"); got != "org.w3.clearkey" {
		t.Errorf("Resolve = %q", got)
	}
	if got := p.Resolve("com.microsoft.playready"); got != "com.microsoft.playready" {
		t.Errorf("Resolve = %q, want unchanged", got)
	}
}

func TestZeroPolicyUsesDefaults(t *testing.T) {
	var p Policy
	if got := p.Resolve("com.microsoft.playready"); got != model.KeySystemWidevine {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolveAll(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "any match collapses",
			in:   []string{"org.w3.clearkey", "com.microsoft.playready"},
			want: []string{model.KeySystemWidevine},
		},
		{
			name: "no match unchanged",
			in:   []string{"org.w3.clearkey", model.KeySystemWidevine},
			want: []string{"org.w3.clearkey", model.KeySystemWidevine},
		},
		{name: "empty", in: []string{}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ResolveAll(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveAll(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseKeySystemsHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    []string
		wantErr bool
	}{
		{
			name:   "strings",
			header: `"com.microsoft.playready", "com.widevine.alpha"`,
			want:   []string{"com.microsoft.playready", "com.widevine.alpha"},
		},
		{
			name:   "token with params",
			header: `com.widevine.alpha;q=1`,
			want:   []string{"com.widevine.alpha"},
		},
		{name: "empty", header: "  ", wantErr: true},
		{name: "inner list", header: `("a" "b")`, wantErr: true},
		{name: "integer member", header: `1`, wantErr: true},
		{name: "malformed", header: `"unterminated`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeySystemsHeader(tt.header)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubstitutingRequester(t *testing.T) {
	var got string
	next := &host.MockAccess{
		RequestAccessFunc: func(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error) {
			got = keySystem
			return &model.KeySystemAccess{KeySystem: keySystem}, nil
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewSubstitutingRequester(next, DefaultPolicy(), logger)

	access, err := r.RequestAccess(context.Background(), model.KeySystemPlayReady, nil)
	if err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}
	if got != model.KeySystemWidevine || access.KeySystem != model.KeySystemWidevine {
		t.Errorf("host saw %q, access %q", got, access.KeySystem)
	}

	r.RequestAccess(context.Background(), "org.w3.clearkey", nil)
	if got != "org.w3.clearkey" {
		t.Errorf("host saw %q, want unchanged", got)
	}
}
