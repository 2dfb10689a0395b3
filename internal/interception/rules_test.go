package interception

import (
	"testing"

	"drm-shim/internal/keysystem"
)

func TestQueryRewriteApply(t *testing.T) {
	q := DefaultRules(keysystem.DefaultPolicy()).Rewrite

	tests := []struct {
		name    string
		in      string
		want    string
		wantHit bool
	}{
		{
			name:    "playready rewritten",
			in:      "https://api.example.com/melody/v1/license_url?keysystem=com.microsoft.playready",
			want:    "https://api.example.com/melody/v1/license_url?keysystem=com.widevine.alpha",
			wantHit: true,
		},
		{
			name:    "other params keep order and encoding",
			in:      "https://api.example.com/melody/v1/license_url?content_id=abc%2F1&keysystem=com.microsoft.playready&token=a+b#frag",
			want:    "https://api.example.com/melody/v1/license_url?content_id=abc%2F1&keysystem=com.widevine.alpha&token=a+b#frag",
			wantHit: true,
		},
		{
			name:    "relative url",
			in:      "/melody/v1/license_url?keysystem=PLAYREADY",
			want:    "/melody/v1/license_url?keysystem=com.widevine.alpha",
			wantHit: true,
		},
		{
			name: "widevine untouched",
			in:   "https://api.example.com/melody/v1/license_url?keysystem=com.widevine.alpha",
			want: "https://api.example.com/melody/v1/license_url?keysystem=com.widevine.alpha",
		},
		{
			name: "other path untouched",
			in:   "https://api.example.com/melody/v2/other?keysystem=com.microsoft.playready",
			want: "https://api.example.com/melody/v2/other?keysystem=com.microsoft.playready",
		},
		{
			name: "pattern only in query untouched",
			in:   "https://api.example.com/x?next=/melody/v1/license_url&keysystem=com.microsoft.playready",
			want: "https://api.example.com/x?next=/melody/v1/license_url&keysystem=com.microsoft.playready",
		},
		{
			name: "no param",
			in:   "https://api.example.com/melody/v1/license_url?drm=com.microsoft.playready",
			want: "https://api.example.com/melody/v1/license_url?drm=com.microsoft.playready",
		},
		{
			name: "no query",
			in:   "https://api.example.com/melody/v1/license_url",
			want: "https://api.example.com/melody/v1/license_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := q.Apply(tt.in)
			if got != tt.want || hit != tt.wantHit {
				t.Errorf("Apply(%q) = %q, %v; want %q, %v", tt.in, got, hit, tt.want, tt.wantHit)
			}
		})
	}
}

func TestQueryRewriteConfigured(t *testing.T) {
	q := QueryRewrite{
		PathPattern: "/drm/resolve",
		Param:       "ks",
		Policy:      keysystem.DefaultPolicy(),
	}
	got, ok := q.Apply("https://h/drm/resolve?ks=com.microsoft.playready&keysystem=com.microsoft.playready")
	want := "https://h/drm/resolve?ks=com.widevine.alpha&keysystem=com.microsoft.playready"
	if !ok || got != want {
		t.Errorf("Apply = %q, %v; want %q", got, ok, want)
	}
}

func TestFallbackPolicy(t *testing.T) {
	f := DefaultRules(keysystem.DefaultPolicy()).Fallback

	tests := []struct {
		name      string
		in        string
		wantMatch bool
		want      string
	}{
		{
			name:      "direct license",
			in:        "https://lic.example.com/playready-license/v1/acquire?cid=1",
			wantMatch: true,
			want:      "https://lic.example.com/widevine-license/v1/acquire?cid=1",
		},
		{
			name:      "first occurrence only",
			in:        "https://lic.example.com/playready-license/playready-license/x",
			wantMatch: true,
			want:      "https://lic.example.com/widevine-license/playready-license/x",
		},
		{
			name:      "query untouched",
			in:        "https://lic.example.com/playready-license/a?back=/playready-license/",
			wantMatch: true,
			want:      "https://lic.example.com/widevine-license/a?back=/playready-license/",
		},
		{
			name: "segment only in query",
			in:   "https://lic.example.com/a?back=/playready-license/",
		},
		{
			name: "widevine path",
			in:   "https://lic.example.com/widevine-license/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Matches(tt.in); got != tt.wantMatch {
				t.Fatalf("Matches = %v, want %v", got, tt.wantMatch)
			}
			if tt.wantMatch {
				if got := f.Target(tt.in); got != tt.want {
					t.Errorf("Target = %q, want %q", got, tt.want)
				}
			}
		})
	}

	if f.Triggered(500) || f.Triggered(200) || !f.Triggered(404) {
		t.Error("only 404 should trigger the fallback")
	}
}

func TestClassifyAtMostOneRule(t *testing.T) {
	r := DefaultRules(keysystem.DefaultPolicy())

	// Both patterns present: the rewrite wins and no fallback is armed.
	in := "https://h/playready-license/melody/v1/license_url?keysystem=com.microsoft.playready"
	out, act := r.classify(in)
	if act != rewritten || out == in {
		t.Errorf("classify = %q, %v", out, act)
	}

	if _, act := r.classify("https://h/other"); act != passThrough {
		t.Errorf("classify(other) = %v, want passThrough", act)
	}
	if _, act := r.classify("https://h/playready-license/x"); act != withFallback {
		t.Errorf("classify(playready-license) = %v, want withFallback", act)
	}
}
