// Package interception wraps the platform's request surfaces so license
// traffic for an unsupported key system reaches a supported one.
//
// Two rules apply, and a request matches at most one of them:
//
//   - Query rewrite: a license URL resolution request whose key system query
//     parameter names the unsupported scheme is rewritten once, before
//     dispatch, to name the supported one.
//   - Not-found fallback: a direct license request on the unsupported scheme's
//     path is sent as given and, only if the server answers with the trigger
//     status, sent again with the path segment swapped.
//
// Everything else passes through untouched.
package interception

import (
	"net/http"
	"net/url"
	"strings"

	"drm-shim/internal/keysystem"
)

// Default rule settings.
const (
	DefaultLicenseURLPath  = "/melody/v1/license_url"
	DefaultKeySystemParam  = "keysystem"
	DefaultUnsupportedPath = "/playready-license/"
	DefaultSupportedPath   = "/widevine-license/"
	DefaultFallbackTrigger = http.StatusNotFound
)

// QueryRewrite rewrites the key system query parameter of license URL
// resolution requests.
type QueryRewrite struct {
	// PathPattern must occur in the URL path.
	PathPattern string
	// Param is the query parameter carrying the key system.
	Param  string
	Policy keysystem.Policy
}

// Apply returns the rewritten URL and true, or rawURL and false when the rule
// does not apply. Only the matching parameter's value changes; every other
// byte of the query keeps its order and encoding.
func (q QueryRewrite) Apply(rawURL string) (string, bool) {
	if q.PathPattern == "" || q.Param == "" {
		return rawURL, false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" || !strings.Contains(u.Path, q.PathPattern) {
		return rawURL, false
	}

	pairs := strings.Split(u.RawQuery, "&")
	changed := false
	for i, pair := range pairs {
		rawKey, rawValue, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key, err := url.QueryUnescape(rawKey)
		if err != nil || key != q.Param {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil || !q.Policy.Matches(value) {
			continue
		}
		pairs[i] = rawKey + "=" + url.QueryEscape(q.Policy.Supported())
		changed = true
	}
	if !changed {
		return rawURL, false
	}

	// Splice the new query back in by hand so the scheme, host, path and
	// fragment are byte-for-byte what the caller sent.
	prefix, rest, _ := strings.Cut(rawURL, "?")
	fragment := ""
	if _, frag, ok := strings.Cut(rest, "#"); ok {
		fragment = "#" + frag
	}
	return prefix + "?" + strings.Join(pairs, "&") + fragment, true
}

// FallbackPolicy retries a license request on the supported scheme's path
// when the unsupported one answers with TriggerStatus.
type FallbackPolicy struct {
	TriggerStatus int
	// From must occur in the URL path; its first occurrence is replaced by To.
	From string
	To   string
}

// Matches reports whether rawURL targets the unsupported license path.
func (f FallbackPolicy) Matches(rawURL string) bool {
	if f.From == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(u.Path, f.From)
}

// Triggered reports whether status calls for the fallback dispatch.
func (f FallbackPolicy) Triggered(status int) bool {
	return status == f.TriggerStatus
}

// Target returns rawURL with the first From segment of its path replaced by To.
// Query and fragment are left as they were.
func (f FallbackPolicy) Target(rawURL string) string {
	end := len(rawURL)
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		end = i
	}
	head, tail := rawURL[:end], rawURL[end:]
	if strings.Contains(head, f.From) {
		return strings.Replace(head, f.From, f.To, 1) + tail
	}

	// The segment only appears once the path is unescaped.
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Path = strings.Replace(u.Path, f.From, f.To, 1)
	u.RawPath = ""
	return u.String()
}

// Rules is the full interception configuration.
type Rules struct {
	Rewrite  QueryRewrite
	Fallback FallbackPolicy
}

// DefaultRules returns the PlayReady to Widevine rules for policy.
func DefaultRules(policy keysystem.Policy) Rules {
	return Rules{
		Rewrite: QueryRewrite{
			PathPattern: DefaultLicenseURLPath,
			Param:       DefaultKeySystemParam,
			Policy:      policy,
		},
		Fallback: FallbackPolicy{
			TriggerStatus: DefaultFallbackTrigger,
			From:          DefaultUnsupportedPath,
			To:            DefaultSupportedPath,
		},
	}
}

// action is what the interceptor does with one request.
type action int

const (
	passThrough action = iota
	rewritten
	withFallback
)

// classify applies the query rewrite if it matches, otherwise checks for the
// fallback path. It returns the URL to dispatch first.
func (r Rules) classify(rawURL string) (string, action) {
	if out, ok := r.Rewrite.Apply(rawURL); ok {
		return out, rewritten
	}
	if r.Fallback.Matches(rawURL) {
		return rawURL, withFallback
	}
	return rawURL, passThrough
}
