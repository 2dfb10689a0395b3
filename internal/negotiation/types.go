// Package negotiation retries a rejected DRM capability check with a fixed
// ladder of fallback configurations.
//
// The host capability check is called first with the application's
// configurations as given. If it fails, every configuration is expanded into
// one candidate per robustness level, most restrictive first, and the
// candidates are tried one at a time until the host accepts one.
package negotiation

import (
	"time"

	"drm-shim/internal/model"
)

// Candidate is one fallback configuration. Every video capability of
// Configuration carries Robustness, or no robustness when it is unset.
type Candidate struct {
	Robustness    model.Robustness              `json:"robustness"`
	Configuration model.KeySystemConfiguration `json:"configuration"`
}

// Outcome is the state of an attempt.
type Outcome string

const (
	Pending  Outcome = "pending"
	Accepted Outcome = "accepted"
	Rejected Outcome = "rejected"
)

// Attempt records one call to the host capability check.
type Attempt struct {
	KeySystem string `json:"key_system"`
	// Candidate is nil for the initial attempt, which passes the caller's
	// configurations unmodified.
	Candidate *Candidate    `json:"candidate,omitempty"`
	Outcome   Outcome       `json:"outcome"`
	Err       error         `json:"-"`
	Duration  time.Duration `json:"duration_ns"`
}

// Result is the outcome of a negotiation. Access is nil unless an attempt was
// accepted.
type Result struct {
	Access   *model.KeySystemAccess `json:"access,omitempty"`
	Attempts []Attempt              `json:"attempts"`
}

// Accepted returns the accepted attempt, or nil.
func (r *Result) Accepted() *Attempt {
	for i := range r.Attempts {
		if r.Attempts[i].Outcome == Accepted {
			return &r.Attempts[i]
		}
	}
	return nil
}
