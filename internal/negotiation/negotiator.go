package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"drm-shim/internal/host"
	"drm-shim/internal/model"
)

// Negotiator decorates the original host capability check with the fallback
// ladder. It implements host.AccessRequester.
type Negotiator struct {
	original host.AccessRequester
	logger   *slog.Logger
	generate func([]model.KeySystemConfiguration) []Candidate
}

// NewNegotiator wraps original. original may be nil, in which case every call
// fails with host.ErrPlatformUnavailable.
func NewNegotiator(original host.AccessRequester, logger *slog.Logger) *Negotiator {
	return &Negotiator{
		original: original,
		logger:   logger,
		generate: GenerateCandidates,
	}
}

// RequestAccess implements host.AccessRequester. On failure the error is the
// host's own error from the last attempt. When ctx ends between attempts that
// error also wraps ctx.Err().
func (n *Negotiator) RequestAccess(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error) {
	res, err := n.Negotiate(ctx, keySystem, configs)
	if err != nil {
		return nil, err
	}
	return res.Access, nil
}

// Negotiate runs the initial attempt and, if it fails, the candidate ladder.
// Attempts are strictly sequential and an issued attempt is never cancelled;
// ctx is only checked before a new attempt is issued. The returned Result is
// non-nil whenever the original entry point exists, including on failure.
func (n *Negotiator) Negotiate(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*Result, error) {
	if n.original == nil {
		n.logger.Error("capability check unavailable on this platform",
			slog.String("key_system", keySystem))
		return nil, host.ErrPlatformUnavailable
	}

	res := &Result{}
	if err := ctx.Err(); err != nil {
		return res, aborted(&host.Error{Name: "AbortError", Message: "capability check aborted"}, err)
	}

	access, lastErr := n.attempt(ctx, res, keySystem, nil, configs)
	if lastErr == nil {
		res.Access = access
		return res, nil
	}

	n.logger.Warn("capability check rejected, trying fallback configurations",
		slog.String("key_system", keySystem),
		slog.Int("configurations", len(configs)),
		slog.String("error", lastErr.Error()))

	candidates := n.generate(configs)
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			n.logger.Warn("fallback ladder stopped",
				slog.String("key_system", keySystem),
				slog.Int("attempts", len(res.Attempts)),
				slog.String("error", err.Error()))
			return res, aborted(lastErr, err)
		}

		c := candidates[i]
		access, err := n.attempt(ctx, res, keySystem, &c, []model.KeySystemConfiguration{c.Configuration})
		if err == nil {
			n.logger.Info("fallback configuration accepted",
				slog.String("key_system", keySystem),
				slog.String("robustness", c.Robustness.String()),
				slog.Int("candidate", i+1),
				slog.Int("candidates", len(candidates)))
			res.Access = access
			return res, nil
		}

		n.logger.Warn("fallback configuration rejected",
			slog.String("key_system", keySystem),
			slog.String("robustness", c.Robustness.String()),
			slog.Int("candidate", i+1),
			slog.Int("candidates", len(candidates)),
			slog.String("error", err.Error()))
		lastErr = err
	}

	n.logger.Error("all fallback configurations rejected",
		slog.String("key_system", keySystem),
		slog.Int("attempts", len(res.Attempts)))
	return res, lastErr
}

// aborted keeps the host error as the one callers see and adds the context
// cause, so both host.AsError and errors.Is(err, context.Canceled) hold.
func aborted(hostErr, cause error) error {
	return fmt.Errorf("%w: %w", hostErr, cause)
}

// attempt issues one host call and records it on res.
func (n *Negotiator) attempt(ctx context.Context, res *Result, keySystem string, c *Candidate, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error) {
	res.Attempts = append(res.Attempts, Attempt{
		KeySystem: keySystem,
		Candidate: c,
		Outcome:   Pending,
	})
	rec := &res.Attempts[len(res.Attempts)-1]

	n.logger.Debug("requesting key system access",
		slog.String("key_system", keySystem),
		slog.Bool("fallback", c != nil))

	start := time.Now()
	access, err := n.call(ctx, keySystem, configs)
	rec.Duration = time.Since(start)
	if err != nil {
		rec.Outcome = Rejected
		rec.Err = err
		return nil, err
	}
	rec.Outcome = Accepted
	return access, nil
}

// call invokes the original entry point, turning a panic or an empty
// acceptance into an ordinary rejection.
func (n *Negotiator) call(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (access *model.KeySystemAccess, err error) {
	defer func() {
		if r := recover(); r != nil {
			access = nil
			err = &host.Error{Name: "Error", Message: fmt.Sprint(r)}
		}
	}()

	access, err = n.original.RequestAccess(ctx, keySystem, model.CloneConfigurations(configs))
	if err == nil && access == nil {
		err = &host.Error{Name: "NotSupportedError", Message: "capability check returned no access"}
	}
	return access, err
}

var _ host.AccessRequester = (*Negotiator)(nil)
