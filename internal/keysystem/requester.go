package keysystem

import (
	"context"
	"log/slog"

	"drm-shim/internal/host"
	"drm-shim/internal/model"
)

// SubstitutingRequester resolves the key system through a Policy before
// handing the call to the next capability check.
type SubstitutingRequester struct {
	next   host.AccessRequester
	policy Policy
	logger *slog.Logger
}

// NewSubstitutingRequester wraps next.
func NewSubstitutingRequester(next host.AccessRequester, policy Policy, logger *slog.Logger) *SubstitutingRequester {
	return &SubstitutingRequester{next: next, policy: policy, logger: logger}
}

// RequestAccess implements host.AccessRequester.
func (s *SubstitutingRequester) RequestAccess(ctx context.Context, keySystem string, configs []model.KeySystemConfiguration) (*model.KeySystemAccess, error) {
	effective := s.policy.Resolve(keySystem)
	if effective != keySystem {
		s.logger.Info("substituting key system",
			"requested", keySystem,
			"effective", effective,
		)
	}
	return s.next.RequestAccess(ctx, effective, configs)
}

var _ host.AccessRequester = (*SubstitutingRequester)(nil)
