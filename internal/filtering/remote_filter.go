package filtering

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
)

type remoteOnlyFilter struct {
	toggle
	enabled bool
}

// NewRemoteOnly creates a filter that removes on-site postings when remote work is required.
func NewRemoteOnly() Filter {
	return &remoteOnlyFilter{}
}

func (f *remoteOnlyFilter) Name() string { return "remote_only" }

func (f *remoteOnlyFilter) Validate(cfg *Config) error {
	f.enabled = false
	if cfg != nil {
		f.enabled = cfg.RemoteOnly
	}
	return nil
}

func (f *remoteOnlyFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if !f.enabled {
		return p, Step{Initial: initial, Dropped: 0, Left: p.Len()}, nil
	}

	excluded := p.Keep(func(posting *jobs.Posting) bool { return posting.Remote })
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding on-site postings",
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(excluded), Left: p.Len()}, nil
}

func (f *remoteOnlyFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"remote_only": strconv.FormatBool(f.enabled)},
	}
}
