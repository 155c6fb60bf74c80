// Package validate filters the requested URL list down to sources the
// media-extraction backend can actually resolve.
package validate

import (
	"context"

	"multiscribe/internal/logger"
	"multiscribe/internal/types"
)

// Resolver is the dry-run side of the media-extraction backend.
type Resolver interface {
	Resolve(ctx context.Context, url string) error
}

// Stage checks each URL independently; one failure never blocks others.
type Stage struct {
	resolver Resolver
	log      *logger.Logger
}

func New(resolver Resolver, log *logger.Logger) *Stage {
	return &Stage{resolver: resolver, log: log.WithComponent("validate")}
}

// Run partitions urls into resolvable sources and recorded rejections,
// preserving input order for the valid set.
func (s *Stage) Run(ctx context.Context, urls []string) (valid []string, rejected []types.Failure) {
	for _, url := range urls {
		if err := s.resolver.Resolve(ctx, url); err != nil {
			s.log.WithField("url", url).WithError(err).Warn("URL rejected")
			rejected = append(rejected, types.Failure{
				Kind:      types.FailValidation,
				SourceURL: url,
				Reason:    err.Error(),
			})
			continue
		}
		s.log.WithField("url", url).Info("URL is valid")
		valid = append(valid, url)
	}
	return valid, rejected
}
