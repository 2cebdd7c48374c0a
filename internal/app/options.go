package service

import (
	"time"

	"github.com/okian/b24stats/pkg/logger"
	"github.com/okian/b24stats/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithFetcher sets the remote data source. Without one every call fails
// with ErrWebhookNotConfigured.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithParallelFetch issues the employee, current and previous period
// fetches concurrently instead of one after another.
func WithParallelFetch(enabled bool) Option {
	return func(s *Service) {
		s.parallel = enabled
	}
}

// WithFetchTimeout bounds one whole fetch sequence. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.fetchTimeout = d
		}
	}
}

// WithMetrics records service metrics on m and reads them back from g
// for GetStats.
func WithMetrics(m *metrics.Manager, g prometheus.Gatherer) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
