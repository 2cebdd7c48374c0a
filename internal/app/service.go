// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/b24stats/internal/domain/model"
	"github.com/okian/b24stats/internal/domain/stats"
	"github.com/okian/b24stats/internal/domain/types"
	"github.com/okian/b24stats/pkg/logger"
	"github.com/okian/b24stats/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the remote data source. *bitrix.Client implements it.
type Fetcher interface {
	FetchEmployees(ctx context.Context) ([]model.Employee, error)
	FetchCompanies(ctx context.Context, period model.Period) ([]model.Company, error)
	FetchDeals(ctx context.Context, period model.Period) ([]model.Deal, error)
}

const defaultFetchTimeout = 60 * time.Second

// Service computes statistics reports. It keeps no fetched data between
// calls: every report comes from a fresh fetch.
type Service struct {
	fetcher      Fetcher
	parallel     bool
	fetchTimeout time.Duration

	// identical concurrent requests share one computation
	group singleflight.Group

	computations atomic.Int64
	failures     atomic.Int64
	warnings     atomic.Int64

	logger   logger.Logger
	metrics  *metrics.Manager
	gatherer prometheus.Gatherer
	now      func() time.Time
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		fetchTimeout: defaultFetchTimeout,
		metrics:      metrics.Default(),
		gatherer:     metrics.GetRegistry(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	return s
}

// Configured reports whether a fetcher is set.
func (s *Service) Configured() bool { return s.fetcher != nil }

// PreviousPeriod returns the comparison period for current.
func (s *Service) PreviousPeriod(current model.Period) (model.Period, error) {
	if err := current.Validate(); err != nil {
		return model.Period{}, err
	}
	return current.Previous(), nil
}

// CurrentMonth is the default report period: the first of this month to today.
func (s *Service) CurrentMonth() model.Period {
	return model.CurrentMonth(s.now())
}

// Statistics fetches the data for current (and its previous period when
// compare is set) and aggregates it into a report. Concurrent calls for the
// same period and flag share one computation.
func (s *Service) Statistics(ctx context.Context, current model.Period, compare bool) (types.Report, error) {
	if err := current.Validate(); err != nil {
		return types.Report{}, err
	}
	if s.fetcher == nil {
		return types.Report{}, ErrWebhookNotConfigured
	}

	key := current.String() + "|" + strconv.FormatBool(compare)
	// The shared computation must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.compute(shared, current, compare)
	})

	select {
	case <-ctx.Done():
		return types.Report{}, fmt.Errorf("statistics %s: %w", current, ctx.Err())
	case res := <-ch:
		if res.Shared {
			s.metrics.RecordCoalesced()
		}
		if res.Err != nil {
			return types.Report{}, res.Err
		}
		return res.Val.(types.Report), nil
	}
}

func (s *Service) compute(ctx context.Context, current model.Period, compare bool) (types.Report, error) {
	start := s.now()
	s.metrics.ComputationStarted()
	defer s.metrics.ComputationFinished()
	s.computations.Add(1)

	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	report := types.Report{
		RequestID: uuid.NewString(),
		Current:   current,
	}
	var previous *model.Period
	if compare {
		p := current.Previous()
		previous = &p
		report.Previous = previous
	}

	s.logger.Debug(ctx, "computing statistics",
		logger.String("computation", report.RequestID),
		logger.String("period", current.String()),
		logger.Bool("compare", compare),
		logger.Bool("parallel", s.parallel),
	)

	fetch := s.fetchSequential
	if s.parallel {
		fetch = s.fetchParallel
	}
	employees, cur, prev, err := fetch(ctx, current, previous)
	if err != nil {
		s.failures.Add(1)
		s.metrics.RecordComputation("error", float64(time.Since(start).Milliseconds()))
		s.logger.Error(ctx, "statistics computation failed",
			logger.String("computation", report.RequestID),
			logger.String("period", current.String()),
			logger.Error(err),
		)
		return types.Report{}, err
	}

	if len(employees) == 0 {
		s.warnings.Add(1)
		s.metrics.RecordEmptyEmployees()
		s.logger.Warn(ctx, "remote system returned no employees",
			logger.String("period", current.String()),
		)
		report.Warnings = append(report.Warnings, types.WarningEmptyEmployees)
	}

	report.Employees = stats.Compute(employees, cur, prev)
	report.Totals = stats.Totals(report.Employees)
	report.GeneratedAt = s.now().UTC()

	s.metrics.UpdateReportSize(len(employees), len(cur.Companies), len(cur.Deals))
	s.metrics.RecordComputation("ok", float64(time.Since(start).Milliseconds()))
	s.logger.Info(ctx, "statistics computed",
		logger.String("computation", report.RequestID),
		logger.String("period", current.String()),
		logger.Int("employees", len(employees)),
		logger.Int("companies", len(cur.Companies)),
		logger.Int("deals", len(cur.Deals)),
		logger.Duration("took", time.Since(start)),
	)
	return report, nil
}

// fetchSequential runs employees, current companies, current deals, then
// the previous period's companies and deals, stopping at the first error.
func (s *Service) fetchSequential(ctx context.Context, current model.Period, previous *model.Period) ([]model.Employee, stats.Snapshot, *stats.Snapshot, error) {
	employees, err := s.fetcher.FetchEmployees(ctx)
	if err != nil {
		return nil, stats.Snapshot{}, nil, fmt.Errorf("fetch employees: %w", err)
	}
	cur, err := s.snapshot(ctx, current)
	if err != nil {
		return nil, stats.Snapshot{}, nil, err
	}
	if previous == nil {
		return employees, cur, nil, nil
	}
	prev, err := s.snapshot(ctx, *previous)
	if err != nil {
		return nil, stats.Snapshot{}, nil, err
	}
	return employees, cur, &prev, nil
}

// fetchParallel issues all five fetches at once. The first failure cancels
// the others and is returned.
func (s *Service) fetchParallel(ctx context.Context, current model.Period, previous *model.Period) ([]model.Employee, stats.Snapshot, *stats.Snapshot, error) {
	g, gctx := errgroup.WithContext(ctx)

	var employees []model.Employee
	var cur, prev stats.Snapshot

	g.Go(func() error {
		var err error
		employees, err = s.fetcher.FetchEmployees(gctx)
		if err != nil {
			return fmt.Errorf("fetch employees: %w", err)
		}
		return nil
	})
	s.goSnapshot(gctx, g, current, &cur)
	if previous != nil {
		s.goSnapshot(gctx, g, *previous, &prev)
	}

	if err := g.Wait(); err != nil {
		return nil, stats.Snapshot{}, nil, err
	}
	if previous == nil {
		return employees, cur, nil, nil
	}
	return employees, cur, &prev, nil
}

func (s *Service) goSnapshot(ctx context.Context, g *errgroup.Group, period model.Period, into *stats.Snapshot) {
	g.Go(func() error {
		companies, err := s.fetcher.FetchCompanies(ctx, period)
		if err != nil {
			return fmt.Errorf("fetch companies %s: %w", period, err)
		}
		into.Companies = companies
		return nil
	})
	g.Go(func() error {
		deals, err := s.fetcher.FetchDeals(ctx, period)
		if err != nil {
			return fmt.Errorf("fetch deals %s: %w", period, err)
		}
		into.Deals = deals
		return nil
	})
}

func (s *Service) snapshot(ctx context.Context, period model.Period) (stats.Snapshot, error) {
	companies, err := s.fetcher.FetchCompanies(ctx, period)
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("fetch companies %s: %w", period, err)
	}
	deals, err := s.fetcher.FetchDeals(ctx, period)
	if err != nil {
		return stats.Snapshot{}, fmt.Errorf("fetch deals %s: %w", period, err)
	}
	return stats.Snapshot{Companies: companies, Deals: deals}, nil
}

// Employees lists the employees visible to the webhook with their display
// names resolved.
func (s *Service) Employees(ctx context.Context) ([]types.EmployeeView, error) {
	if s.fetcher == nil {
		return nil, ErrWebhookNotConfigured
	}
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	employees, err := s.fetcher.FetchEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch employees: %w", err)
	}
	if len(employees) == 0 {
		s.warnings.Add(1)
		s.metrics.RecordEmptyEmployees()
		s.logger.Warn(ctx, "remote system returned no employees")
	}

	out := make([]types.EmployeeView, len(employees))
	for i, e := range employees {
		v := types.EmployeeView{
			ID:          e.ID,
			Name:        stats.ResolveName(e),
			Departments: e.Departments,
		}
		if e.Email != nil {
			v.Email = *e.Email
		}
		out[i] = v
	}
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	out := map[string]interface{}{
		"configured":     s.Configured(),
		"parallelFetch":  s.parallel,
		"fetchTimeoutMs": s.fetchTimeout.Milliseconds(),
		"computations":   s.computations.Load(),
		"failures":       s.failures.Load(),
		"warnings":       s.warnings.Load(),
	}

	summary, err := metrics.Summary(s.gatherer)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to read metrics", logger.Error(err))
		return out
	}
	out["metrics"] = summary
	return out
}
