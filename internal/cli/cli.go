// Package cli implements the b24stats command line: a connection check
// against the configured webhook and a terminal statistics report.
package cli

import (
	"context"
	"fmt"

	"github.com/okian/b24stats/internal/adapters/bitrix"
	service "github.com/okian/b24stats/internal/app"
	"github.com/okian/b24stats/internal/config"
	"github.com/okian/b24stats/internal/domain/model"
	"github.com/okian/b24stats/internal/domain/types"
	"github.com/okian/b24stats/pkg/logger"
	"github.com/spf13/cobra"
)

// Service is what the commands need from the statistics service.
type Service interface {
	Statistics(ctx context.Context, current model.Period, compare bool) (types.Report, error)
	Employees(ctx context.Context) ([]types.EmployeeView, error)
	CurrentMonth() model.Period
}

// ServiceFactory builds the service once configuration is loaded.
type ServiceFactory func(ctx context.Context, cfg *config.Config) (Service, error)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	webhook  string
	logLevel string
	parallel bool
}

type app struct {
	cfg     *config.Config
	svc     Service
	factory ServiceFactory
	flags   rootFlags
}

// NewRootCommand assembles the command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{factory: newService}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "b24stats",
		Short: "Per-employee company and deal statistics from a Bitrix24 portal",
		Long: `b24stats reads employees, companies and deals from a Bitrix24 portal through
an incoming webhook and reports, per employee, how many companies they own,
how many deals those companies have and how many companies have no deals.

Configuration comes from defaults, .env, the file named by B24STATS_CONFIG
and B24STATS_* environment variables. Flags override all of them.`,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.flags.webhook, "webhook", "", "Incoming webhook URL (overrides B24STATS_WEBHOOK_URL)")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.flags.parallel, "parallel", false, "Fetch companies and deals concurrently")

	root.AddCommand(a.checkCommand(), a.reportCommand())
	return root
}

// Execute runs the command tree with the given context.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// setup loads configuration, applies flag overrides and builds the service.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("webhook") {
		cfg.WebhookURL = a.flags.webhook
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.logLevel
	}
	if flags.Changed("parallel") {
		cfg.ParallelFetch = a.flags.parallel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logs go to stderr; stdout carries the report.
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}

	svc, err := a.factory(ctx, cfg)
	if err != nil {
		return err
	}
	a.cfg, a.svc = cfg, svc
	return nil
}

func newService(_ context.Context, cfg *config.Config) (Service, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("%w: pass --webhook or set B24STATS_WEBHOOK_URL", service.ErrWebhookNotConfigured)
	}
	client, err := bitrix.New(cfg.WebhookURL,
		bitrix.WithTimeout(cfg.RequestTimeout()),
		bitrix.WithMaxPages(cfg.MaxPages),
		bitrix.WithLogger(logger.Named("bitrix")),
	)
	if err != nil {
		return nil, err
	}
	return service.New(
		service.WithFetcher(client),
		service.WithLogger(logger.Named("service")),
		service.WithParallelFetch(cfg.ParallelFetch),
		service.WithFetchTimeout(cfg.FetchTimeout()),
	), nil
}
