// Command metasweep removes expired "New In" badges and their expiration entries from the catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coachpo/metasweep/internal/infra/adapters/shopify"
	"github.com/coachpo/metasweep/internal/infra/config"
	"github.com/coachpo/metasweep/internal/infra/telemetry"
	"github.com/coachpo/metasweep/internal/reconcile"
)

const (
	defaultConfigPath        = "config/metasweep.yaml"
	sweepLoggerPrefix        = "metasweep "
	telemetryShutdownTimeout = 5 * time.Second
)

// Process exit codes.
const (
	exitComplete   = 0
	exitIncomplete = 1
	exitConfig     = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	if err == nil {
		return exitComplete
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitIncomplete
}

type rootOptions struct {
	configPath string
	dryRun     bool
	workers    int
}

func main() {
	ctx, cancel := newSignalContext()
	logger := newSweepLogger(os.Stderr)

	cmd := newRootCommand(os.Stdout, logger)
	err := cmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		logger.Printf("sweep failed: %v", err)
	}
	os.Exit(exitCode(err))
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newSweepLogger(w io.Writer) *log.Logger {
	return log.New(w, sweepLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func newRootCommand(stdout io.Writer, logger *log.Logger) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "metasweep",
		Short: "Remove expired New In badges from the product catalog",
		Long: `metasweep walks every product of the store, removes the sentinel badge from products
whose expiration date has passed, and deletes the expired expiration entry.

Credentials come from SHOPIFY_STORE_URL and SHOPIFY_ADMIN_API_ACCESS_TOKEN or the config file.

Example:
  metasweep --config config/metasweep.yaml
  metasweep --dry-run --workers 4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd.Context(), cmd, opts, stdout, logger)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", fmt.Sprintf("path to configuration file (default: %s)", defaultConfigPath))
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log mutations instead of sending them")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "products mutated concurrently within a page (overrides sweep.workers)")
	return cmd
}

func runSweep(ctx context.Context, cmd *cobra.Command, opts *rootOptions, stdout io.Writer, logger *log.Logger) error {
	configPath := opts.configPath
	if configPath == "" {
		configPath = defaultConfigPath
	}
	appCfg, err := config.LoadOrDefault(ctx, configPath)
	if err != nil {
		return &exitError{code: exitConfig, err: fmt.Errorf("load config: %w", err)}
	}
	if cmd.Flags().Changed("dry-run") {
		appCfg.Sweep.DryRun = opts.dryRun
	}
	if cmd.Flags().Changed("workers") {
		appCfg.Sweep.Workers = opts.workers
		if err := appCfg.Validate(); err != nil {
			return &exitError{code: exitConfig, err: err}
		}
	}
	logger.Printf("configuration initialised: env=%s, store=%s, api=%s, strategy=%s, dry_run=%t",
		appCfg.Environment, appCfg.Store.Domain, appCfg.Store.APIVersion, appCfg.Sweep.DeleteStrategy, appCfg.Sweep.DryRun)

	telemetryProvider, err := initTelemetry(ctx, logger, appCfg.Environment, appCfg.Telemetry)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	defer shutdownTelemetry(logger, telemetryProvider)

	driver, err := buildDriver(appCfg, logger)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	summary, runErr := driver.Run(ctx)
	if err := summary.Render(stdout); err != nil {
		logger.Printf("render summary: %v", err)
	}
	if runErr != nil {
		return &exitError{code: exitIncomplete, err: runErr}
	}
	return nil
}

func buildDriver(cfg config.AppConfig, logger *log.Logger) (*reconcile.Driver, error) {
	client, err := shopify.NewClient(shopify.Options{Config: shopify.Config{
		StoreDomain:        cfg.Store.Domain,
		AccessToken:        cfg.Store.AccessToken,
		APIVersion:         cfg.Store.APIVersion,
		BaseURL:            cfg.Store.BaseURL,
		Namespace:          cfg.Sweep.Namespace,
		HTTPTimeout:        cfg.Store.HTTPTimeout,
		RequestsPerSecond:  cfg.Store.RequestsPerSecond,
		Burst:              cfg.Store.Burst,
		ThrottleMaxRetries: cfg.Store.ThrottleMaxRetries,
	}}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialise shopify client: %w", err)
	}

	keys := reconcile.Keys{
		Namespace:  cfg.Sweep.Namespace,
		Badges:     cfg.Sweep.BadgesKey,
		Expiration: cfg.Sweep.ExpirationKey,
	}

	var port reconcile.MutatePort = client
	if cfg.Sweep.DryRun {
		port = reconcile.NewDryRunPort(logger)
	}
	var deleter reconcile.EntryDeleter
	switch cfg.Sweep.DeleteStrategy {
	case config.DeleteLookup:
		deleter = reconcile.NewLookupDeleter(port, client, keys)
	default:
		deleter = reconcile.NewDirectDeleter(port)
	}

	return reconcile.NewDriver(client, reconcile.NewDispatcher(port, deleter, keys), reconcile.Options{
		Keys: keys,
		Policy: reconcile.Policy{
			SentinelTag:              cfg.Sweep.SentinelTag,
			PurgeMalformedExpiration: cfg.Sweep.PurgeMalformedExpiration,
		},
		Workers:  cfg.Sweep.Workers,
		Platform: shopify.Platform,
		Logger:   logger,
	}), nil
}

func initTelemetry(ctx context.Context, logger *log.Logger, env config.Environment, cfg config.TelemetryConfig) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.DefaultConfig()
	if cfg.Enabled {
		telemetryCfg.Enabled = true
	}
	if cfg.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	if cfg.ServiceName != "" {
		telemetryCfg.ServiceName = cfg.ServiceName
	}
	telemetryCfg.Environment = string(env)
	telemetryCfg.OTLPInsecure = telemetryCfg.OTLPInsecure || cfg.OTLPInsecure
	telemetryCfg.EnableMetrics = cfg.EnableMetrics

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}

	if provider.Enabled() {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Printf("telemetry disabled")
	}
	return provider, nil
}

func shutdownTelemetry(logger *log.Logger, provider *telemetry.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}
}
