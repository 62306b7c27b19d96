package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"imgfetch/internal/session"
	"imgfetch/pkg/config"
	"imgfetch/pkg/logger"
	"imgfetch/pkg/metrics"
	"imgfetch/pkg/notify"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	baseURL       string
	notifications bool
	metricsAddr   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "imgfetch",
	Short: "Fetch, browse and export images from an image server",
	Long: `imgfetch talks to an image server over HTTP.

Features:
  - Batch acquisition of N random images for a query at a fixed cadence
  - Paginated search over images the server already holds
  - Gallery browsing by category with local filtering and ordering
  - Export of fetched images to a local directory
  - Terminal and desktop notifications
  - Optional Prometheus metrics endpoint`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it until an
// interrupt arrives
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, notify.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.imgfetch.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "image server base URL")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable notifications")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	rootCmd.SetVersionTemplate(`imgfetch {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags the user actually set
func globalFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if baseURL != "" {
		flags["base-url"] = baseURL
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("notifications") {
		flags["notifications"] = notifications
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}
	return flags
}

// app is the process scoped state shared by every command
type app struct {
	cfg      *config.Config
	log      logger.Logger
	notifier notify.Notifier
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func loadApp(flags map[string]interface{}) (*app, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("imgfetch starting")

	reg := prometheus.NewRegistry()
	return &app{
		cfg:      cfg,
		log:      log,
		notifier: notify.FromType(cfg.Notifications.NotificationType, cfg.Notifications.Enabled, os.Stdout),
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

func (a *app) openSession() (*session.Session, error) {
	return session.New(a.cfg, session.Options{
		Notifier: a.notifier,
		Logger:   a.log,
		Metrics:  a.metrics,
	})
}

// run executes fn alongside the metrics server when one is configured. The
// server stops once fn returns.
func (a *app) run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Metrics.Enabled {
		addr := a.cfg.Metrics.ListenAddress
		a.log.WithField("addr", addr).Info("serving metrics")
		g.Go(func() error {
			if err := metrics.Serve(gctx, addr, a.registry); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}
