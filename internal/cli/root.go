// Package cli is the falcomplot command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"falcomplot/internal/config"
	"falcomplot/internal/logging"
	"falcomplot/internal/metrics"
	"falcomplot/internal/version"
)

// ErrNoContext is returned by commands run outside the root command.
var ErrNoContext = errors.New("cli context not initialised")

type contextKey struct{}

// RootOptions holds the persistent flags.
type RootOptions struct {
	ConfigPath string
	DataSource string
	DataMode   string
	LogLevel   string
}

// Context carries what every subcommand needs.
type Context struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// NewRootCommand builds the root command with the headless subcommands.
// Extra commands, such as the desktop viewer, are added by the caller.
func NewRootCommand(extra ...*cobra.Command) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "falcomplot",
		Short: "Replay and render precomputed redistricting runs",
		Long: "falcomplot plays back a redistricting algorithm's output: census blocks,\n" +
			"a spanning tree per iteration and the district carved off at each step.",
		Version: version.String(),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path")
	pf.StringVarP(&opts.DataSource, "data", "d", "", "data directory or http(s) base URL")
	pf.StringVar(&opts.DataMode, "mode", "", "data mode (initial, intermediate)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		NewRenderCmd(),
		NewServeCmd(),
		NewProbeCmd(),
		NewReportCmd(),
		NewVersionCmd(),
	)
	cmd.AddCommand(extra...)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.DataSource != "" {
		cfg.Data.Source = opts.DataSource
	}
	if opts.DataMode != "" {
		cfg.Data.Mode = opts.DataMode
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cc := &Context{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, contextKey{}, cc))
	return nil
}

// FromCommand returns the context set up by the root command.
func FromCommand(cmd *cobra.Command) (*Context, error) {
	if ctx := cmd.Context(); ctx != nil {
		if cc, ok := ctx.Value(contextKey{}).(*Context); ok {
			return cc, nil
		}
	}
	return nil, ErrNoContext
}

// Execute runs the command tree until it finishes or the process is
// interrupted.
func Execute(extra ...*cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand(extra...).ExecuteContext(ctx)
}
