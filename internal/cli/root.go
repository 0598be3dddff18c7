// Package cli implements the incidentctl command tree on top of core.Service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"incidentcore/internal/config"
	"incidentcore/internal/core"
	"incidentcore/pkg/domain"
)

// Exit codes returned by Run.
const (
	ExitSuccess            = 0
	ExitFailure            = 1 // unclassified failure
	ExitUsage              = 2 // bad flags or invalid argument
	ExitNotFound           = 3
	ExitConflict           = 4
	ExitStorageUnavailable = 5
)

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFiles []string
	Driver   string
	FilePath string
	Format   string // "text" | "json"
	Metrics  bool
	Verbose  bool
}

// app carries the lazily opened service shared by every subcommand of one run.
type app struct {
	opts     RootOptions
	stdout   io.Writer
	stderr   io.Writer
	svc      *core.Service
	registry *prometheus.Registry
}

// Run executes the command line args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	err = errors.Join(err, a.close())
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// ExitCode maps an error onto an exit code by its domain kind.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, errUsage):
		return ExitUsage
	}
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		return ExitUsage
	case domain.KindNotFound:
		return ExitNotFound
	case domain.KindConflict:
		return ExitConflict
	case domain.KindStorageUnavailable:
		return ExitStorageUnavailable
	}
	return ExitFailure
}

var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "incidentctl",
		Short:         "Inspect and modify an incidentcore document store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == a.opts.Format {
					return nil
				}
			}
			return usageError("invalid format %q: must be one of %v", a.opts.Format, ValidFormats)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&a.opts.EnvFiles, "env-file", nil, "dotenv files to load (default .env)")
	flags.StringVar(&a.opts.Driver, "driver", "", "storage driver override (file|memory|sqlite|postgres|s3)")
	flags.StringVar(&a.opts.FilePath, "file", "", "document path override for the file driver")
	flags.StringVar(&a.opts.Format, "format", "text", "output format (text|json)")
	flags.BoolVar(&a.opts.Metrics, "metrics", false, "print collected metrics to stderr on exit")
	flags.BoolVarP(&a.opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		a.userCommand(),
		a.loginCommand(),
		a.incidentCommand(),
		a.notificationCommand(),
		a.docCommand(),
	)
	return cmd
}

// service opens the configured store and starts the service on first use.
func (a *app) service(ctx context.Context) (*core.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	cfg, err := config.Load(a.opts.EnvFiles...)
	if err != nil {
		return nil, usageError("%v", err)
	}
	if a.opts.Driver != "" {
		cfg.Storage.Driver = a.opts.Driver
	}
	if a.opts.FilePath != "" {
		cfg.Storage.FilePath = a.opts.FilePath
	}
	level := cfg.LogLevel
	if a.opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level})).
		With(slog.String("driver", cfg.Storage.Driver))

	opts := []core.Option{core.WithLogger(logger)}
	if a.opts.Metrics {
		a.registry = prometheus.NewRegistry()
		metrics, err := core.NewPrometheusMetrics(a.registry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithMetrics(metrics))
	}

	store, err := core.OpenDocumentStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	svc, err := core.NewService(ctx, store, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

func (a *app) close() error {
	if a.svc == nil {
		return nil
	}
	err := a.svc.Close()
	a.svc = nil
	if a.registry != nil {
		err = errors.Join(err, writeMetrics(a.stderr, a.registry))
	}
	return err
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// serviceRunE adapts a handler that needs the service into a cobra RunE.
func (a *app) serviceRunE(run func(ctx context.Context, svc *core.Service, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		svc, err := a.service(cmd.Context())
		if err != nil {
			return err
		}
		return run(cmd.Context(), svc, cmd, args)
	}
}
