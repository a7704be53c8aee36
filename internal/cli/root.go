// Package cli is the btrace command line.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tcassar-diss/btrace/btrace"
	"go.uber.org/zap"
)

type options struct {
	output     string
	stats      string
	instrument bool
	verbose    bool
	timeout    time.Duration
}

type runFunc func(cmd *cobra.Command, opts *options, args []string) error

func newRootCmd(run runFunc) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "btrace [flags] -- program [args...]",
		Short: "Trace the system calls of an i386 program.",
		Long: `btrace runs a 32-bit x86 program under ptrace and writes one line per system call,
pairing every call's arguments with its return value.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	// everything after the program name belongs to the program
	cmd.Flags().SetInterspersed(false)

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "trace destination, empty discards the trace")
	cmd.Flags().BoolVar(&opts.instrument, "instrument", true, "trace system calls; when false the program runs untraced")
	cmd.Flags().StringVar(&opts.stats, "stats", "", "write decoder stats as JSON to this path")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "kill the program after this long, 0 for no limit")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	var (
		logger *zap.Logger
		err    error
	)

	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get logger: %w", err)
	}

	return logger.Sugar(), nil
}

func trace(cmd *cobra.Command, opts *options, args []string) error {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tracer := btrace.NewTracer(logger, btrace.Cfg{
		Output:     opts.output,
		Instrument: opts.instrument,
		Timeout:    opts.timeout,
	})
	defer func() {
		if err := tracer.Close(); err != nil {
			logger.Errorw("failed to close tracer", "err", err)
		}
	}()

	if err := tracer.Trace(cmd.Context(), args[0], args[1:]...); err != nil {
		return err
	}

	if opts.stats == "" {
		return nil
	}

	reporter := btrace.NewStatsReporter(logger, tracer.Decoder().Stats())

	if err := reporter.WriteFile(opts.stats); err != nil {
		return fmt.Errorf("failed to report trace stats: %w", err)
	}

	return nil
}

// Execute runs btrace with the process arguments.
func Execute() {
	if err := newRootCmd(trace).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
