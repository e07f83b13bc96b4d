package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/steve/internal/catalog"
	"github.com/dshills/steve/internal/llm"
	"github.com/dshills/steve/internal/tracker"
)

var version = "dev"

// Exit codes.
const (
	exitCodeDriftLimit = 2
	exitCodeBadInput   = 3
	exitCodeSource     = 4
	exitCodeBadOutput  = 5
)

// exitError carries a process exit code alongside the error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// classify attaches the exit code for err's category.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	var ce *catalog.ConfigError
	var se *tracker.SourceError
	switch {
	case errors.As(err, &ce), errors.Is(err, tracker.ErrNotConfigured):
		return &exitError{code: exitCodeBadInput, err: err}
	case errors.As(err, &se):
		return &exitError{code: exitCodeSource, err: err}
	case errors.Is(err, llm.ErrInvalidModelOutput):
		return &exitError{code: exitCodeBadOutput, err: err}
	}
	return err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// app holds state shared by every command.
type app struct {
	configPath string
	verbose    bool
	logFormat  string
	log        *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	root := &cobra.Command{
		Use:           "steve",
		Short:         "Strategic Ticket Evaluation & Vision Enforcer",
		Long:          "steve scores tracker tickets against weighted strategic principles and reports how much of the work is moving the mission.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(a.verbose, a.logFormat)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.log = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "settings file (default steve.yaml or $STEVE_CONFIG)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "json", "log encoding: json or console")

	root.AddCommand(
		newAnalyzeCmd(a),
		newPrinciplesCmd(a),
		newFieldsCmd(a),
		newScheduleCmd(a),
		newVersionCmd(),
	)
	return root
}

func newLogger(verbose bool, format string) (*zap.Logger, error) {
	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "steve", version)
		},
	}
}
