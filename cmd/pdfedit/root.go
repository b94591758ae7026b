package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfedit/config"
	"github.com/wudi/pdfedit/observability"
)

var (
	cfgPath string
	verbose bool

	appCfg = config.Default()

	logger observability.Logger = observability.NopLogger{}
	// tracer logs span timings with --verbose and is nil otherwise.
	tracer observability.Tracer
)

var rootCmd = &cobra.Command{
	Use:   "pdfedit",
	Short: "Overlay text edits and drawings onto PDF pages",
	Long: `pdfedit turns the text runs of a PDF into editable overlay blocks,
adds new text and free-hand strokes, and writes the result as a new PDF.
Edits are described by a YAML plan or a JavaScript edit script.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultPath()
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		level, err := config.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		if verbose {
			level = slog.LevelDebug
		}
		l := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(l)

		appCfg, logger = cfg, observability.NewSlogLogger(l)
		tracer = nil
		if verbose {
			tracer = observability.LogTracer(logger)
		}
		for _, w := range cfg.Warnings {
			logger.Warn("config", observability.String("path", path), observability.String("warning", w))
		}
		return nil
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default is $XDG_CONFIG_HOME/pdfedit/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}
