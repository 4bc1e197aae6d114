package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "stratswitch"
	version = "v1.0.0"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Automatic strategy switching controller",
		Version: version,
		Long: `stratswitch periodically simulates every candidate strategy on every
monitored instrument, scores the results against current market conditions
and switches the active (strategy, instrument) pairing when a clearly better
one appears.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(os.Stderr, logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/stratswitch.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace|debug|info|warn|error)")

	rootCmd.AddCommand(
		newRunCmd(),
		newEvaluateCmd(),
		newStatusCmd(),
		newSwitchesCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// setupLogging writes human-readable logs on a terminal and JSON otherwise.
func setupLogging(out io.Writer, level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
		return nil
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("app", appName).Logger()
	return nil
}
