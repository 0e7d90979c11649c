package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "reservo",
		Short:         "Availability resolution and slot regeneration for reservations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path (defaults to $RESERVO_CONFIG_PATH or configs/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from the config")

	root.AddCommand(
		newServeCmd(&logger),
		newResolveCmd(&logger),
		newRegenerateCmd(&logger),
		newImportCmd(&logger),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
