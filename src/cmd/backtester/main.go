package main

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"

	"github.com/jiaming2012/trading-gym/src/eventpubsub"
	"github.com/jiaming2012/trading-gym/src/utils"
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "Replay market data through the trading gym",
}

// setup loads the environment and the telemetry pipeline shared by every
// subcommand. The returned func flushes the exporters.
func setup(ctx context.Context) func() {
	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Warnf("no env file loaded: %v", err)
	}

	if level, err := log.ParseLevel(utils.GetEnv("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(level)
	}

	log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
		log.InfoLevel,
	)))

	eventpubsub.Init()

	otelShutdown, err := utils.SetupOTelSDK(ctx, "trading-gym")
	if err != nil {
		log.Fatalf("failed to setup otel sdk: %v", err)
	}

	return func() {
		if err := otelShutdown(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			log.Warnf("otel shutdown: %v", err)
		}
	}
}

func main() {
	runCmd.Flags().String("config", "", "Path to the backtest config yaml.")
	runCmd.Flags().String("outDir", "", "Directory the journal csv files are written to.")
	runCmd.MarkFlagRequired("config")

	serveCmd.Flags().String("port", "8080", "Port to listen on.")
	serveCmd.Flags().StringSlice("config", nil, "Backtest config yaml files whose datasets are served.")
	serveCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
