package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/trading-gym/src/backtester-api/router"
	"github.com/jiaming2012/trading-gym/src/backtester-api/services"
	"github.com/jiaming2012/trading-gym/src/eventpubsub"
)

var serveCmd = &cobra.Command{
	Use:   "serve --config backtest.yaml [--port 8080]",
	Short: "Serve gym sessions over http and websocket",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		shutdown := setup(ctx)
		defer shutdown()

		port, err := cmd.Flags().GetString("port")
		if err != nil {
			log.Fatalf("error getting port: %v", err)
		}

		configs, err := cmd.Flags().GetStringSlice("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		if err := Serve(ctx, port, configs); err != nil {
			log.Fatalf("Error: %v", err)
		}
	},
}

func loadDatasets(paths []string) (map[string]*services.Dataset, error) {
	datasets := map[string]*services.Dataset{}
	for _, p := range paths {
		cfg, err := services.LoadBacktestConfig(p)
		if err != nil {
			return nil, err
		}

		if _, found := datasets[cfg.Name]; found {
			return nil, fmt.Errorf("duplicate dataset name %q in %s", cfg.Name, p)
		}

		dataset, err := services.BuildDataset(cfg)
		if err != nil {
			return nil, err
		}

		datasets[cfg.Name] = dataset
	}

	return datasets, nil
}

func Serve(ctx context.Context, port string, configs []string) error {
	datasets, err := loadDatasets(configs)
	if err != nil {
		return fmt.Errorf("Serve: %w", err)
	}

	bus := eventpubsub.Default()
	if err := bus.Subscribe("serve", eventpubsub.TradeClosedEvent, func(ev eventpubsub.TradeEvent) {
		log.WithFields(log.Fields{
			"session": ev.SessionID,
			"episode": ev.EpisodeID,
			"trade":   ev.TradeID,
			"reward":  ev.Reward,
		}).Info("trade closed")
	}); err != nil {
		return fmt.Errorf("Serve: %w", err)
	}

	r := mux.NewRouter()
	router.SetupHandler(r, router.NewGymService(datasets, bus))

	srv := &http.Server{
		Handler: otelhttp.NewHandler(r, "/"),
		Addr:    fmt.Sprintf(":%s", port),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
