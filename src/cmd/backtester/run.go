package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jiaming2012/trading-gym/src/agents"
	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
	"github.com/jiaming2012/trading-gym/src/backtester-api/services"
	"github.com/jiaming2012/trading-gym/src/dbutils"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
	"github.com/jiaming2012/trading-gym/src/eventpubsub"
	"github.com/jiaming2012/trading-gym/src/utils"
)

type RunArgs struct {
	ConfigPath string
	OutDir     string
}

type RunResult struct {
	RunID       string
	Agent       models.AgentID
	Journal     []models.JournalEntry
	Performance services.PortfolioPerformance
}

var runCmd = &cobra.Command{
	Use:   "run --config backtest.yaml [--outDir results]",
	Short: "Evaluate the configured agents over a dataset",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		shutdown := setup(ctx)
		defer shutdown()

		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			log.Fatalf("error getting config: %v", err)
		}

		outDir, err := cmd.Flags().GetString("outDir")
		if err != nil {
			log.Fatalf("error getting outDir: %v", err)
		}

		if _, err := Run(ctx, RunArgs{ConfigPath: configPath, OutDir: outDir}); err != nil {
			log.Fatalf("Error: %v", err)
		}

		log.Info("Done")
	},
}

func buildAgent(cfg services.AgentYAML, catalog *eventmodels.InstrumentCatalog) (services.Agent, error) {
	switch cfg.Kind {
	case "", "crossover", "sma_crossover":
		inst, err := catalog.Lookup(cfg.Candles.Symbol)
		if err != nil {
			return nil, fmt.Errorf("buildAgent: %s: %w", cfg.ID, err)
		}

		return agents.NewCrossoverAgent(agents.CrossoverConfig{
			ID:              models.AgentID(cfg.ID),
			Candles:         cfg.Candles,
			SmaLength:       cfg.SmaLength,
			Quantity:        eventmodels.Quantity(cfg.Quantity),
			StopLossTicks:   eventmodels.Tick(cfg.StopLossTicks),
			TakeProfitTicks: eventmodels.Tick(cfg.TakeProfitTicks),
			Instrument:      inst,
		})
	}

	return nil, fmt.Errorf("buildAgent: %s: unknown agent kind %q", cfg.ID, cfg.Kind)
}

// evaluate runs one agent over its own environment so that agents never see
// each other's trades.
func evaluate(ctx context.Context, dataset *services.Dataset, agent services.Agent, publisher services.Publisher) (RunResult, error) {
	runID := fmt.Sprintf("%s-%s", agent.ID(), uuid.New().String())

	env, err := services.NewEnvironment(dataset, services.EnvironmentConfig{
		SessionID:            runID,
		EpisodeLength:        dataset.Config.EpisodeLength,
		Bias:                 dataset.Config.ExecutionBias,
		InvalidActionPenalty: dataset.Config.InvalidActionPenalty,
		Publisher:            publisher,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("evaluate: %w", err)
	}

	journal, err := env.Evaluate(ctx, agent)
	if err != nil {
		return RunResult{}, fmt.Errorf("evaluate: agent %s: %w", agent.ID(), err)
	}

	perf, err := services.NewPortfolioPerformance(string(agent.ID()), journal)
	if err != nil {
		return RunResult{}, fmt.Errorf("evaluate: agent %s: %w", agent.ID(), err)
	}

	return RunResult{RunID: runID, Agent: agent.ID(), Journal: journal, Performance: perf}, nil
}

func saveResults(ctx context.Context, cfg *services.BacktestConfigYAML, outDir string, results []RunResult) error {
	for _, res := range results {
		csvPath := cfg.Output.JournalCSV
		if outDir != "" {
			csvPath = filepath.Join(outDir, fmt.Sprintf("%s.csv", res.RunID))
		}

		if csvPath != "" {
			if err := services.SaveJournalCSV(csvPath, res.Journal); err != nil {
				return fmt.Errorf("saveResults: %w", err)
			}

			log.Infof("journal written to %s", csvPath)
		}
	}

	if !cfg.Output.SaveToPostgres {
		return nil
	}

	postgresURL := utils.GetEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		return fmt.Errorf("saveResults: output.save_to_postgres is set but $POSTGRES_URL is empty")
	}

	db, err := dbutils.InitPostgresWithUrl(postgresURL)
	if err != nil {
		return fmt.Errorf("saveResults: %w", err)
	}

	store := services.NewJournalStore(db)
	for _, res := range results {
		if err := store.Save(ctx, res.Journal); err != nil {
			return fmt.Errorf("saveResults: run %s: %w", res.RunID, err)
		}
	}

	return nil
}

func Run(ctx context.Context, args RunArgs) ([]RunResult, error) {
	cfg, err := services.LoadBacktestConfig(args.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	dataset, err := services.BuildDataset(cfg)
	if err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	var gymAgents []services.Agent
	for _, a := range cfg.Agents {
		agent, err := buildAgent(a, dataset.Instruments)
		if err != nil {
			return nil, fmt.Errorf("Run: %w", err)
		}

		gymAgents = append(gymAgents, agent)
	}

	bus := eventpubsub.Default()
	if err := bus.Subscribe("run", eventpubsub.EpisodeFinishedEvent, func(ev eventpubsub.EpisodeEvent) {
		log.WithFields(log.Fields{
			"session": ev.SessionID,
			"episode": ev.EpisodeID,
			"pnl":     ev.Pnl,
		}).Info("episode finished")
	}); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	results := make([]RunResult, len(gymAgents))
	errs := make([]error, len(gymAgents))

	var wg sync.WaitGroup
	for i, agent := range gymAgents {
		wg.Add(1)
		go func(i int, agent services.Agent) {
			defer wg.Done()
			results[i], errs[i] = evaluate(ctx, dataset, agent, bus)
		}(i, agent)
	}

	wg.Wait()
	bus.WaitAsync()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("Run: %w", err)
		}
	}

	if args.OutDir != "" {
		if err := os.MkdirAll(args.OutDir, 0755); err != nil {
			return nil, fmt.Errorf("Run: %w", err)
		}
	}

	perfs := make([]services.PortfolioPerformance, 0, len(results))
	for _, res := range results {
		perfs = append(perfs, res.Performance)
	}

	services.RenderPerformance(os.Stdout, perfs)

	if err := saveResults(ctx, cfg, args.OutDir, results); err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	return results, nil
}
