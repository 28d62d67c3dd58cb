package services

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type CandleSourceYAML struct {
	eventmodels.OhlcvID `yaml:",inline"`
	File                string `yaml:"file"`
}

type TradeSourceYAML struct {
	eventmodels.TradesID `yaml:",inline"`
	File                 string `yaml:"file"`
}

type IndicatorYAML struct {
	Kind   string              `yaml:"kind"`
	Source eventmodels.OhlcvID `yaml:"source"`
	Length int                 `yaml:"length"`
}

type AgentYAML struct {
	ID              string              `yaml:"id"`
	Kind            string              `yaml:"kind"`
	Candles         eventmodels.OhlcvID `yaml:"candles"`
	SmaLength       int                 `yaml:"sma_length"`
	Quantity        float64             `yaml:"quantity"`
	StopLossTicks   int64               `yaml:"stop_loss_ticks"`
	TakeProfitTicks int64               `yaml:"take_profit_ticks"`
}

type OutputYAML struct {
	JournalCSV     string `yaml:"journal_csv"`
	SaveToPostgres bool   `yaml:"save_to_postgres"`
}

// BacktestConfigYAML describes one backtest run: the data to replay, the
// contract specs it trades and the agents that take part.
type BacktestConfigYAML struct {
	Name                 string                   `yaml:"name"`
	EpisodeLength        models.EpisodeLength     `yaml:"episode_length"`
	ExecutionBias        models.ExecutionBias     `yaml:"execution_bias"`
	InvalidActionPenalty float64                  `yaml:"invalid_action_penalty"`
	Instruments          []eventmodels.Instrument `yaml:"instruments"`
	Candles              []CandleSourceYAML       `yaml:"candles"`
	Trades               []TradeSourceYAML        `yaml:"trades"`
	Indicators           []IndicatorYAML          `yaml:"indicators"`
	Agents               []AgentYAML              `yaml:"agents"`
	Output               OutputYAML               `yaml:"output"`

	baseDir string
}

func (c *BacktestConfigYAML) Validate() error {
	if len(c.Candles) == 0 && len(c.Trades) == 0 {
		return fmt.Errorf("BacktestConfigYAML: no candle or trade sources configured")
	}

	if c.InvalidActionPenalty > 0 {
		return fmt.Errorf("BacktestConfigYAML: invalid_action_penalty must not be positive, got %v", c.InvalidActionPenalty)
	}

	for _, ind := range c.Indicators {
		if ind.Length <= 0 {
			return fmt.Errorf("BacktestConfigYAML: indicator %s on %s: length must be positive", ind.Kind, ind.Source.Key())
		}
	}

	seen := map[string]bool{}
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("BacktestConfigYAML: agent without id")
		}

		if seen[a.ID] {
			return fmt.Errorf("BacktestConfigYAML: duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
	}

	return nil
}

// ResolvePath makes data file paths relative to the config file.
func (c *BacktestConfigYAML) ResolvePath(p string) string {
	if filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}

	return filepath.Join(c.baseDir, p)
}

func ParseBacktestConfig(data []byte) (*BacktestConfigYAML, error) {
	var cfg BacktestConfigYAML
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode backtest config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func LoadBacktestConfig(path string) (*BacktestConfigYAML, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadBacktestConfig: %w", err)
	}

	cfg, err := ParseBacktestConfig(data)
	if err != nil {
		return nil, fmt.Errorf("LoadBacktestConfig: %s: %w", path, err)
	}

	cfg.baseDir = filepath.Dir(path)
	return cfg, nil
}
