package services

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
)

// PortfolioPerformance summarizes the closed trades of a journal.
type PortfolioPerformance struct {
	Name         string  `json:"name"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	NetPnl       float64 `json:"net_pnl"`
	GrossProfit  float64 `json:"gross_profit"`
	GrossLoss    float64 `json:"gross_loss"`
	AverageWin   float64 `json:"average_win"`
	AverageLoss  float64 `json:"average_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	StdDev       float64 `json:"std_dev"`
	Sharpe       float64 `json:"sharpe"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}

func closedReturns(entries []models.JournalEntry) []float64 {
	closed := make([]models.JournalEntry, 0, len(entries))
	for _, e := range entries {
		if e.TradeState == models.StateKindClosed.String() {
			closed = append(closed, e)
		}
	}

	sort.SliceStable(closed, func(i, j int) bool {
		a, b := closed[i].ExitTimestamp, closed[j].ExitTimestamp
		if a == nil || b == nil {
			return b != nil
		}
		return a.Before(*b)
	})

	out := make([]float64, 0, len(closed))
	for _, e := range closed {
		out = append(out, e.RealizedReturnUSD)
	}

	return out
}

// maxDrawdown is the largest peak to trough fall of the cumulative return.
func maxDrawdown(returns []float64) float64 {
	equity, peak, worst := 0.0, 0.0, 0.0
	for _, r := range returns {
		equity += r
		peak = math.Max(peak, equity)
		worst = math.Max(worst, peak-equity)
	}

	return worst
}

func NewPortfolioPerformance(name string, entries []models.JournalEntry) (PortfolioPerformance, error) {
	perf := PortfolioPerformance{Name: name}

	returns := closedReturns(entries)
	perf.Trades = len(returns)
	if perf.Trades == 0 {
		return perf, nil
	}

	var wins, losses []float64
	for _, r := range returns {
		if r > 0 {
			wins = append(wins, r)
		} else if r < 0 {
			losses = append(losses, r)
		}
	}

	perf.Wins = len(wins)
	perf.Losses = len(losses)
	perf.WinRate = float64(perf.Wins) / float64(perf.Trades)

	var err error
	if perf.NetPnl, err = stats.Sum(returns); err != nil {
		return perf, fmt.Errorf("failed to calculate net pnl: %w", err)
	}

	if len(wins) > 0 {
		perf.GrossProfit, _ = stats.Sum(wins)
		perf.AverageWin, _ = stats.Mean(wins)
	}

	if len(losses) > 0 {
		perf.GrossLoss, _ = stats.Sum(losses)
		perf.AverageLoss, _ = stats.Mean(losses)
	}

	if perf.GrossLoss != 0 {
		perf.ProfitFactor = perf.GrossProfit / math.Abs(perf.GrossLoss)
	}

	if len(returns) > 1 {
		if perf.StdDev, err = stats.StandardDeviationSample(returns); err != nil {
			return perf, fmt.Errorf("failed to calculate the standard deviation: %w", err)
		}

		if perf.StdDev > 0 {
			mean, _ := stats.Mean(returns)
			perf.Sharpe = mean / perf.StdDev
		}
	}

	perf.MaxDrawdown = maxDrawdown(returns)
	return perf, nil
}

// RenderPerformance writes one row per agent.
func RenderPerformance(w io.Writer, perfs []PortfolioPerformance) {
	p := message.NewPrinter(language.English)
	usd := func(v float64) string {
		if v < 0 {
			return fmt.Sprintf("-$%s", p.Sprintf("%.2f", -v))
		}
		return fmt.Sprintf("$%s", p.Sprintf("%.2f", v))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Agent", "Trades", "Win Rate", "Net P&L", "Avg Win", "Avg Loss", "Profit Factor", "Sharpe", "Max Drawdown"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, perf := range perfs {
		table.Append([]string{
			perf.Name,
			p.Sprintf("%d", perf.Trades),
			fmt.Sprintf("%.1f%%", perf.WinRate*100),
			usd(perf.NetPnl),
			usd(perf.AverageWin),
			usd(perf.AverageLoss),
			fmt.Sprintf("%.2f", perf.ProfitFactor),
			fmt.Sprintf("%.2f", perf.Sharpe),
			usd(perf.MaxDrawdown),
		})
	}

	table.Render()
}
