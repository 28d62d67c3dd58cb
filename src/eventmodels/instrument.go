package eventmodels

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

type Price float64

type Quantity float64

type Tick int64

// Instrument carries the contract specification needed for grid snapping and
// P&L arithmetic. TickValueUSD is the value of a one tick move for a single
// unit of quantity.
type Instrument struct {
	Symbol       Symbol  `yaml:"symbol" json:"symbol"`
	TickSize     float64 `yaml:"tick_size" json:"tick_size"`
	TickValueUSD float64 `yaml:"tick_value_usd" json:"tick_value_usd"`
}

func (i Instrument) Validate() error {
	if i.Symbol == "" {
		return fmt.Errorf("instrument: missing symbol")
	}

	if i.TickSize <= 0 {
		return fmt.Errorf("instrument %s: tick size must be positive, got %v", i.Symbol, i.TickSize)
	}

	if i.TickValueUSD <= 0 {
		return fmt.Errorf("instrument %s: tick value must be positive, got %v", i.Symbol, i.TickValueUSD)
	}

	return nil
}

func (i Instrument) tick() decimal.Decimal {
	return decimal.NewFromFloat(i.TickSize)
}

// NormalizePrice snaps a raw price to the nearest multiple of the tick size.
// The division runs in fixed point so that values like 42594.06 never come
// back as 42594.060000000005. NaN and infinities are returned unchanged.
func (i Instrument) NormalizePrice(p Price) Price {
	if !isFinite(float64(p)) {
		return p
	}

	tick := i.tick()
	ticks := decimal.NewFromFloat(float64(p)).Div(tick).Round(0)
	f, _ := ticks.Mul(tick).Float64()
	return Price(f)
}

// PriceToTicks converts a price distance into a whole number of ticks.
func (i Instrument) PriceToTicks(dist Price) Tick {
	if !isFinite(float64(dist)) {
		return 0
	}

	ticks := decimal.NewFromFloat(float64(dist)).Div(i.tick()).Round(0)
	return Tick(ticks.IntPart())
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (i Instrument) TicksToPrice(ticks Tick) Price {
	f, _ := decimal.NewFromInt(int64(ticks)).Mul(i.tick()).Float64()
	return Price(f)
}

func (i Instrument) TicksToUSD(ticks Tick) float64 {
	return float64(ticks) * i.TickValueUSD
}

// USDToTicks answers "how many ticks is a move worth usd per unit".
func (i Instrument) USDToTicks(usd float64) Tick {
	if !isFinite(usd) {
		return 0
	}

	ticks := decimal.NewFromFloat(usd).Div(decimal.NewFromFloat(i.TickValueUSD)).Round(0)
	return Tick(ticks.IntPart())
}

var spotInstruments = map[Symbol]Instrument{
	"btcusdt": {Symbol: "btcusdt", TickSize: 0.01, TickValueUSD: 0.01},
	"ethusdt": {Symbol: "ethusdt", TickSize: 0.01, TickValueUSD: 0.01},
	"bnbusdt": {Symbol: "bnbusdt", TickSize: 0.01, TickValueUSD: 0.01},
	"solusdt": {Symbol: "solusdt", TickSize: 0.01, TickValueUSD: 0.01},
	"xrpusdt": {Symbol: "xrpusdt", TickSize: 0.0001, TickValueUSD: 0.0001},
	"trxusdt": {Symbol: "trxusdt", TickSize: 0.0001, TickValueUSD: 0.0001},
	"adausdt": {Symbol: "adausdt", TickSize: 0.0001, TickValueUSD: 0.0001},
	"xlmusdt": {Symbol: "xlmusdt", TickSize: 0.0001, TickValueUSD: 0.0001},
}

// futures roots: CME currency futures and bitcoin
var futureRoots = map[string]Instrument{
	"6e":  {TickSize: 0.00005, TickValueUSD: 6.25},
	"6b":  {TickSize: 0.0001, TickValueUSD: 6.25},
	"6j":  {TickSize: 0.0000005, TickValueUSD: 6.25},
	"6a":  {TickSize: 0.00005, TickValueUSD: 5.0},
	"6c":  {TickSize: 0.00005, TickValueUSD: 5.0},
	"6n":  {TickSize: 0.00005, TickValueUSD: 5.0},
	"btc": {TickSize: 5.0, TickValueUSD: 25.0},
}

// InstrumentCatalog resolves symbols to instruments. Overrides registered
// with Add take precedence over the built-in spot and futures tables.
type InstrumentCatalog struct {
	overrides map[Symbol]Instrument
}

func NewInstrumentCatalog() *InstrumentCatalog {
	return &InstrumentCatalog{
		overrides: make(map[Symbol]Instrument),
	}
}

func (c *InstrumentCatalog) Add(inst Instrument) error {
	inst.Symbol = NewSymbol(string(inst.Symbol))
	if err := inst.Validate(); err != nil {
		return fmt.Errorf("InstrumentCatalog.Add: %w", err)
	}

	c.overrides[inst.Symbol] = inst
	return nil
}

func (c *InstrumentCatalog) Lookup(symbol Symbol) (Instrument, error) {
	symbol = NewSymbol(string(symbol))

	if inst, ok := c.overrides[symbol]; ok {
		return inst, nil
	}

	if inst, ok := spotInstruments[symbol]; ok {
		return inst, nil
	}

	if root, ok := symbol.futureRoot(); ok {
		if spec, found := futureRoots[root]; found {
			spec.Symbol = symbol
			return spec, nil
		}
	}

	return Instrument{}, fmt.Errorf("InstrumentCatalog.Lookup: %s: %w", symbol, ErrUnknownSymbol)
}

// Symbols lists the symbols with explicit overrides, sorted.
func (c *InstrumentCatalog) Symbols() []Symbol {
	out := make([]Symbol, 0, len(c.overrides))
	for s := range c.overrides {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var ErrUnknownSymbol = fmt.Errorf("unknown symbol")
