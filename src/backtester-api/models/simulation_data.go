package models

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type (
	OhlcvEventMap         = EventMap[eventmodels.OhlcvID, eventmodels.Ohlcv]
	TradeEventMap         = EventMap[eventmodels.TradesID, eventmodels.TradePrint]
	EconomicCalEventMap   = EventMap[eventmodels.EconomicCalendarID, eventmodels.EconomicEvent]
	VolumeProfileEventMap = EventMap[eventmodels.VolumeProfileID, eventmodels.VolumeProfile]
	TpoEventMap           = EventMap[eventmodels.TpoID, eventmodels.Tpo]
	EmaEventMap           = EventMap[eventmodels.EmaID, eventmodels.Ema]
	SmaEventMap           = EventMap[eventmodels.SmaID, eventmodels.Sma]
	RsiEventMap           = EventMap[eventmodels.RsiID, eventmodels.Rsi]
)

// SimulationData is the immutable event store for one or more sessions. It is
// safe to share between goroutines because nothing mutates it after Build.
type SimulationData struct {
	ohlcv         *OhlcvEventMap
	trade         *TradeEventMap
	economicCal   *EconomicCalEventMap
	volumeProfile *VolumeProfileEventMap
	tpo           *TpoEventMap
	ema           *EmaEventMap
	sma           *SmaEventMap
	rsi           *RsiEventMap

	marketIDs               []eventmodels.MarketID
	globalAvailabilityStart time.Time
	globalOpenStart         time.Time
	fingerprint             uint64
}

func (d *SimulationData) Ohlcv() *OhlcvEventMap { return d.ohlcv }
func (d *SimulationData) Trade() *TradeEventMap { return d.trade }
func (d *SimulationData) EconomicCal() *EconomicCalEventMap { return d.economicCal }
func (d *SimulationData) VolumeProfile() *VolumeProfileEventMap { return d.volumeProfile }
func (d *SimulationData) Tpo() *TpoEventMap { return d.tpo }
func (d *SimulationData) Ema() *EmaEventMap { return d.ema }
func (d *SimulationData) Sma() *SmaEventMap { return d.sma }
func (d *SimulationData) Rsi() *RsiEventMap { return d.rsi }

// MarketIDs lists the tradable markets, i.e. those with OHLCV or trade data.
func (d *SimulationData) MarketIDs() []eventmodels.MarketID {
	out := make([]eventmodels.MarketID, len(d.marketIDs))
	copy(out, d.marketIDs)
	return out
}

// GlobalAvailabilityStart is the earliest instant any event becomes knowable.
func (d *SimulationData) GlobalAvailabilityStart() time.Time {
	return d.globalAvailabilityStart
}

// GlobalOpenStart is the earliest instant any event interval begins.
func (d *SimulationData) GlobalOpenStart() time.Time {
	return d.globalOpenStart
}

// Fingerprint is a content hash of every stream; two datasets with the same
// fingerprint replay identically.
func (d *SimulationData) Fingerprint() string {
	return fmt.Sprintf("%016x", d.fingerprint)
}

func (d *SimulationData) EventCount() int {
	return d.ohlcv.EventCount() + d.trade.EventCount() + d.economicCal.EventCount() +
		d.volumeProfile.EventCount() + d.tpo.EventCount() + d.ema.EventCount() +
		d.sma.EventCount() + d.rsi.EventCount()
}

type SimulationDataBuilder struct {
	ohlcv         map[eventmodels.OhlcvID][]eventmodels.Ohlcv
	trade         map[eventmodels.TradesID][]eventmodels.TradePrint
	economicCal   map[eventmodels.EconomicCalendarID][]eventmodels.EconomicEvent
	volumeProfile map[eventmodels.VolumeProfileID][]eventmodels.VolumeProfile
	tpo           map[eventmodels.TpoID][]eventmodels.Tpo
	ema           map[eventmodels.EmaID][]eventmodels.Ema
	sma           map[eventmodels.SmaID][]eventmodels.Sma
	rsi           map[eventmodels.RsiID][]eventmodels.Rsi
}

func NewSimulationDataBuilder() *SimulationDataBuilder {
	return &SimulationDataBuilder{
		ohlcv:         map[eventmodels.OhlcvID][]eventmodels.Ohlcv{},
		trade:         map[eventmodels.TradesID][]eventmodels.TradePrint{},
		economicCal:   map[eventmodels.EconomicCalendarID][]eventmodels.EconomicEvent{},
		volumeProfile: map[eventmodels.VolumeProfileID][]eventmodels.VolumeProfile{},
		tpo:           map[eventmodels.TpoID][]eventmodels.Tpo{},
		ema:           map[eventmodels.EmaID][]eventmodels.Ema{},
		sma:           map[eventmodels.SmaID][]eventmodels.Sma{},
		rsi:           map[eventmodels.RsiID][]eventmodels.Rsi{},
	}
}

func (b *SimulationDataBuilder) WithOhlcv(id eventmodels.OhlcvID, events []eventmodels.Ohlcv) *SimulationDataBuilder {
	b.ohlcv[id] = append(b.ohlcv[id], events...)
	return b
}

func (b *SimulationDataBuilder) WithTrades(id eventmodels.TradesID, events []eventmodels.TradePrint) *SimulationDataBuilder {
	b.trade[id] = append(b.trade[id], events...)
	return b
}

func (b *SimulationDataBuilder) WithEconomicCalendar(id eventmodels.EconomicCalendarID, events []eventmodels.EconomicEvent) *SimulationDataBuilder {
	b.economicCal[id] = append(b.economicCal[id], events...)
	return b
}

func (b *SimulationDataBuilder) WithVolumeProfile(id eventmodels.VolumeProfileID, events []eventmodels.VolumeProfile) *SimulationDataBuilder {
	b.volumeProfile[id] = append(b.volumeProfile[id], events...)
	return b
}

func (b *SimulationDataBuilder) WithTpo(id eventmodels.TpoID, events []eventmodels.Tpo) *SimulationDataBuilder {
	b.tpo[id] = append(b.tpo[id], events...)
	return b
}

func (b *SimulationDataBuilder) WithEma(id eventmodels.EmaID, events []eventmodels.Ema) *SimulationDataBuilder {
	b.ema[id] = append(b.ema[id], events...)
	return b
}

func (b *SimulationDataBuilder) WithSma(id eventmodels.SmaID, events []eventmodels.Sma) *SimulationDataBuilder {
	b.sma[id] = append(b.sma[id], events...)
	return b
}

func (b *SimulationDataBuilder) WithRsi(id eventmodels.RsiID, events []eventmodels.Rsi) *SimulationDataBuilder {
	b.rsi[id] = append(b.rsi[id], events...)
	return b
}

func (b *SimulationDataBuilder) Build() (*SimulationData, error) {
	var err error
	d := &SimulationData{}

	if d.ohlcv, err = NewEventMap(b.ohlcv); err != nil {
		return nil, fmt.Errorf("SimulationDataBuilder.Build: ohlcv: %w", err)
	}
	if d.trade, err = NewEventMap(b.trade); err != nil {
		return nil, fmt.Errorf("SimulationDataBuilder.Build: trades: %w", err)
	}
	if d.economicCal, err = NewEventMap(b.economicCal); err != nil {
		return nil, fmt.Errorf("SimulationDataBuilder.Build: economic calendar: %w", err)
	}
	if d.volumeProfile, err = NewEventMap(b.volumeProfile); err != nil {
		return nil, fmt.Errorf("SimulationDataBuilder.Build: volume profile: %w", err)
	}
	if d.tpo, err = NewEventMap(b.tpo); err != nil {
		return nil, fmt.Errorf("SimulationDataBuilder.Build: tpo: %w", err)
	}
	if d.ema, err = NewEventMap(b.ema); err != nil {
		return nil, fmt.Errorf("SimulationDataBuilder.Build: ema: %w", err)
	}
	if d.sma, err = NewEventMap(b.sma); err != nil {
		return nil, fmt.Errorf("SimulationDataBuilder.Build: sma: %w", err)
	}
	if d.rsi, err = NewEventMap(b.rsi); err != nil {
		return nil, fmt.Errorf("SimulationDataBuilder.Build: rsi: %w", err)
	}

	if d.EventCount() == 0 {
		return nil, fmt.Errorf("SimulationDataBuilder.Build: no events: %w", ErrInvalidInput)
	}

	d.globalAvailabilityStart = minTime(
		earliestAvailability(d.ohlcv), earliestAvailability(d.trade), earliestAvailability(d.economicCal),
		earliestAvailability(d.volumeProfile), earliestAvailability(d.tpo), earliestAvailability(d.ema),
		earliestAvailability(d.sma), earliestAvailability(d.rsi),
	)

	d.globalOpenStart = minTime(
		earliestOpen(d.ohlcv), earliestOpen(d.trade), earliestOpen(d.economicCal),
		earliestOpen(d.volumeProfile), earliestOpen(d.tpo), earliestOpen(d.ema),
		earliestOpen(d.sma), earliestOpen(d.rsi),
	)

	d.marketIDs = collectMarketIDs(d)
	d.fingerprint = fingerprint(d)

	return d, nil
}

type optionalTime struct {
	ts time.Time
	ok bool
}

func earliestAvailability[K eventmodels.StreamID, E eventmodels.MarketEvent](m *EventMap[K, E]) optionalTime {
	ts, ok := m.EarliestAvailability()
	return optionalTime{ts: ts, ok: ok}
}

func earliestOpen[K eventmodels.StreamID, E eventmodels.MarketEvent](m *EventMap[K, E]) optionalTime {
	ts, ok := m.EarliestOpen()
	return optionalTime{ts: ts, ok: ok}
}

func minTime(candidates ...optionalTime) time.Time {
	var best time.Time
	found := false
	for _, c := range candidates {
		if c.ok && (!found || c.ts.Before(best)) {
			best = c.ts
			found = true
		}
	}

	return best
}

func collectMarketIDs(d *SimulationData) []eventmodels.MarketID {
	seen := map[eventmodels.MarketID]struct{}{}
	for _, s := range d.ohlcv.Streams() {
		seen[s.ID.MarketID()] = struct{}{}
	}
	for _, s := range d.trade.Streams() {
		seen[s.ID.MarketID()] = struct{}{}
	}

	out := make([]eventmodels.MarketID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func fingerprint(d *SimulationData) uint64 {
	h := xxh3.New()
	buf := make([]byte, 8)

	writeTime := func(t time.Time) {
		binary.LittleEndian.PutUint64(buf, uint64(t.UnixNano()))
		h.Write(buf)
	}
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
		h.Write(buf)
	}

	for _, s := range d.ohlcv.Streams() {
		h.WriteString(s.ID.Key())
		for _, e := range s.Events {
			writeTime(e.OpenTimestamp)
			writeTime(e.CloseTimestamp)
			writeFloat(float64(e.Open))
			writeFloat(float64(e.High))
			writeFloat(float64(e.Low))
			writeFloat(float64(e.Close))
			writeFloat(float64(e.Volume))
		}
	}

	for _, s := range d.trade.Streams() {
		h.WriteString(s.ID.Key())
		for _, e := range s.Events {
			writeTime(e.Timestamp)
			writeFloat(float64(e.Price))
			writeFloat(float64(e.Quantity))
		}
	}

	hashAvailability(h, d.economicCal, writeTime)
	hashAvailability(h, d.volumeProfile, writeTime)
	hashAvailability(h, d.tpo, writeTime)

	for _, s := range d.ema.Streams() {
		h.WriteString(s.ID.Key())
		for _, e := range s.Events {
			writeTime(e.Timestamp)
			writeFloat(float64(e.Price))
		}
	}
	for _, s := range d.sma.Streams() {
		h.WriteString(s.ID.Key())
		for _, e := range s.Events {
			writeTime(e.Timestamp)
			writeFloat(float64(e.Price))
		}
	}
	for _, s := range d.rsi.Streams() {
		h.WriteString(s.ID.Key())
		for _, e := range s.Events {
			writeTime(e.Timestamp)
			writeFloat(e.Value)
		}
	}

	return h.Sum64()
}

func hashAvailability[K eventmodels.StreamID, E eventmodels.MarketEvent](h *xxh3.Hasher, m *EventMap[K, E], writeTime func(time.Time)) {
	for _, s := range m.Streams() {
		h.WriteString(s.ID.Key())
		for _, e := range s.Events {
			writeTime(e.OpenedAt())
			writeTime(e.PointInTime())
		}
	}
}
