package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

type Stream[K eventmodels.StreamID, E eventmodels.MarketEvent] struct {
	ID     K
	Events []E
}

// EventMap holds one immutable, point-in-time sorted array of events per
// stream. Streams are ordered by their key so that every walk over the map is
// deterministic.
type EventMap[K eventmodels.StreamID, E eventmodels.MarketEvent] struct {
	streams []Stream[K, E]
	index   map[K]int
}

func NewEventMap[K eventmodels.StreamID, E eventmodels.MarketEvent](data map[K][]E) (*EventMap[K, E], error) {
	m := &EventMap[K, E]{
		streams: make([]Stream[K, E], 0, len(data)),
		index:   make(map[K]int, len(data)),
	}

	for id, events := range data {
		sorted := make([]E, len(events))
		copy(sorted, events)

		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].PointInTime().Before(sorted[j].PointInTime())
		})

		for _, e := range sorted {
			if e.OpenedAt().After(e.PointInTime()) {
				return nil, fmt.Errorf("NewEventMap: stream %s: event opened at %s after it became available at %s: %w", id.Key(), e.OpenedAt(), e.PointInTime(), ErrCausalityViolation)
			}
		}

		m.streams = append(m.streams, Stream[K, E]{ID: id, Events: sorted})
	}

	sort.Slice(m.streams, func(i, j int) bool {
		return m.streams[i].ID.Key() < m.streams[j].ID.Key()
	})

	for i, s := range m.streams {
		m.index[s.ID] = i
	}

	return m, nil
}

func (m *EventMap[K, E]) Len() int {
	if m == nil {
		return 0
	}

	return len(m.streams)
}

func (m *EventMap[K, E]) Streams() []Stream[K, E] {
	if m == nil {
		return nil
	}

	return m.streams
}

func (m *EventMap[K, E]) Get(id K) ([]E, bool) {
	if m == nil {
		return nil, false
	}

	i, ok := m.index[id]
	if !ok {
		return nil, false
	}

	return m.streams[i].Events, true
}

func (m *EventMap[K, E]) EventCount() int {
	n := 0
	for _, s := range m.Streams() {
		n += len(s.Events)
	}

	return n
}

// EarliestAvailability is the first instant any stream has data. Streams are
// point-in-time sorted, so only the head of each stream needs checking.
func (m *EventMap[K, E]) EarliestAvailability() (time.Time, bool) {
	var best time.Time
	found := false

	for _, s := range m.Streams() {
		if len(s.Events) == 0 {
			continue
		}

		ts := s.Events[0].PointInTime()
		if !found || ts.Before(best) {
			best = ts
			found = true
		}
	}

	return best, found
}

func (m *EventMap[K, E]) EarliestOpen() (time.Time, bool) {
	var best time.Time
	found := false

	for _, s := range m.Streams() {
		for _, e := range s.Events {
			if !found || e.OpenedAt().Before(best) {
				best = e.OpenedAt()
				found = true
			}
		}
	}

	return best, found
}
