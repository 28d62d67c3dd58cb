package models

import (
	"fmt"
	"time"

	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

// StreamCursor tracks, for every stream of an EventMap, the half-open range
// [0, end) of events already revealed to the simulation. The ends slice is
// positional against the map it was built from, so cursor and storage share
// one key order by construction.
type StreamCursor[K eventmodels.StreamID, E eventmodels.MarketEvent] struct {
	data *EventMap[K, E]
	ends []int
}

func NewStreamCursor[K eventmodels.StreamID, E eventmodels.MarketEvent](data *EventMap[K, E]) *StreamCursor[K, E] {
	return &StreamCursor[K, E]{
		data: data,
		ends: make([]int, data.Len()),
	}
}

func (c *StreamCursor[K, E]) assertAligned() {
	if !debugAssertions {
		return
	}

	if len(c.ends) != c.data.Len() {
		panic(fmt.Sprintf("StreamCursor: %d cursor ranges for %d streams", len(c.ends), c.data.Len()))
	}

	for i, s := range c.data.Streams() {
		if c.ends[i] < 0 || c.ends[i] > len(s.Events) {
			panic(fmt.Sprintf("StreamCursor: stream %s end %d out of bounds (len %d)", s.ID.Key(), c.ends[i], len(s.Events)))
		}
	}
}

// Advance reveals every event with PointInTime <= ts. Events sharing one
// point in time are always revealed together. An earlier ts is a no-op.
func (c *StreamCursor[K, E]) Advance(ts time.Time) {
	c.assertAligned()

	for i, s := range c.data.Streams() {
		end := c.ends[i]
		for end < len(s.Events) && !s.Events[end].PointInTime().After(ts) {
			end++
		}

		c.ends[i] = end
	}
}

func (c *StreamCursor[K, E]) Rewind() {
	for i := range c.ends {
		c.ends[i] = 0
	}
}

func (c *StreamCursor[K, E]) ToEnd() {
	c.assertAligned()

	for i, s := range c.data.Streams() {
		c.ends[i] = len(s.Events)
	}
}

// FindFirstOpenAtOrAfter returns the earliest OpenedAt >= ts among the
// unconsumed events.
func (c *StreamCursor[K, E]) FindFirstOpenAtOrAfter(ts time.Time) (time.Time, bool) {
	return c.findFirstAtOrAfter(ts, func(e E) time.Time { return e.OpenedAt() })
}

// FindFirstAvailabilityAtOrAfter returns the earliest PointInTime >= ts among
// the unconsumed events.
func (c *StreamCursor[K, E]) FindFirstAvailabilityAtOrAfter(ts time.Time) (time.Time, bool) {
	return c.findFirstAtOrAfter(ts, func(e E) time.Time { return e.PointInTime() })
}

func (c *StreamCursor[K, E]) findFirstAtOrAfter(ts time.Time, key func(E) time.Time) (time.Time, bool) {
	c.assertAligned()

	var best time.Time
	found := false

	for i, s := range c.data.Streams() {
		for _, e := range s.Events[c.ends[i]:] {
			k := key(e)
			if k.Before(ts) {
				continue
			}

			if !found || k.Before(best) {
				best = k
				found = true
			}
			break
		}
	}

	return best, found
}

// NextAvailability is the PointInTime of the earliest unconsumed event.
func (c *StreamCursor[K, E]) NextAvailability() (time.Time, bool) {
	c.assertAligned()

	var best time.Time
	found := false

	for i, s := range c.data.Streams() {
		if c.ends[i] >= len(s.Events) {
			continue
		}

		ts := s.Events[c.ends[i]].PointInTime()
		if !found || ts.Before(best) {
			best = ts
			found = true
		}
	}

	return best, found
}

func (c *StreamCursor[K, E]) IsDone() bool {
	for i, s := range c.data.Streams() {
		if c.ends[i] != len(s.Events) {
			return false
		}
	}

	return true
}

// End reports the consumed length of the stream with the given id.
func (c *StreamCursor[K, E]) End(id K) (int, bool) {
	i, ok := c.data.index[id]
	if !ok {
		return 0, false
	}

	return c.ends[i], true
}

// Visible returns the consumed prefix of every stream.
func (c *StreamCursor[K, E]) Visible() []Stream[K, E] {
	c.assertAligned()

	streams := c.data.Streams()
	out := make([]Stream[K, E], len(streams))
	for i, s := range streams {
		out[i] = Stream[K, E]{ID: s.ID, Events: s.Events[:c.ends[i]]}
	}

	return out
}

func (c *StreamCursor[K, E]) snapshot() []int {
	out := make([]int, len(c.ends))
	copy(out, c.ends)
	return out
}
