package models

import (
	"fmt"
	"strings"
	"time"
)

var (
	MinTime = time.Unix(-62135596800, 0).UTC()
	MaxTime = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

type EpisodeLength int

const (
	EpisodeLengthDay EpisodeLength = iota
	EpisodeLengthWeek
	EpisodeLengthMonth
	EpisodeLengthQuarter
	EpisodeLengthSemiAnnual
	EpisodeLengthAnnual
	EpisodeLengthInfinite
)

func (l EpisodeLength) String() string {
	switch l {
	case EpisodeLengthDay:
		return "day"
	case EpisodeLengthWeek:
		return "week"
	case EpisodeLengthMonth:
		return "month"
	case EpisodeLengthQuarter:
		return "quarter"
	case EpisodeLengthSemiAnnual:
		return "semiannual"
	case EpisodeLengthAnnual:
		return "annual"
	case EpisodeLengthInfinite:
		return "infinite"
	}

	return fmt.Sprintf("EpisodeLength(%d)", int(l))
}

func ParseEpisodeLength(s string) (EpisodeLength, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "day", "daily":
		return EpisodeLengthDay, nil
	case "week", "weekly":
		return EpisodeLengthWeek, nil
	case "month", "monthly":
		return EpisodeLengthMonth, nil
	case "quarter", "quarterly":
		return EpisodeLengthQuarter, nil
	case "semiannual", "semi-annual", "half":
		return EpisodeLengthSemiAnnual, nil
	case "annual", "year", "yearly":
		return EpisodeLengthAnnual, nil
	case "infinite", "none":
		return EpisodeLengthInfinite, nil
	}

	return 0, fmt.Errorf("ParseEpisodeLength: unknown episode length %q: %w", s, ErrInvalidInput)
}

func (l *EpisodeLength) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	parsed, err := ParseEpisodeLength(s)
	if err != nil {
		return err
	}

	*l = parsed
	return nil
}

// CalculateEnd returns the first calendar boundary strictly after start, in UTC.
func (l EpisodeLength) CalculateEnd(start time.Time) time.Time {
	start = start.UTC()
	y, m, d := start.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	switch l {
	case EpisodeLengthDay:
		return midnight.AddDate(0, 0, 1)
	case EpisodeLengthWeek:
		fromMonday := (int(start.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, 7-fromMonday)
	case EpisodeLengthMonth:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
	case EpisodeLengthQuarter:
		nextQuarter := ((int(m)-1)/3+1)*3 + 1
		return time.Date(y, time.Month(nextQuarter), 1, 0, 0, 0, 0, time.UTC)
	case EpisodeLengthSemiAnnual:
		if m < time.July {
			return time.Date(y, time.July, 1, 0, 0, 0, 0, time.UTC)
		}
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	case EpisodeLengthAnnual:
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	return MaxTime
}

// Episode is the time window [Start, End) a single simulation run covers.
type Episode struct {
	ID     int           `json:"id"`
	Length EpisodeLength `json:"length"`
	Start  time.Time     `json:"start"`
	End    time.Time     `json:"end"`
}

func DefaultEpisode() Episode {
	return Episode{
		ID:     0,
		Length: EpisodeLengthDay,
		Start:  MinTime,
		End:    MaxTime,
	}
}

func NewEpisode(id int, length EpisodeLength, start time.Time) Episode {
	return Episode{
		ID:     id,
		Length: length,
		Start:  start,
		End:    length.CalculateEnd(start),
	}
}

func (e Episode) Next(start time.Time) Episode {
	return NewEpisode(e.ID+1, e.Length, start)
}

func (e Episode) IsEpisodeEnd(ts time.Time) bool {
	if e.Length == EpisodeLengthInfinite {
		return false
	}

	return !ts.Before(e.End)
}

func (e Episode) String() string {
	return fmt.Sprintf("episode %d [%s, %s)", e.ID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}
