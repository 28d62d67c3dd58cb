package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
)

// JournalFilter narrows a journal by trade state and agent. Empty fields
// match everything.
type JournalFilter struct {
	State   string `schema:"state"`
	AgentID string `schema:"agent"`
}

func (f JournalFilter) Apply(entries []models.JournalEntry) []models.JournalEntry {
	out := make([]models.JournalEntry, 0, len(entries))
	for _, e := range entries {
		if f.State != "" && e.TradeState != f.State {
			continue
		}

		if f.AgentID != "" && e.AgentID != f.AgentID {
			continue
		}

		out = append(out, e)
	}

	return out
}

func WriteJournalCSV(w io.Writer, entries []models.JournalEntry) error {
	if err := gocsv.Marshal(entries, w); err != nil {
		return fmt.Errorf("WriteJournalCSV: %w", err)
	}

	return nil
}

func SaveJournalCSV(path string, entries []models.JournalEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("SaveJournalCSV: failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("SaveJournalCSV: %w", err)
	}
	defer f.Close()

	if err := WriteJournalCSV(f, entries); err != nil {
		return err
	}

	log.Infof("Exported %d journal rows to %s", len(entries), path)
	return nil
}
