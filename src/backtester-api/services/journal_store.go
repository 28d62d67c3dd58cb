package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/jiaming2012/trading-gym/src/backtester-api/models"
)

// JournalStore persists journals to postgres. Saving a run replaces any rows
// previously stored under the same run id.
type JournalStore struct {
	db *gorm.DB
}

func NewJournalStore(db *gorm.DB) *JournalStore {
	return &JournalStore{db: db}
}

func (s *JournalStore) Save(ctx context.Context, entries []models.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]models.JournalEntry, len(entries))
	copy(rows, entries)

	runIDs := map[string]struct{}{}
	for i := range rows {
		rows[i].ID = 0
		runIDs[rows[i].RunID] = struct{}{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for runID := range runIDs {
			if err := tx.Where("run_id = ?", runID).Delete(&models.JournalEntry{}).Error; err != nil {
				return fmt.Errorf("failed to clear run %s: %w", runID, err)
			}
		}

		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return fmt.Errorf("failed to insert journal rows: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("JournalStore.Save: %w", err)
	}

	log.Infof("saved %d journal rows to postgres", len(rows))
	return nil
}

func (s *JournalStore) FetchRun(ctx context.Context, runID string) ([]models.JournalEntry, error) {
	var rows []models.JournalEntry
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("episode_id, trade_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("JournalStore.FetchRun: %w", err)
	}

	return rows, nil
}
