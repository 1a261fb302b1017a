package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SnapshotRecord is one persisted discovery result.
type SnapshotRecord struct {
	Key      string `badgerhold:"key"`
	Provider string `badgerholdIndex:"Provider"`
	SavedAt  time.Time
	// Payload is the JSON encoding of the discovery result.
	Payload []byte
}

// SnapshotStorage implements interfaces.SnapshotStorage using BadgerDB.
type SnapshotStorage struct {
	db     *BadgerDB
	logger *common.Logger
}

// NewSnapshotStorage creates a snapshot storage backed by BadgerDB.
func NewSnapshotStorage(db *BadgerDB, logger *common.Logger) *SnapshotStorage {
	return &SnapshotStorage{
		db:     db,
		logger: logger,
	}
}

// Save stores result under key, replacing any earlier record.
func (s *SnapshotStorage) Save(_ context.Context, key string, result *models.DiscoveryResult) error {
	if result == nil {
		return fmt.Errorf("cannot save nil discovery result")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", key, err)
	}
	record := SnapshotRecord{
		Key:      key,
		Provider: result.Provider,
		SavedAt:  time.Now().UTC(),
		Payload:  payload,
	}
	if err := s.db.Store().Upsert(key, &record); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int("bytes", len(payload)).Msg("snapshot saved")
	return nil
}

// Load retrieves the result stored under key.
func (s *SnapshotStorage) Load(_ context.Context, key string) (*models.DiscoveryResult, error) {
	var record SnapshotRecord
	if err := s.db.Store().Get(key, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewError(models.ErrKindNotFound, "no snapshot stored for %s", key)
		}
		return nil, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	var result models.DiscoveryResult
	if err := json.Unmarshal(record.Payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return &result, nil
}

// Delete removes the record stored under key.
func (s *SnapshotStorage) Delete(_ context.Context, key string) error {
	err := s.db.Store().Delete(key, SnapshotRecord{})
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored snapshot key.
func (s *SnapshotStorage) Keys(_ context.Context) ([]string, error) {
	var records []SnapshotRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key)
	}
	return keys, nil
}
