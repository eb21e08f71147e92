package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"islandga/internal/model"
)

const (
	runPrefix        = "run/"
	historyPrefix    = "history/"
	populationPrefix = "population/"
)

// LevelDBStore keeps every record as a JSON value under a typed key prefix.
type LevelDBStore struct {
	path string

	mu sync.RWMutex
	db *leveldb.DB
}

func NewLevelDBStore(path string) *LevelDBStore {
	return &LevelDBStore{path: path}
}

func (s *LevelDBStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("leveldb path is required")
	}
	if s.db != nil {
		return nil
	}
	db, err := leveldb.OpenFile(s.path, nil)
	if err != nil {
		return fmt.Errorf("open leveldb %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

func (s *LevelDBStore) SaveRun(_ context.Context, run model.RunRecord) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return s.put(runPrefix+run.ID, payload)
}

func (s *LevelDBStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	payload, ok, err := s.get(runPrefix + id)
	if err != nil || !ok {
		return model.RunRecord{}, false, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *LevelDBStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	iter := db.NewIterator(util.BytesPrefix([]byte(runPrefix)), nil)
	defer iter.Release()

	var out []model.RunRecord
	for iter.Next() {
		run, err := DecodeRun(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode run %s: %w", iter.Key(), err)
		}
		out = append(out, run)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sortRunsNewestFirst(out)
	return out, nil
}

func (s *LevelDBStore) DeleteRun(_ context.Context, id string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete([]byte(runPrefix + id))
	batch.Delete([]byte(historyPrefix + id))
	batch.Delete([]byte(populationPrefix + id))
	return db.Write(batch, nil)
}

func (s *LevelDBStore) SaveGenerationHistory(_ context.Context, history model.GenerationHistory) error {
	payload, err := EncodeGenerationHistory(history)
	if err != nil {
		return err
	}
	return s.put(historyPrefix+history.RunID, payload)
}

func (s *LevelDBStore) GetGenerationHistory(_ context.Context, runID string) (model.GenerationHistory, bool, error) {
	payload, ok, err := s.get(historyPrefix + runID)
	if err != nil || !ok {
		return model.GenerationHistory{}, false, err
	}
	history, err := DecodeGenerationHistory(payload)
	if err != nil {
		return model.GenerationHistory{}, false, fmt.Errorf("decode generation history %s: %w", runID, err)
	}
	return history, true, nil
}

func (s *LevelDBStore) SavePopulationSnapshot(_ context.Context, snapshot model.PopulationSnapshot) error {
	payload, err := EncodePopulationSnapshot(snapshot)
	if err != nil {
		return err
	}
	return s.put(populationPrefix+snapshot.RunID, payload)
}

func (s *LevelDBStore) GetPopulationSnapshot(_ context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	payload, ok, err := s.get(populationPrefix + runID)
	if err != nil || !ok {
		return model.PopulationSnapshot{}, false, err
	}
	snapshot, err := DecodePopulationSnapshot(payload)
	if err != nil {
		return model.PopulationSnapshot{}, false, fmt.Errorf("decode population snapshot %s: %w", runID, err)
	}
	return snapshot, true, nil
}

func (s *LevelDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *LevelDBStore) put(key string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.Put([]byte(key), payload, nil)
}

func (s *LevelDBStore) get(key string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	payload, err := db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *LevelDBStore) getDB() (*leveldb.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}
