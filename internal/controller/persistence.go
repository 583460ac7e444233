package controller

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"pkg.jsn.cam/wordmill/pkg/storage"
)

// RunRecord is the durable snapshot of one run's progress, checkpointed on
// every state transition.
type RunRecord struct {
	ID       string    `json:"id"`
	State    State     `json:"state"`
	Mappers  int       `json:"mappers"`
	Reducers int       `json:"reducers"`
	InputDir string    `json:"input_dir"`
	Error    string    `json:"error,omitempty"`
	Updated  time.Time `json:"updated"`
}

var runsBucket = []byte("runs")

// RunStore persists run records behind a storage backend.
type RunStore struct {
	backend storage.Backend
}

// NewRunStore creates a store over the given backend, ensuring its bucket
// exists.
func NewRunStore(backend storage.Backend) (*RunStore, error) {
	if err := backend.CreateBucket(runsBucket); err != nil {
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}

	return &RunStore{backend: backend}, nil
}

// SaveRun writes or replaces one run record.
func (s *RunStore) SaveRun(record RunRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	return s.backend.Put(runsBucket, []byte(record.ID), encoded)
}

// LoadRun reads one run record. A missing ID returns (RunRecord{}, false, nil).
func (s *RunStore) LoadRun(runID string) (RunRecord, bool, error) {
	raw, err := s.backend.Get(runsBucket, []byte(runID))
	if err != nil {
		return RunRecord{}, false, err
	}
	if raw == nil {
		return RunRecord{}, false, nil
	}

	var record RunRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return RunRecord{}, false, fmt.Errorf("decode run record: %w", err)
	}

	return record, true, nil
}

// ListRuns returns every stored record, most recently updated first.
func (s *RunStore) ListRuns() ([]RunRecord, error) {
	var records []RunRecord

	err := s.backend.ForEach(runsBucket, func(_, v []byte) error {
		var record RunRecord
		if err := json.Unmarshal(v, &record); err != nil {
			return fmt.Errorf("decode run record: %w", err)
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Updated.After(records[j].Updated)
	})

	return records, nil
}

// Close closes the underlying backend.
func (s *RunStore) Close() error {
	return s.backend.Close()
}
