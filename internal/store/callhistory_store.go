package store

import (
	"path/filepath"
	"sync"

	"meshtalk/internal/domain"
)

const (
	callsFilename = "calls.json"
	// maxCallRecords bounds the history file; older records are dropped.
	maxCallRecords = 200
)

// CallHistoryFileStore persists finished calls to disk.
type CallHistoryFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewCallHistoryFileStore returns a CallHistoryFileStore rooted at dir.
func NewCallHistoryFileStore(dir string) *CallHistoryFileStore {
	return &CallHistoryFileStore{dir: dir}
}

// AppendCallRecord adds rec as the newest entry.
func (s *CallHistoryFileStore) AppendCallRecord(rec domain.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, callsFilename)
	var records []domain.CallRecord
	if err := readJSON(path, &records); err != nil {
		return domain.Wrap(domain.ErrStorage, err)
	}
	records = append(records, rec)
	if len(records) > maxCallRecords {
		records = records[len(records)-maxCallRecords:]
	}
	if err := writeJSON(path, records, 0o600); err != nil {
		return domain.Wrap(domain.ErrStorage, err)
	}
	return nil
}

// ListCallRecords returns up to limit most recent records, oldest first.
// limit <= 0 returns everything.
func (s *CallHistoryFileStore) ListCallRecords(limit int) ([]domain.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []domain.CallRecord
	if err := readJSON(filepath.Join(s.dir, callsFilename), &records); err != nil {
		return nil, domain.Wrap(domain.ErrStorage, err)
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// Compile-time assertion that CallHistoryFileStore implements domain.CallHistoryStore.
var _ domain.CallHistoryStore = (*CallHistoryFileStore)(nil)
