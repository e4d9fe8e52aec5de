package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SnapshotTable is a Table persisted as a single JSON file holding the
// full mapping. Every mutation rewrites the file via a temp file and an
// atomic rename. An empty path keeps the table memory-only, which is what
// tests and the gateway-only setup use.
type SnapshotTable struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
}

// OpenSnapshot loads the table from path, starting empty when the file
// does not exist yet.
func OpenSnapshot(path string) (*SnapshotTable, error) {
	t := &SnapshotTable{
		path:    path,
		records: make(map[string]Record),
	}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("reading session table %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &t.records); err != nil {
		return nil, fmt.Errorf("parsing session table %s: %w", path, err)
	}
	return t, nil
}

func (t *SnapshotTable) Get(contextID string) (Record, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[contextID]
	return rec, ok, nil
}

func (t *SnapshotTable) Upsert(contextID, sessionID string, at time.Time, resourceIDs []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[contextID]
	t.records[contextID] = MergeRecord(rec, ok, sessionID, at, resourceIDs)
	return t.persist()
}

func (t *SnapshotTable) Delete(contextID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[contextID]; !ok {
		return nil
	}
	delete(t.records, contextID)
	return t.persist()
}

func (t *SnapshotTable) Snapshot() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Record, len(t.records))
	for k, v := range t.records {
		out[k] = v
	}
	return out
}

// persist rewrites the full table. Called with t.mu held.
func (t *SnapshotTable) persist() error {
	if t.path == "" {
		return nil
	}
	data, err := json.Marshal(t.records)
	if err != nil {
		return fmt.Errorf("encoding session table: %w", err)
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session table directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("creating session table temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing session table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing session table temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing session table: %w", err)
	}
	return nil
}

var _ Table = (*SnapshotTable)(nil)
