package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sagebridge/sagebridge/internal/session"
)

// SQLiteTable implements session.Table backed by SQLite. Each mutation is
// committed before returning, giving the same durability as the snapshot
// file store with finer-grained writes.
type SQLiteTable struct {
	db *DB
}

// NewSQLiteTable creates a session table using the given database.
func NewSQLiteTable(db *DB) *SQLiteTable {
	return &SQLiteTable{db: db}
}

func (t *SQLiteTable) Get(contextID string) (session.Record, bool, error) {
	var rec session.Record
	var resourceIDs string
	err := t.db.sql.QueryRow(
		`SELECT session_id, last_used, resource_ids FROM sessions WHERE context_id = ?`,
		contextID,
	).Scan(&rec.SessionID, &rec.LastUsed, &resourceIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, false, nil
	}
	if err != nil {
		return session.Record{}, false, fmt.Errorf("querying session for context %s: %w", contextID, err)
	}
	if err := json.Unmarshal([]byte(resourceIDs), &rec.ResourceIDs); err != nil {
		return session.Record{}, false, fmt.Errorf("decoding resource ids for context %s: %w", contextID, err)
	}
	return rec, true, nil
}

func (t *SQLiteTable) Upsert(contextID, sessionID string, at time.Time, resourceIDs []string) error {
	rec, ok, err := t.Get(contextID)
	if err != nil {
		return err
	}
	merged := session.MergeRecord(rec, ok, sessionID, at, resourceIDs)

	encoded, err := json.Marshal(merged.ResourceIDs)
	if err != nil {
		return fmt.Errorf("encoding resource ids: %w", err)
	}
	_, err = t.db.sql.Exec(
		`INSERT INTO sessions (context_id, session_id, last_used, resource_ids)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(context_id) DO UPDATE SET
			session_id = excluded.session_id,
			last_used = excluded.last_used,
			resource_ids = excluded.resource_ids`,
		contextID, merged.SessionID, merged.LastUsed, string(encoded),
	)
	if err != nil {
		return fmt.Errorf("upserting session for context %s: %w", contextID, err)
	}
	return nil
}

func (t *SQLiteTable) Delete(contextID string) error {
	if _, err := t.db.sql.Exec(`DELETE FROM sessions WHERE context_id = ?`, contextID); err != nil {
		return fmt.Errorf("deleting session for context %s: %w", contextID, err)
	}
	return nil
}

func (t *SQLiteTable) Snapshot() map[string]session.Record {
	rows, err := t.db.sql.Query(`SELECT context_id, session_id, last_used, resource_ids FROM sessions`)
	if err != nil {
		t.db.log.Error().Err(err).Msg("session snapshot failed")
		return nil
	}
	defer rows.Close()

	out := make(map[string]session.Record)
	for rows.Next() {
		var contextID, resourceIDs string
		var rec session.Record
		if err := rows.Scan(&contextID, &rec.SessionID, &rec.LastUsed, &resourceIDs); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(resourceIDs), &rec.ResourceIDs); err != nil {
			continue
		}
		out[contextID] = rec
	}
	return out
}

var _ session.Table = (*SQLiteTable)(nil)
