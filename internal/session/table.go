// Package session maps chat contexts onto backend conversation sessions:
// the durable session table and the multiplexer that resolves, renews,
// and recycles sessions with a lazy idle-timeout.
package session

import "time"

// Record tracks the backend session bound to one context. ResourceIDs
// accumulates every resource uploaded during the session's lifetime so
// eviction can clean them up.
type Record struct {
	SessionID   string   `json:"session_id"`
	LastUsed    int64    `json:"last_used"`
	ResourceIDs []string `json:"attached_resource_ids"`
}

// Table is the durable context → record mapping. Implementations persist
// every mutation before returning. Callers serialize access per context;
// the table itself only guarantees last-writer-wins.
type Table interface {
	// Get returns the record for a context, if one exists. A non-nil
	// error means the lookup itself failed; callers must not treat that
	// as absence, or a store fault would orphan live backend state.
	Get(contextID string) (Record, bool, error)

	// Upsert merges into an existing record: appends resource ids and
	// bumps LastUsed. When no record exists it creates one with an empty
	// resource list; ids can only be attached to a record that already
	// exists.
	Upsert(contextID, sessionID string, at time.Time, resourceIDs []string) error

	// Delete removes a context's record. Removing an absent record is a
	// no-op.
	Delete(contextID string) error

	// Snapshot returns a copy of the full mapping.
	Snapshot() map[string]Record
}

// MergeRecord implements the Table upsert contract for store backends:
// create with an empty resource list, or merge by appending ids and
// bumping LastUsed (never backwards).
func MergeRecord(rec Record, exists bool, sessionID string, at time.Time, resourceIDs []string) Record {
	if !exists {
		return Record{
			SessionID:   sessionID,
			LastUsed:    at.Unix(),
			ResourceIDs: []string{},
		}
	}
	rec.SessionID = sessionID
	if ts := at.Unix(); ts > rec.LastUsed {
		rec.LastUsed = ts
	}
	rec.ResourceIDs = append(rec.ResourceIDs, resourceIDs...)
	return rec
}
