package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sagebridge/sagebridge/internal/assistant"
	"github.com/sagebridge/sagebridge/internal/logging"
)

// ResolutionKind tags how a context's session was obtained.
type ResolutionKind int

const (
	// Fresh means no record existed and a new session was created.
	Fresh ResolutionKind = iota
	// Renewed means a live record was found within the idle timeout.
	Renewed
	// Recreated means the old session expired, was evicted, and a new
	// one was created in its place.
	Recreated
)

func (k ResolutionKind) String() string {
	switch k {
	case Fresh:
		return "fresh"
	case Renewed:
		return "renewed"
	case Recreated:
		return "recreated"
	}
	return fmt.Sprintf("ResolutionKind(%d)", int(k))
}

// Resolution is the outcome of resolving a context to a backend session.
type Resolution struct {
	SessionID string
	Kind      ResolutionKind
}

// Multiplexer maps many chat contexts onto backend sessions, creating
// them on demand and recycling them after the idle timeout. Callers must
// serialize operations per context; the multiplexer does not lock across
// its read-modify-write cycles.
type Multiplexer struct {
	table   Table
	backend assistant.Backend
	ttl     time.Duration
	now     func() time.Time
	log     *logging.Logger
}

// NewMultiplexer builds a multiplexer over the given table and backend.
func NewMultiplexer(table Table, backend assistant.Backend, ttl time.Duration, log *logging.Logger) *Multiplexer {
	return &Multiplexer{
		table:   table,
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		log:     log.Sub("session"),
	}
}

// Resolve returns a usable session for the context: the recorded one when
// it is still within the idle timeout, otherwise a freshly created one
// (evicting the expired session first). The expiry path runs as a bounded
// loop, not recursion.
func (m *Multiplexer) Resolve(ctx context.Context, contextID string) (Resolution, error) {
	evicted := false
	for pass := 0; pass < 2; pass++ {
		rec, ok, err := m.table.Get(contextID)
		if err != nil {
			return Resolution{}, fmt.Errorf("looking up session for context %s: %w", contextID, err)
		}
		if !ok {
			sessionID, err := m.backend.CreateSession(ctx)
			if err != nil {
				return Resolution{}, fmt.Errorf("creating session for context %s: %w", contextID, err)
			}
			if err := m.table.Upsert(contextID, sessionID, m.now(), nil); err != nil {
				return Resolution{}, fmt.Errorf("recording session for context %s: %w", contextID, err)
			}
			kind := Fresh
			if evicted {
				kind = Recreated
			}
			m.log.Info().
				Str("contextId", contextID).
				Str("sessionId", sessionID).
				Str("kind", kind.String()).
				Msg("session created")
			return Resolution{SessionID: sessionID, Kind: kind}, nil
		}

		if m.now().Sub(time.Unix(rec.LastUsed, 0)) <= m.ttl {
			if err := m.table.Upsert(contextID, rec.SessionID, m.now(), nil); err != nil {
				return Resolution{}, fmt.Errorf("refreshing session for context %s: %w", contextID, err)
			}
			return Resolution{SessionID: rec.SessionID, Kind: Renewed}, nil
		}

		// Expired: evict and take the create path on the next pass.
		// Sweep failures are non-fatal here; the record is gone either way.
		if err := m.Evict(ctx, contextID); err != nil {
			m.log.Warn().Err(err).Str("contextId", contextID).Msg("eviction reported failures")
		}
		evicted = true
	}
	return Resolution{}, fmt.Errorf("session resolution for context %s did not settle", contextID)
}

// Attach appends freshly uploaded resource ids to the context's record
// and bumps its last-used time. Must be called before the turn is
// submitted so a crash cannot leak untracked resources.
func (m *Multiplexer) Attach(contextID string, resourceIDs []string) error {
	rec, ok, err := m.table.Get(contextID)
	if err != nil {
		return fmt.Errorf("looking up session for context %s: %w", contextID, err)
	}
	if !ok {
		return fmt.Errorf("no session record for context %s", contextID)
	}
	return m.table.Upsert(contextID, rec.SessionID, m.now(), resourceIDs)
}

// Evict tears down a context's session: every attached resource gets a
// deletion attempt, then the backend session is deleted, then the record
// is removed. Failures are collected rather than aborting the sweep, so
// one orphaned resource never blocks recycling. Evicting an unknown
// context is a no-op.
func (m *Multiplexer) Evict(ctx context.Context, contextID string) error {
	rec, ok, err := m.table.Get(contextID)
	if err != nil {
		return fmt.Errorf("looking up session for context %s: %w", contextID, err)
	}
	if !ok {
		return nil
	}

	var errs []error
	for _, resourceID := range rec.ResourceIDs {
		if err := m.backend.DeleteResource(ctx, resourceID); err != nil {
			errs = append(errs, fmt.Errorf("deleting resource %s: %w", resourceID, err))
		}
	}
	if err := m.backend.DeleteSession(ctx, rec.SessionID); err != nil {
		errs = append(errs, fmt.Errorf("deleting session %s: %w", rec.SessionID, err))
	}
	if err := m.table.Delete(contextID); err != nil {
		errs = append(errs, fmt.Errorf("removing record for context %s: %w", contextID, err))
	}

	m.log.Info().
		Str("contextId", contextID).
		Str("sessionId", rec.SessionID).
		Int("resources", len(rec.ResourceIDs)).
		Int("failures", len(errs)).
		Msg("session evicted")
	return errors.Join(errs...)
}
