package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagebridge/sagebridge/internal/assistant"
	"github.com/sagebridge/sagebridge/internal/logging"
)

func testMux(t *testing.T, ttl time.Duration) (*Multiplexer, *assistant.MockBackend, *SnapshotTable) {
	t.Helper()
	table, err := OpenSnapshot("")
	require.NoError(t, err)
	backend := assistant.NewMockBackend()
	mux := NewMultiplexer(table, backend, ttl, logging.New(nil, "silent"))
	return mux, backend, table
}

func TestResolve_CreatesFreshSession(t *testing.T) {
	mux, backend, table := testMux(t, time.Hour)

	res, err := mux.Resolve(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, Fresh, res.Kind)
	assert.Equal(t, "sess-1", res.SessionID)
	assert.Equal(t, []string{"sess-1"}, backend.CreatedSessions)

	rec, ok, err := table.Get("c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Empty(t, rec.ResourceIDs)
}

func TestResolve_WithinTimeoutReturnsSameSession(t *testing.T) {
	mux, backend, _ := testMux(t, time.Hour)
	ctx := context.Background()

	first, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)
	second, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, Renewed, second.Kind)
	assert.Len(t, backend.CreatedSessions, 1)
}

func TestResolve_AttachedResourcesUnionAcrossCalls(t *testing.T) {
	mux, _, table := testMux(t, time.Hour)
	ctx := context.Background()

	_, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, mux.Attach("c1", []string{"file-1"}))

	_, err = mux.Resolve(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, mux.Attach("c1", []string{"file-2"}))

	rec, _, err := table.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"file-1", "file-2"}, rec.ResourceIDs)
}

func TestResolve_ExpiredSessionIsRecycled(t *testing.T) {
	mux, backend, _ := testMux(t, time.Hour)
	ctx := context.Background()

	now := time.Unix(100_000, 0)
	mux.now = func() time.Time { return now }

	first, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, mux.Attach("c1", []string{"file-1", "file-2"}))

	now = now.Add(2 * time.Hour)

	second, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, Recreated, second.Kind)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	// Every previously attached resource got a deletion attempt, and the
	// old session was torn down.
	assert.Equal(t, []string{"file-1", "file-2"}, backend.DeletedResources)
	assert.Equal(t, []string{first.SessionID}, backend.DeletedSessions)
}

func TestResolve_BoundaryIsInclusive(t *testing.T) {
	mux, _, _ := testMux(t, time.Hour)
	ctx := context.Background()

	now := time.Unix(100_000, 0)
	mux.now = func() time.Time { return now }

	first, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)

	// Exactly at the timeout the session is still live.
	now = now.Add(time.Hour)
	second, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, Renewed, second.Kind)
	assert.Equal(t, first.SessionID, second.SessionID)
}

// failingTable reports a lookup failure on every Get.
type failingTable struct {
	*SnapshotTable
	getErr error
}

func (f *failingTable) Get(string) (Record, bool, error) {
	return Record{}, false, f.getErr
}

func TestResolve_LookupFailureDoesNotCreateSession(t *testing.T) {
	inner, err := OpenSnapshot("")
	require.NoError(t, err)
	table := &failingTable{SnapshotTable: inner, getErr: errors.New("disk fault")}
	backend := assistant.NewMockBackend()
	mux := NewMultiplexer(table, backend, time.Hour, logging.New(nil, "silent"))

	_, err = mux.Resolve(context.Background(), "c1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk fault")
	// A lookup failure is not absence: no session may be created for a
	// context that might already have a live one.
	assert.Empty(t, backend.CreatedSessions)
}

func TestEvict_LookupFailurePropagates(t *testing.T) {
	inner, err := OpenSnapshot("")
	require.NoError(t, err)
	table := &failingTable{SnapshotTable: inner, getErr: errors.New("disk fault")}
	backend := assistant.NewMockBackend()
	mux := NewMultiplexer(table, backend, time.Hour, logging.New(nil, "silent"))

	err = mux.Evict(context.Background(), "c1")
	require.Error(t, err)
	assert.Empty(t, backend.DeletedSessions)
}

func TestAttach_UnknownContextFails(t *testing.T) {
	mux, _, _ := testMux(t, time.Hour)
	err := mux.Attach("ghost", []string{"file-1"})
	require.Error(t, err)
}

func TestEvict_NoRecordIsNoop(t *testing.T) {
	mux, backend, _ := testMux(t, time.Hour)
	require.NoError(t, mux.Evict(context.Background(), "ghost"))
	assert.Empty(t, backend.DeletedSessions)
}

func TestEvict_RemovesRecordAndSweepsResources(t *testing.T) {
	mux, backend, table := testMux(t, time.Hour)
	ctx := context.Background()

	res, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, mux.Attach("c1", []string{"file-1"}))

	require.NoError(t, mux.Evict(ctx, "c1"))

	_, ok, err := table.Get("c1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"file-1"}, backend.DeletedResources)
	assert.Equal(t, []string{res.SessionID}, backend.DeletedSessions)
}

func TestEvict_OneFailureDoesNotBlockSweep(t *testing.T) {
	mux, backend, table := testMux(t, time.Hour)
	ctx := context.Background()

	res, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, mux.Attach("c1", []string{"file-1", "file-2", "file-3"}))

	backend.DeleteResourceErr["file-2"] = errors.New("boom")

	err = mux.Evict(ctx, "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file-2")

	// The failing resource did not stop the rest of the sweep.
	assert.Equal(t, []string{"file-1", "file-3"}, backend.DeletedResources)
	assert.Equal(t, []string{res.SessionID}, backend.DeletedSessions)
	_, ok, err := table.Get("c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvict_ThenResolveCreatesDifferentSession(t *testing.T) {
	mux, _, _ := testMux(t, time.Hour)
	ctx := context.Background()

	first, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, mux.Evict(ctx, "c1"))

	second, err := mux.Resolve(ctx, "c1")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, Fresh, second.Kind)
}
