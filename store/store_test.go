package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSetThenGet_RoundTrips(t *testing.T) {
	s := newTestStore(t)
	id := NewID()

	ok := s.Set(Record{AnalysisID: id, Status: StatusCompleted, Result: map[string]any{"score": 95.0}})
	require.True(t, ok)

	rec, found := s.Get(id)
	require.True(t, found)
	require.Equal(t, StatusCompleted, rec.Status)
	require.False(t, rec.CreatedAt.IsZero())
}

func TestGet_MissingIsNotFoundNotError(t *testing.T) {
	s := newTestStore(t)

	rec, found := s.Get("does-not-exist")
	require.False(t, found)
	require.Equal(t, Record{}, rec)
}

func TestUpdate_MergesAndStampsTimestamp(t *testing.T) {
	s := newTestStore(t)
	id := NewID()
	require.True(t, s.Set(Record{AnalysisID: id, Status: StatusPending}))

	first, _ := s.Get(id)

	time.Sleep(5 * time.Millisecond)
	merged, ok := s.Update(id, func(r *Record) {
		r.Status = StatusRunning
	})
	require.True(t, ok)
	require.Equal(t, StatusRunning, merged.Status)
	require.True(t, merged.UpdatedAt.After(first.UpdatedAt))
}

func TestDelete_IsIdempotent(t *testing.T) {
	s := newTestStore(t)
	id := NewID()
	require.True(t, s.Set(Record{AnalysisID: id}))

	require.True(t, s.Delete(id))
	require.True(t, s.Delete(id))

	_, found := s.Get(id)
	require.False(t, found)
}

func TestList_ReturnsAllIDs(t *testing.T) {
	s := newTestStore(t)
	ids := []string{NewID(), NewID(), NewID()}
	for _, id := range ids {
		require.True(t, s.Set(Record{AnalysisID: id}))
	}

	listed, err := s.List()
	require.NoError(t, err)
	require.ElementsMatch(t, ids, listed)
}

func TestCleanupOlderThan_RemovesStaleRecordsOnly(t *testing.T) {
	s := newTestStore(t)
	staleID, freshID := NewID(), NewID()

	require.True(t, s.Set(Record{AnalysisID: staleID, UpdatedAt: time.Now().UTC().Add(-48 * time.Hour)}))
	require.True(t, s.Set(Record{AnalysisID: freshID}))

	removed, err := s.CleanupOlderThan(24)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, staleFound := s.Get(staleID)
	_, freshFound := s.Get(freshID)
	require.False(t, staleFound)
	require.True(t, freshFound)
}
