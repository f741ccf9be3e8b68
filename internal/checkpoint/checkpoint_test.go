package checkpoint_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"harvester/internal/checkpoint"
	"harvester/internal/domain"
	"harvester/internal/storage"
)

type flakyStore struct {
	failures int
	flushes  int
	records  []domain.ObjectRecord
	state    checkpoint.State
	loaded   bool
}

func (s *flakyStore) Load(context.Context) (checkpoint.State, bool, error) {
	return s.state, s.loaded, nil
}

func (s *flakyStore) Flush(_ context.Context, records []domain.ObjectRecord, state checkpoint.State) error {
	s.flushes++
	if s.failures > 0 {
		s.failures--
		return errors.New("disk full")
	}
	s.records = append(s.records, records...)
	s.state = state
	return nil
}

func rec(id int) domain.ObjectRecord {
	return domain.ObjectRecord{ObjectID: id, Status: domain.StatusCompleted}
}

func newController(t *testing.T, store checkpoint.Store, flushEvery int) *checkpoint.Controller {
	t.Helper()
	c, err := checkpoint.NewController(context.Background(), store, flushEvery, 2, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestController_FlushCadence(t *testing.T) {
	store := &flakyStore{}
	c := newController(t, store, 3)

	for i := 0; i < 2; i++ {
		c.Record(rec(i), i)
		flushed, err := c.Flush(context.Background(), false)
		require.NoError(t, err)
		assert.Nil(t, flushed, "below cadence, nothing durable yet")
	}

	c.Record(rec(2), 2)
	flushed, err := c.Flush(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, flushed, 3)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, 2, store.state.LastIndex)
}

func TestController_ForcedFlushDrainsBuffer(t *testing.T) {
	store := &flakyStore{}
	c := newController(t, store, 100)

	c.Record(rec(0), 0)
	flushed, err := c.Flush(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, flushed, 1)
	assert.Len(t, store.records, 1)
}

func TestController_FlushRetriesThenSucceeds(t *testing.T) {
	store := &flakyStore{failures: 1}
	c := newController(t, store, 1)

	c.Record(rec(0), 0)
	flushed, err := c.Flush(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, flushed, 1)
	assert.Equal(t, 2, store.flushes)
}

func TestController_PersistentFlushFailureSurfaces(t *testing.T) {
	store := &flakyStore{failures: 10}
	c := newController(t, store, 1)

	c.Record(rec(0), 0)
	_, err := c.Flush(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, c.Pending(), "failed flush keeps the buffer")
}

// Simulates the interruption scenario: ten objects, the process dies right
// after the flush that covered index 7. The restarted run must skip 0..7,
// process 8..9, and the durable output must hold exactly one record each.
func TestController_InterruptAndResume(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFileStore(
		filepath.Join(dir, "records.jsonl"),
		filepath.Join(dir, "state.json"),
	)
	ids := []int{101, 102, 103, 104, 105, 106, 107, 108, 109, 110}

	first := newController(t, store, 4)
	for i := 0; i <= 7; i++ {
		require.True(t, first.ShouldProcess(i))
		first.Record(rec(ids[i]), i)
		_, err := first.Flush(context.Background(), false)
		require.NoError(t, err)
	}
	_, err := first.Flush(context.Background(), true)
	require.NoError(t, err)
	// Process "dies" here; `first` is abandoned with everything flushed.

	second := newController(t, store, 4)
	assert.Equal(t, 7, second.LastIndex())
	var processed []int
	for i := range ids {
		if !second.ShouldProcess(i) {
			continue
		}
		processed = append(processed, ids[i])
		second.Record(rec(ids[i]), i)
	}
	_, err = second.Flush(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []int{109, 110}, processed)

	records, err := store.ReadRecords()
	require.NoError(t, err)
	require.Len(t, records, 10)
	counts := make(map[int]int)
	for _, r := range records {
		counts[r.ObjectID]++
	}
	for _, id := range ids {
		assert.Equal(t, 1, counts[id], "object %d must appear exactly once", id)
	}
}

func TestFileStore_LoadMissingStateIsFresh(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFileStore(
		filepath.Join(dir, "records.jsonl"),
		filepath.Join(dir, "state.json"),
	)
	_, found, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)

	c := newController(t, store, 1)
	assert.Equal(t, -1, c.LastIndex())
	assert.True(t, c.ShouldProcess(0))
}
