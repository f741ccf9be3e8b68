package batch

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

type recordingPipeline struct {
	processed []int
}

func (p *recordingPipeline) Process(_ context.Context, objectID int) domain.ObjectRecord {
	p.processed = append(p.processed, objectID)
	return domain.ObjectRecord{ObjectID: objectID, Status: domain.StatusCompleted}
}

type memCompletedSet struct {
	done map[int]bool
}

func (s *memCompletedSet) IsHarvested(_ context.Context, id int) (bool, error) {
	return s.done[id], nil
}

func (s *memCompletedSet) MarkHarvested(_ context.Context, id int) error {
	s.done[id] = true
	return nil
}

func fileStore(t *testing.T) *storage.FileStore {
	t.Helper()
	dir := t.TempDir()
	return storage.NewFileStore(
		filepath.Join(dir, "records.jsonl"),
		filepath.Join(dir, "state.json"),
	)
}

func newTestController(t *testing.T, store checkpoint.Store, flushEvery int) *checkpoint.Controller {
	t.Helper()
	c, err := checkpoint.NewController(context.Background(), store, flushEvery, 1, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestRun_ProcessesInOrderAndFlushes(t *testing.T) {
	store := fileStore(t)
	ctrl := newTestController(t, store, 2)
	pipe := &recordingPipeline{}
	runner := NewRunner(pipe, ctrl, nil, 0, nil, zap.NewNop())

	ids := []int{10, 20, 30, 40, 50}
	require.NoError(t, runner.Run(context.Background(), ids, 0))

	assert.Equal(t, ids, pipe.processed)
	records, err := store.ReadRecords()
	require.NoError(t, err)
	assert.Len(t, records, 5, "final forced flush drains the buffer")

	progress := runner.Progress()
	assert.Equal(t, 5, progress.Completed)
	assert.False(t, progress.Running)
}

func TestRun_StartOffsetSkipsPrefix(t *testing.T) {
	ctrl := newTestController(t, fileStore(t), 10)
	pipe := &recordingPipeline{}
	runner := NewRunner(pipe, ctrl, nil, 0, nil, zap.NewNop())

	require.NoError(t, runner.Run(context.Background(), []int{1, 2, 3, 4}, 2))
	assert.Equal(t, []int{3, 4}, pipe.processed)
}

func TestRun_ResumeSkipsCheckpointedObjects(t *testing.T) {
	store := fileStore(t)
	ids := []int{1, 2, 3, 4, 5}

	first := newTestController(t, store, 1)
	firstPipe := &recordingPipeline{}
	require.NoError(t, NewRunner(firstPipe, first, nil, 0, nil, zap.NewNop()).
		Run(context.Background(), ids[:3], 0))

	second := newTestController(t, store, 1)
	secondPipe := &recordingPipeline{}
	require.NoError(t, NewRunner(secondPipe, second, nil, 0, nil, zap.NewNop()).
		Run(context.Background(), ids, 0))

	assert.Equal(t, []int{4, 5}, secondPipe.processed)

	records, err := store.ReadRecords()
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestRun_CompletedSetSkipsAndMarks(t *testing.T) {
	set := &memCompletedSet{done: map[int]bool{20: true}}
	ctrl := newTestController(t, fileStore(t), 1)
	pipe := &recordingPipeline{}
	runner := NewRunner(pipe, ctrl, set, 0, nil, zap.NewNop())

	require.NoError(t, runner.Run(context.Background(), []int{10, 20, 30}, 0))

	assert.Equal(t, []int{10, 30}, pipe.processed)
	assert.True(t, set.done[10], "flushed objects get marked")
	assert.True(t, set.done[30])
	assert.Equal(t, 1, runner.Progress().Skipped)
}

type failingStore struct{}

func (failingStore) Load(context.Context) (checkpoint.State, bool, error) {
	return checkpoint.State{}, false, nil
}

func (failingStore) Flush(context.Context, []domain.ObjectRecord, checkpoint.State) error {
	return errors.New("disk detached")
}

func TestRun_FlushFailureHaltsBatch(t *testing.T) {
	ctrl := newTestController(t, failingStore{}, 1)
	pipe := &recordingPipeline{}
	runner := NewRunner(pipe, ctrl, nil, 0, nil, zap.NewNop())

	err := runner.Run(context.Background(), []int{1, 2, 3}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk detached")
	assert.Equal(t, []int{1}, pipe.processed, "halt after the first failed flush")
}

func TestRun_CancellationFlushesPending(t *testing.T) {
	store := fileStore(t)
	ctrl := newTestController(t, store, 100)
	pipe := &recordingPipeline{}
	runner := NewRunner(pipe, ctrl, nil, 0, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	processed := 0
	cancellingPipe := processorFunc(func(c context.Context, id int) domain.ObjectRecord {
		processed++
		if processed == 2 {
			cancel()
		}
		return pipe.Process(c, id)
	})
	runner.pipeline = cancellingPipe

	err := runner.Run(ctx, []int{1, 2, 3, 4}, 0)
	require.ErrorIs(t, err, context.Canceled)

	records, readErr := store.ReadRecords()
	require.NoError(t, readErr)
	assert.Len(t, records, 2, "buffered records flushed on cancellation")
}

type processorFunc func(context.Context, int) domain.ObjectRecord

func (f processorFunc) Process(ctx context.Context, id int) domain.ObjectRecord {
	return f(ctx, id)
}
