// Package checkpoint provides the resume controller: per-run progress state,
// an output buffer, and cadence-based flushing to a durable store.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"harvester/internal/domain"
)

// State is the durable progress marker. LastIndex is the highest completed
// position in the object-ID sequence; -1 means nothing completed yet.
type State struct {
	LastIndex int `json:"last_index"`
}

// Store persists flushed records together with the updated state. A Flush
// must be atomic enough that reloading after a crash reproduces the last
// successful flush exactly: records and state move together.
type Store interface {
	Load(ctx context.Context) (State, bool, error)
	Flush(ctx context.Context, records []domain.ObjectRecord, state State) error
}

// Controller owns CheckpointState for one batch run. It is not safe for
// concurrent use; the orchestrator drives it from a single goroutine.
type Controller struct {
	store      Store
	state      State
	pending    []domain.ObjectRecord
	flushEvery int
	maxRetries int
	retryWait  time.Duration
	logger     *zap.Logger
}

func NewController(ctx context.Context, store Store, flushEvery, maxRetries int, retryWait time.Duration, logger *zap.Logger) (*Controller, error) {
	if flushEvery < 1 {
		flushEvery = 1
	}
	state, found, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint state: %w", err)
	}
	if !found {
		state = State{LastIndex: -1}
	} else {
		logger.Info("resuming from checkpoint", zap.Int("last_index", state.LastIndex))
	}
	return &Controller{
		store:      store,
		state:      state,
		flushEvery: flushEvery,
		maxRetries: maxRetries,
		retryWait:  retryWait,
		logger:     logger,
	}, nil
}

// LastIndex reports the highest completed sequence position.
func (c *Controller) LastIndex() int { return c.state.LastIndex }

// ShouldProcess is false for positions already completed by a prior run.
func (c *Controller) ShouldProcess(index int) bool {
	return index > c.state.LastIndex
}

// Record buffers one finished object and advances the completed index.
func (c *Controller) Record(rec domain.ObjectRecord, index int) {
	c.pending = append(c.pending, rec)
	c.state.LastIndex = index
}

// MarkSkipped advances the completed index past an object that needed no
// processing (e.g. found in the completed-set from an earlier run).
func (c *Controller) MarkSkipped(index int) {
	if index > c.state.LastIndex {
		c.state.LastIndex = index
	}
}

// Pending reports the number of buffered, not yet durable records.
func (c *Controller) Pending() int { return len(c.pending) }

// Flush persists the buffer and the updated index once the buffer reaches
// the configured cadence, or immediately when forced. It returns the records
// made durable by this call, nil when the cadence was not yet due. A write
// failure is retried with back-off; persistent failure is returned to the
// caller because it threatens the resume guarantee.
func (c *Controller) Flush(ctx context.Context, force bool) ([]domain.ObjectRecord, error) {
	if !force && len(c.pending) < c.flushEvery {
		return nil, nil
	}
	if len(c.pending) == 0 && c.state.LastIndex < 0 {
		return nil, nil
	}

	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying checkpoint flush",
				zap.Int("attempt", attempt), zap.Error(err))
			select {
			case <-time.After(c.retryWait * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err = c.store.Flush(ctx, c.pending, c.state); err == nil {
			flushed := c.pending
			c.pending = nil
			c.logger.Info("checkpoint flushed",
				zap.Int("records", len(flushed)),
				zap.Int("last_index", c.state.LastIndex))
			return flushed, nil
		}
	}
	return nil, fmt.Errorf("checkpoint flush failed after %d attempts: %w", c.maxRetries+1, err)
}
