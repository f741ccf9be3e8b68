// Package batch drives the whole harvest: it walks the object-ID sequence,
// delegates each object to the pipeline, and feeds results through the
// checkpoint controller. It is the only component aware of the full batch.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"harvester/internal/checkpoint"
	"harvester/internal/domain"
	"harvester/internal/monitoring"
)

// Processor is the per-object pipeline.
type Processor interface {
	Process(ctx context.Context, objectID int) domain.ObjectRecord
}

// CompletedSet is the optional cross-run skip cache (Redis-backed in
// production). Both methods are best-effort; errors only log.
type CompletedSet interface {
	IsHarvested(ctx context.Context, objectID int) (bool, error)
	MarkHarvested(ctx context.Context, objectID int) error
}

// Progress is a point-in-time snapshot for the status endpoint.
type Progress struct {
	Total        int    `json:"total"`
	Completed    int    `json:"completed"`
	Skipped      int    `json:"skipped"`
	LastObjectID int    `json:"last_object_id"`
	LastStatus   string `json:"last_status"`
	Running      bool   `json:"running"`
}

// Runner orchestrates one batch run.
type Runner struct {
	pipeline    Processor
	controller  *checkpoint.Controller
	completed   CompletedSet // nil when Redis is not configured
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	politeDelay time.Duration

	mu       sync.Mutex
	progress Progress
}

func NewRunner(p Processor, c *checkpoint.Controller, completed CompletedSet, politeDelay time.Duration, m *monitoring.Metrics, logger *zap.Logger) *Runner {
	return &Runner{
		pipeline:    p,
		controller:  c,
		completed:   completed,
		metrics:     m,
		logger:      logger,
		politeDelay: politeDelay,
	}
}

// Progress returns the current batch snapshot.
func (r *Runner) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Run processes objectIDs from startOffset in order. Objects completed by a
// prior run are skipped via the checkpoint index (and the completed-set when
// configured). A flush failure aborts the run; everything else degrades per
// object. Cancellation flushes what is buffered before returning.
func (r *Runner) Run(ctx context.Context, objectIDs []int, startOffset int) error {
	total := len(objectIDs)
	if startOffset < 0 {
		startOffset = 0
	}
	if startOffset > total {
		startOffset = total
	}
	r.setProgress(func(p *Progress) {
		p.Total = total
		p.Running = true
	})
	defer r.setProgress(func(p *Progress) { p.Running = false })

	r.logger.Info("starting batch",
		zap.Int("total", total), zap.Int("start_offset", startOffset),
		zap.Int("checkpoint_index", r.controller.LastIndex()))

	for i := startOffset; i < total; i++ {
		select {
		case <-ctx.Done():
			r.logger.Info("batch cancelled, flushing pending records")
			if err := r.finalFlush(context.Background()); err != nil {
				r.logger.Error("flush on cancellation failed", zap.Error(err))
			}
			return ctx.Err()
		default:
		}

		objectID := objectIDs[i]
		if !r.controller.ShouldProcess(i) {
			r.skip(i, objectID, "checkpoint")
			continue
		}
		if r.completed != nil {
			if done, err := r.completed.IsHarvested(ctx, objectID); err != nil {
				r.logger.Error("completed-set lookup failed", zap.Error(err))
			} else if done {
				r.controller.MarkSkipped(i)
				r.skip(i, objectID, "completed_set")
				continue
			}
		}

		r.logger.Info("processing object",
			zap.Int("position", i+1), zap.Int("total", total), zap.Int("object_id", objectID))
		rec := r.pipeline.Process(ctx, objectID)
		r.controller.Record(rec, i)
		r.metrics.IncProcessed(string(rec.Status))
		r.setProgress(func(p *Progress) {
			p.Completed++
			p.LastObjectID = objectID
			p.LastStatus = string(rec.Status)
		})
		r.metrics.SetProgress(float64(i+1) / float64(total))

		flushed, err := r.controller.Flush(ctx, false)
		if err != nil {
			return fmt.Errorf("batch halted: %w", err)
		}
		r.markFlushed(ctx, flushed)

		if r.politeDelay > 0 {
			select {
			case <-time.After(r.politeDelay):
			case <-ctx.Done():
			}
		}
	}

	if err := r.finalFlush(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	r.logger.Info("batch complete", zap.Int("total", total))
	return nil
}

func (r *Runner) finalFlush(ctx context.Context) error {
	flushed, err := r.controller.Flush(ctx, true)
	if err != nil {
		r.metrics.IncErrors("flush_failed")
		return err
	}
	r.markFlushed(ctx, flushed)
	return nil
}

// markFlushed records durably-written objects in the completed-set. Only
// flushed records are marked: a buffered record may still be lost with its
// batch, and a marked-but-missing object would never be re-harvested.
func (r *Runner) markFlushed(ctx context.Context, flushed []domain.ObjectRecord) {
	if len(flushed) > 0 {
		r.metrics.ObserveFlush(len(flushed))
	}
	if r.completed == nil {
		return
	}
	for i := range flushed {
		if err := r.completed.MarkHarvested(ctx, flushed[i].ObjectID); err != nil {
			r.logger.Error("completed-set mark failed",
				zap.Int("object_id", flushed[i].ObjectID), zap.Error(err))
			return
		}
	}
}

func (r *Runner) skip(index, objectID int, reason string) {
	r.logger.Info("skipping completed object",
		zap.Int("position", index+1), zap.Int("object_id", objectID),
		zap.String("reason", reason))
	r.setProgress(func(p *Progress) { p.Skipped++ })
}

func (r *Runner) setProgress(update func(*Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.progress)
}
