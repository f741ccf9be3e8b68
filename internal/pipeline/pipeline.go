// Package pipeline composes the per-object extraction: structured feed
// lookup, page render, tab harvest, description fallback, image
// materialization and sanitization, merged into one ObjectRecord.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"harvester/internal/domain"
	"harvester/internal/extract"
	"harvester/internal/images"
	"harvester/internal/monitoring"
	"harvester/internal/sanitize"
)

// Feed is the structured-feed lookup the pipeline consumes. A nil record
// with a nil error means the feed has no entry, which is tolerated.
type Feed interface {
	Lookup(ctx context.Context, objectID int) (*domain.StructuredRecord, error)
}

// Page is one object's rendered, interactive page session. It is owned by
// the pipeline for the duration of one Process call and closed on every
// exit path.
type Page interface {
	extract.TabPage
	HTML() string
	Title() string
	ImageURLs() []string
	Close()
}

// Renderer opens rendered page sessions. Load must respect a bounded
// navigation timeout and return an error rather than block.
type Renderer interface {
	Load(ctx context.Context, url string) (Page, error)
}

// Options carries the per-object extraction tunables.
type Options struct {
	PageURLTemplate string
	TabNames        []string
	TabOpts         extract.TabOptions
	DescOpts        extract.DescriptionOptions
}

// Pipeline turns one ObjectID into one ObjectRecord. It never returns an
// error: every expected failure mode degrades to a partially populated
// record, and anything unclassified is recovered into an error-marked one.
type Pipeline struct {
	feed     Feed
	renderer Renderer
	images   *images.Manager
	opts     Options
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func New(feed Feed, renderer Renderer, imgs *images.Manager, opts Options, m *monitoring.Metrics, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		feed:     feed,
		renderer: renderer,
		images:   imgs,
		opts:     opts,
		metrics:  m,
		logger:   logger,
	}
}

// Process extracts one object. The returned record always carries the
// requested ObjectID and a status; it is safe to persist regardless of how
// much of the extraction succeeded.
func (p *Pipeline) Process(ctx context.Context, objectID int) (rec domain.ObjectRecord) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("unclassified extraction failure",
				zap.Int("object_id", objectID), zap.Any("panic", r))
			p.metrics.IncErrors("extraction_error")
			rec = domain.ObjectRecord{
				ObjectID:    objectID,
				Status:      domain.StatusError,
				FailReason:  fmt.Sprint(r),
				HarvestedAt: time.Now(),
			}
			sanitize.Record(&rec)
		}
	}()

	rec = domain.ObjectRecord{
		ObjectID:    objectID,
		Status:      domain.StatusCompleted,
		HarvestedAt: time.Now(),
	}

	feedRec, err := p.feed.Lookup(ctx, objectID)
	if err != nil {
		p.logger.Warn("feed lookup failed, continuing page-only",
			zap.Int("object_id", objectID), zap.Error(err))
	}
	if feedRec != nil {
		rec.Fields = *feedRec
	}

	rec.PageURL = fmt.Sprintf(p.opts.PageURLTemplate, objectID)
	if rec.Fields.ObjectURL == "" {
		rec.Fields.ObjectURL = rec.PageURL
	}

	page, err := p.renderer.Load(ctx, rec.PageURL)
	if err != nil {
		p.logger.Warn("render failed, keeping feed fields only",
			zap.Int("object_id", objectID), zap.Error(err))
		p.metrics.IncErrors("render_failed")
		rec.Status = domain.StatusRenderFailed
		rec.FailReason = err.Error()
		sanitize.Record(&rec)
		return rec
	}
	defer page.Close()

	rec.PageTitle = page.Title()
	if rec.Fields.Title == "" {
		rec.Fields.Title = rec.PageTitle
	}

	if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(page.HTML())); derr != nil {
		p.logger.Warn("could not parse rendered document",
			zap.Int("object_id", objectID), zap.Error(derr))
		rec.Description = domain.Description{Tier: domain.TierNone}
	} else {
		rec.Description = extract.ResolveDescription(doc, p.opts.DescOpts)
	}

	rec.Tabs = extract.ExtractTabs(ctx, page, p.opts.TabNames, p.opts.TabOpts)

	manifest := p.images.Collect(page.ImageURLs(), feedRec)
	rec.Images = p.images.Materialize(ctx, manifest, objectID)

	sanitize.Record(&rec)
	return rec
}
