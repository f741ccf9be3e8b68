// Package images resolves an object's image URLs from the rendered page and
// the structured feed, and materializes them under a per-object directory.
package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"harvester/internal/domain"
	"harvester/internal/monitoring"
)

var knownExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "tif": {}, "tiff": {}, "bmp": {},
}

// Options configures discovery caps and the download client.
type Options struct {
	RootDir       string
	MaxAdditional int
	Timeout       time.Duration
	MaxRetries    int
	RetryWait     time.Duration
	UserAgent     func() string
}

// Manager downloads and organizes image assets for harvested objects.
type Manager struct {
	client        *resty.Client
	rootDir       string
	maxAdditional int
	metrics       *monitoring.Metrics
	logger        *zap.Logger
}

func NewManager(opts Options, m *monitoring.Metrics, logger *zap.Logger) *Manager {
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(10 * opts.RetryWait)
	if opts.UserAgent != nil {
		ua := opts.UserAgent
		client.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			r.SetHeader("User-Agent", ua())
			return nil
		})
	}
	return &Manager{
		client:        client,
		rootDir:       opts.RootDir,
		maxAdditional: opts.MaxAdditional,
		metrics:       m,
		logger:        logger,
	}
}

// Collect merges image URLs from the structured feed and the rendered page
// into a manifest: deduplicated by URL, first-seen order, exactly one primary
// whenever any image exists. The feed's hero image wins the primary role;
// otherwise the page's first image does, and failing both the first entry is
// promoted.
func (mgr *Manager) Collect(pageImages []string, rec *domain.StructuredRecord) domain.ImageManifest {
	var manifest domain.ImageManifest
	seen := make(map[string]struct{})
	hasPrimary := false
	additional := 0

	add := func(url string, role domain.ImageRole) {
		if url == "" {
			return
		}
		if _, dup := seen[url]; dup {
			return
		}
		if role == domain.RoleAdditional {
			if additional >= mgr.maxAdditional {
				return
			}
			additional++
		}
		seen[url] = struct{}{}
		manifest = append(manifest, domain.ImageAsset{URL: url, Role: role})
	}

	if rec != nil {
		if rec.PrimaryImage != "" {
			add(rec.PrimaryImage, domain.RolePrimary)
			hasPrimary = true
		}
		for _, u := range rec.AdditionalImages {
			add(u, domain.RoleAdditional)
		}
	}
	for _, u := range pageImages {
		if !hasPrimary {
			add(u, domain.RolePrimary)
			hasPrimary = true
			continue
		}
		add(u, domain.RoleAdditional)
	}
	// The role can go unclaimed when the feed lists only additionals, or when
	// the page's first image was deduped against one of them. A non-empty
	// manifest always carries a primary, in the first slot.
	if len(manifest) > 0 && manifest.Primary() == nil {
		manifest[0].Role = domain.RolePrimary
	}
	return manifest
}

// Materialize downloads each manifest entry exactly once into
// <root>/<objectID>/<objectID>_<n>.<ext>, n starting at 1 in discovery order.
// A failed download (primary included) keeps the remote URL with an empty
// local path; it never aborts the object.
func (mgr *Manager) Materialize(ctx context.Context, manifest domain.ImageManifest, objectID int) domain.ImageManifest {
	if len(manifest) == 0 {
		return manifest
	}
	dir := filepath.Join(mgr.rootDir, strconv.Itoa(objectID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		mgr.logger.Warn("could not create image directory",
			zap.Int("object_id", objectID), zap.Error(err))
		mgr.metrics.IncErrors("image_download_failed")
		return manifest
	}

	out := make(domain.ImageManifest, len(manifest))
	for i, asset := range manifest {
		name := fmt.Sprintf("%d_%d.%s", objectID, i+1, parseExt(asset.URL))
		path := filepath.Join(dir, name)
		if err := mgr.download(ctx, asset.URL, path); err != nil {
			mgr.logger.Warn("image download failed",
				zap.Int("object_id", objectID),
				zap.String("url", asset.URL),
				zap.String("role", string(asset.Role)),
				zap.Error(err))
			mgr.metrics.IncErrors("image_download_failed")
			out[i] = asset
			continue
		}
		mgr.metrics.IncImageDownloaded()
		asset.LocalPath = path
		out[i] = asset
	}
	return out
}

func (mgr *Manager) download(ctx context.Context, url, path string) error {
	// A file left by an interrupted earlier run is kept as-is.
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	resp, err := mgr.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected status %s", resp.Status())
	}
	return os.WriteFile(path, resp.Body(), 0o644)
}

// parseExt pulls the image extension from a URL, defaulting to jpg for
// anything unrecognized.
func parseExt(url string) string {
	trimmed := url
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(trimmed), "."))
	if _, ok := knownExtensions[ext]; ok {
		return ext
	}
	return "jpg"
}
