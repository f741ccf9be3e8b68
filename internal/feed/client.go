// Package feed talks to the museum's collection API: object-ID enumeration
// via search and the per-object structured record lookup. Both are
// best-effort; the harvest proceeds without them.
package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"harvester/internal/domain"
)

// Options configures the API endpoints and the HTTP client.
type Options struct {
	BaseURL      string
	SearchURL    string
	Query        string
	DepartmentID int
	Timeout      time.Duration
	MaxRetries   int
	RetryWait    time.Duration
	UserAgent    func() string
}

// Client is a thin resty wrapper over the collection API.
type Client struct {
	opts   Options
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) *Client {
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
	return &Client{opts: opts, http: client, logger: logger}
}

// SearchIDs enumerates candidate object IDs for the configured query.
func (c *Client) SearchIDs(ctx context.Context) ([]int, error) {
	var result struct {
		Total     int   `json:"total"`
		ObjectIDs []int `json:"objectIDs"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"hasImages":    "true",
			"departmentId": strconv.Itoa(c.opts.DepartmentID),
			"q":            c.opts.Query,
		}).
		SetResult(&result).
		Get(c.opts.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search returned status %s", resp.Status())
	}
	c.logger.Info("search returned object IDs",
		zap.Int("total", result.Total), zap.Int("returned", len(result.ObjectIDs)))
	return result.ObjectIDs, nil
}

// Lookup fetches the structured record for one object. A missing entry or a
// malformed payload is not an error: the pipeline tolerates absence and the
// returned record is simply nil.
func (c *Client) Lookup(ctx context.Context, objectID int) (*domain.StructuredRecord, error) {
	var rec domain.StructuredRecord
	url := fmt.Sprintf("%s/objects/%d", c.opts.BaseURL, objectID)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&rec).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("feed lookup failed: %w", err)
	}
	if resp.IsError() {
		c.logger.Debug("no structured record for object",
			zap.Int("object_id", objectID), zap.String("status", resp.Status()))
		return nil, nil
	}
	if rec.ObjectID == 0 {
		rec.ObjectID = objectID
	}
	return &rec, nil
}
