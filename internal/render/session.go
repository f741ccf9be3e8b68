// Package render wraps a headless Chrome session behind the pipeline's
// Renderer interface. One browser serves the whole batch; each object gets
// its own tab context, scoped to that object's processing and closed after.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"harvester/internal/pipeline"
)

// Options bounds navigation and the post-load settle wait.
type Options struct {
	NavTimeout time.Duration
	Settle     time.Duration
	ProxyURL   string
	UserAgent  string
}

// Session owns the browser process for one batch run.
type Session struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	opts          Options
	logger        *zap.Logger
}

func NewSession(opts Options, logger *zap.Logger) (*Session, error) {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyURL != "" {
		execOpts = append(execOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Launch the browser now so a missing Chrome fails fast, not on the
	// first object.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &Session{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		opts:          opts,
		logger:        logger,
	}, nil
}

func (s *Session) Close() {
	s.browserCancel()
	s.allocCancel()
}

// Load navigates a fresh tab to the object page, waits for the client-side
// render to settle, and snapshots title, HTML and image URLs. The returned
// page keeps its tab open for tab activation until Close.
func (s *Session) Load(ctx context.Context, url string) (pipeline.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)

	deadline := time.Now().Add(s.opts.NavTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	navCtx, cancel := context.WithDeadline(tabCtx, deadline)
	defer cancel()

	var html, title string
	var imageURLs []string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.opts.Settle),
		chromedp.Evaluate(pageTitleJS, &title),
		chromedp.Evaluate(pageImagesJS, &imageURLs),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("navigating to %s: %w", url, err)
	}

	s.logger.Debug("page rendered",
		zap.String("url", url), zap.Int("html_bytes", len(html)),
		zap.Int("images", len(imageURLs)))

	return &Page{
		ctx:    tabCtx,
		cancel: tabCancel,
		html:   html,
		title:  title,
		images: imageURLs,
	}, nil
}

// Page is one rendered object page with its live tab context.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	html   string
	title  string
	images []string
}

func (p *Page) HTML() string        { return p.html }
func (p *Page) Title() string       { return p.title }
func (p *Page) ImageURLs() []string { return p.images }

func (p *Page) Close() { p.cancel() }

// ActivateTab clicks the tab whose visible label matches exactly.
func (p *Page) ActivateTab(ctx context.Context, label string) error {
	sel := fmt.Sprintf(`//*[self::button or self::a or @role="tab"][normalize-space(.)=%q]`, label)
	return p.run(ctx, chromedp.Click(sel, chromedp.BySearch, chromedp.NodeVisible))
}

// PanelText reads the details section's current text. The extractor polls it
// to detect quiescence after a tab click.
func (p *Page) PanelText(ctx context.Context) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Evaluate(detailsSectionJS, &text)); err != nil {
		return "", err
	}
	return text, nil
}

// run executes chromedp actions on this page's tab context, honoring the
// caller's deadline.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := p.ctx
	cancel := func() {}
	if d, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.ctx, d)
	}
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

const pageTitleJS = `(() => {
	const main = document.querySelector('main') || document.body;
	const h1 = main.querySelector('h1');
	return h1 ? h1.textContent.trim() : (document.title || '');
})()`

const pageImagesJS = `(() => {
	const imgs = Array.from(document.querySelectorAll('main img, body img'));
	const urls = imgs.map(img => img.currentSrc || img.src || '').filter(u => u.startsWith('http'));
	return Array.from(new Set(urls));
})()`

const detailsSectionJS = `(() => {
	const headings = Array.from(document.querySelectorAll('h1, h2, h3'));
	const heading = headings.find(h => h.textContent.includes('Artwork Details'));
	if (!heading) return '';
	const container = heading.closest('section, div') || heading.parentElement;
	return container ? container.innerText : '';
})()`
