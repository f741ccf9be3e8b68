package extract

import (
	"context"
	"strings"
	"time"

	"harvester/internal/domain"
)

// TabPage is the slice of a rendered page session the tab extractor needs:
// activate a tab by its visible label and read the details panel text back.
// The chromedp session implements it; tests use a fake.
type TabPage interface {
	ActivateTab(ctx context.Context, label string) error
	PanelText(ctx context.Context) (string, error)
}

// TabOptions bounds the per-tab quiescence wait.
type TabOptions struct {
	// Timeout caps the total wait for one tab, activation included.
	Timeout time.Duration
	// PollInterval is the gap between panel reads while waiting for the
	// content to stop mutating.
	PollInterval time.Duration
	// StableReads is how many consecutive identical reads count as quiescent.
	StableReads int
}

// DefaultTabOptions returns the waits the catalog pages were tuned against.
func DefaultTabOptions() TabOptions {
	return TabOptions{
		Timeout:      5 * time.Second,
		PollInterval: 200 * time.Millisecond,
		StableReads:  2,
	}
}

// Lines stripped from harvested panels: section headings the details
// container repeats above every tab's content.
var panelNoiseLines = map[string]struct{}{
	"Artwork Details":    {},
	"Object Information": {},
}

// ExtractTabs activates each configured tab in order and harvests the panel
// text once it stabilizes or the per-tab timeout fires. A timeout is not an
// error: whatever was captured by then is kept, and later tabs still run.
// The result always has one entry per configured label, in configured order.
func ExtractTabs(ctx context.Context, page TabPage, labels []string, opts TabOptions) domain.TabContent {
	if opts.StableReads < 1 {
		opts.StableReads = 1
	}
	content := make(domain.TabContent, 0, len(labels))
	for _, label := range labels {
		content = append(content, domain.TabSection{
			Label: label,
			Text:  extractOne(ctx, page, label, labels, opts),
		})
	}
	suppressClonedPanels(content)
	return content
}

func extractOne(ctx context.Context, page TabPage, label string, labels []string, opts TabOptions) string {
	tabCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := page.ActivateTab(tabCtx, label); err != nil {
		return ""
	}

	var best, last string
	stable := 0
	for {
		if text, err := page.PanelText(tabCtx); err == nil && text != "" {
			best = text
			if text == last {
				stable++
				if stable >= opts.StableReads {
					break
				}
			} else {
				stable = 0
			}
			last = text
		}
		select {
		case <-tabCtx.Done():
			return cleanPanelText(best, labels)
		case <-time.After(opts.PollInterval):
		}
	}
	return cleanPanelText(best, labels)
}

// cleanPanelText drops the repeated section headings and the tab labels
// themselves, which the details container renders above the panel body.
func cleanPanelText(raw string, labels []string) string {
	if raw == "" {
		return ""
	}
	labelSet := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		labelSet[l] = struct{}{}
	}
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, noise := panelNoiseLines[line]; noise {
			continue
		}
		if _, isLabel := labelSet[line]; isLabel {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// suppressClonedPanels blanks a tab whose text is identical to the tab
// activated immediately before it. The details widget re-serves the previous
// panel when a tab has no content of its own, which would otherwise duplicate
// Overview into Signatures and Provenance into References.
func suppressClonedPanels(content domain.TabContent) {
	for i := 1; i < len(content); i++ {
		if content[i].Text != "" && content[i].Text == content[i-1].Text {
			content[i].Text = ""
		}
	}
}
