// Package extract pulls long-form text out of a rendered catalog page:
// the hierarchical description fallback chain and the tabbed panel harvest.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"harvester/internal/domain"
)

// The site's component framework renders long descriptions through this span
// component, nested inside a read-more wrapper.
const (
	descriptionSpanSelector = `span[data-sentry-component="LegacyOrMarkdownParser"]`
	readMoreWrapperClass    = "read-more-wrapper"
	wrapperSearchDepth      = 6
)

// DescriptionOptions holds the heuristic thresholds of the fallback chain.
// The site never documented these; treat them as tunables.
type DescriptionOptions struct {
	// MinLength is the minimum character count for any tier's candidate.
	MinLength int
	// MinWords is the word-count floor a span must clear to count as
	// descriptive rather than navigational.
	MinWords int
}

// DefaultDescriptionOptions mirrors the thresholds the site's pages were
// tuned against: any non-empty candidate wins its tier, spans need >30 words.
func DefaultDescriptionOptions() DescriptionOptions {
	return DescriptionOptions{MinLength: 1, MinWords: 30}
}

type strategy struct {
	tier domain.DescriptionTier
	fn   func(*goquery.Document, DescriptionOptions) string
}

// The chain is evaluated strictly in order; the first tier producing a
// candidate of at least MinLength characters wins.
var strategies = []strategy{
	{domain.TierContainer, containerText},
	{domain.TierLongestSpan, longestSpanText},
	{domain.TierMeta, metaDescription},
	{domain.TierOpenGraph, ogDescription},
	{domain.TierParagraph, longestParagraph},
}

// ResolveDescription walks the fallback chain over a rendered document and
// returns the best available long description. It never fails: when every
// tier comes up empty the result is tagged TierNone.
func ResolveDescription(doc *goquery.Document, opts DescriptionOptions) domain.Description {
	if opts.MinLength < 1 {
		opts.MinLength = 1
	}
	for _, s := range strategies {
		if text := s.fn(doc, opts); len(text) >= opts.MinLength {
			return domain.Description{Text: text, Tier: s.tier}
		}
	}
	return domain.Description{Tier: domain.TierNone}
}

// containerText returns the first framework description span found under a
// read-more wrapper ancestor.
func containerText(doc *goquery.Document, _ DescriptionOptions) string {
	var text string
	doc.Find(descriptionSpanSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		ancestor := s.Parent()
		for depth := 0; depth < wrapperSearchDepth && ancestor.Length() > 0; depth++ {
			if cls, _ := ancestor.Attr("class"); strings.Contains(cls, readMoreWrapperClass) {
				if t := flattenText(s); t != "" {
					text = t
					return false
				}
			}
			ancestor = ancestor.Parent()
		}
		return true
	})
	return text
}

// longestSpanText picks the single longest span that looks descriptive.
// Strictly-greater comparison: equal lengths resolve to the first span in
// document order.
func longestSpanText(doc *goquery.Document, opts DescriptionOptions) string {
	var best string
	doc.Find("span").Each(func(_ int, s *goquery.Selection) {
		t := flattenText(s)
		if len(strings.Fields(t)) <= opts.MinWords {
			return
		}
		if len(t) > len(best) {
			best = t
		}
	})
	return best
}

func metaDescription(doc *goquery.Document, _ DescriptionOptions) string {
	content, _ := doc.Find(`meta[name="description"]`).Attr("content")
	return strings.TrimSpace(content)
}

func ogDescription(doc *goquery.Document, _ DescriptionOptions) string {
	content, _ := doc.Find(`meta[property="og:description"]`).Attr("content")
	return strings.TrimSpace(content)
}

func longestParagraph(doc *goquery.Document, _ DescriptionOptions) string {
	var best string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := flattenText(s); len(t) > len(best) {
			best = t
		}
	})
	return best
}

// flattenText collapses an element's text to single-space separated words.
func flattenText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
