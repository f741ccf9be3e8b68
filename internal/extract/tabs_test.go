package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakePage scripts per-label activation results and panel reads.
type fakePage struct {
	active      string
	panels      map[string]string // label -> final panel text
	failLabels  map[string]bool   // activation errors
	stallLabels map[string]bool   // panel never yields content
}

func (f *fakePage) ActivateTab(_ context.Context, label string) error {
	if f.failLabels[label] {
		return errors.New("tab not found")
	}
	f.active = label
	return nil
}

func (f *fakePage) PanelText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.stallLabels[f.active] {
		return "", nil
	}
	return f.panels[f.active], nil
}

func fastOpts() TabOptions {
	return TabOptions{
		Timeout:      50 * time.Millisecond,
		PollInterval: time.Millisecond,
		StableReads:  2,
	}
}

func TestExtractTabs_ConfiguredOrderPreserved(t *testing.T) {
	labels := []string{"Overview", "Provenance", "References"}
	page := &fakePage{panels: map[string]string{
		"Overview":   "overview body",
		"Provenance": "acquired 1907",
		"References": "catalog no. 12",
	}}

	content := ExtractTabs(context.Background(), page, labels, fastOpts())

	assert.Len(t, content, 3)
	for i, label := range labels {
		assert.Equal(t, label, content[i].Label)
	}
	assert.Equal(t, "acquired 1907", content.Get("Provenance"))
}

func TestExtractTabs_TimeoutDoesNotBlockLaterTabs(t *testing.T) {
	labels := []string{"Overview", "Provenance", "References"}
	page := &fakePage{
		panels: map[string]string{
			"Overview":   "overview body",
			"References": "catalog no. 12",
		},
		stallLabels: map[string]bool{"Provenance": true},
	}

	start := time.Now()
	content := ExtractTabs(context.Background(), page, labels, fastOpts())

	assert.Len(t, content, 3)
	assert.Equal(t, "overview body", content[0].Text)
	assert.Equal(t, "", content[1].Text, "stalled tab degrades to empty")
	assert.Equal(t, "catalog no. 12", content[2].Text)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExtractTabs_ActivationFailureYieldsEmptyEntry(t *testing.T) {
	labels := []string{"Overview", "Provenance"}
	page := &fakePage{
		panels:     map[string]string{"Overview": "overview body"},
		failLabels: map[string]bool{"Provenance": true},
	}

	content := ExtractTabs(context.Background(), page, labels, fastOpts())

	assert.Len(t, content, 2)
	assert.Equal(t, "", content.Get("Provenance"))
}

func TestExtractTabs_PanelNoiseLinesStripped(t *testing.T) {
	labels := []string{"Overview"}
	page := &fakePage{panels: map[string]string{
		"Overview": "Artwork Details\nOverview\n\n  the actual body  \nObject Information",
	}}

	content := ExtractTabs(context.Background(), page, labels, fastOpts())
	assert.Equal(t, "the actual body", content.Get("Overview"))
}

func TestExtractTabs_ClonedPanelSuppressed(t *testing.T) {
	labels := []string{"Overview", "Signatures, Inscriptions, and Markings"}
	page := &fakePage{panels: map[string]string{
		"Overview":                               "same body",
		"Signatures, Inscriptions, and Markings": "same body",
	}}

	content := ExtractTabs(context.Background(), page, labels, fastOpts())
	assert.Equal(t, "same body", content[0].Text)
	assert.Equal(t, "", content[1].Text)
}
