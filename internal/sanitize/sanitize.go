// Package sanitize strips control characters that corrupt tabular output
// formats. The reserved ranges are 0x00-0x08, 0x0B-0x0C and 0x0E-0x1F;
// newlines and tabs survive.
package sanitize

import (
	"regexp"

	"harvester/internal/domain"
)

var reservedChars = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F]")

// Clean removes every reserved control character and preserves everything
// else. Idempotent: Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	return reservedChars.ReplaceAllString(s, "")
}

// Record cleans every outgoing text field of an object record in place.
func Record(rec *domain.ObjectRecord) {
	f := &rec.Fields
	for _, p := range []*string{
		&f.ObjectName, &f.Title, &f.ObjectDate, &f.Culture, &f.Period,
		&f.Dynasty, &f.Reign, &f.ArtistDisplayName, &f.ArtistDisplayBio,
		&f.Medium, &f.Dimensions, &f.Classification, &f.Department,
		&f.CreditLine, &f.Repository, &f.ObjectURL,
		&rec.PageTitle, &rec.PageURL, &rec.Description.Text, &rec.FailReason,
	} {
		*p = Clean(*p)
	}
	for i := range rec.Tabs {
		rec.Tabs[i].Text = Clean(rec.Tabs[i].Text)
	}
}
