package domain

import "time"

// StructuredRecord holds the basic fields the collection API exposes for one
// object. Any of these may be empty; the API is best-effort.
type StructuredRecord struct {
	ObjectID          int      `json:"objectID"`
	ObjectName        string   `json:"objectName"`
	Title             string   `json:"title"`
	ObjectBeginDate   int      `json:"objectBeginDate"`
	ObjectEndDate     int      `json:"objectEndDate"`
	ObjectDate        string   `json:"objectDate"`
	Culture           string   `json:"culture"`
	Period            string   `json:"period"`
	Dynasty           string   `json:"dynasty"`
	Reign             string   `json:"reign"`
	ArtistDisplayName string   `json:"artistDisplayName"`
	ArtistDisplayBio  string   `json:"artistDisplayBio"`
	Medium            string   `json:"medium"`
	Dimensions        string   `json:"dimensions"`
	Classification    string   `json:"classification"`
	Department        string   `json:"department"`
	CreditLine        string   `json:"creditLine"`
	Repository        string   `json:"repository"`
	ObjectURL         string   `json:"objectURL"`
	PrimaryImage      string   `json:"primaryImage"`
	AdditionalImages  []string `json:"additionalImages"`
}

// DescriptionTier identifies which fallback strategy produced a description.
type DescriptionTier string

const (
	TierContainer   DescriptionTier = "container"
	TierLongestSpan DescriptionTier = "longest_span"
	TierMeta        DescriptionTier = "meta"
	TierOpenGraph   DescriptionTier = "og"
	TierParagraph   DescriptionTier = "paragraph"
	TierNone        DescriptionTier = "none"
)

// Description is a resolved long description plus the tier that produced it.
type Description struct {
	Text string          `json:"text"`
	Tier DescriptionTier `json:"tier"`
}

// TabSection is one activated tab's harvested panel text.
type TabSection struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// TabContent preserves the configured tab activation order.
type TabContent []TabSection

// Get returns the text for a tab label, or "" if the tab is absent.
func (t TabContent) Get(label string) string {
	for _, s := range t {
		if s.Label == label {
			return s.Text
		}
	}
	return ""
}

// ImageRole distinguishes the hero image from gallery images.
type ImageRole string

const (
	RolePrimary    ImageRole = "primary"
	RoleAdditional ImageRole = "additional"
)

// ImageAsset is one discovered image URL and, once materialized, its local
// path. LocalPath stays empty when the download failed or was skipped.
type ImageAsset struct {
	URL       string    `json:"url"`
	LocalPath string    `json:"local_path"`
	Role      ImageRole `json:"role"`
}

// ImageManifest lists a single object's images in discovery order.
// At most one entry carries RolePrimary.
type ImageManifest []ImageAsset

// Primary returns the primary asset, or nil when the object has none.
func (m ImageManifest) Primary() *ImageAsset {
	for i := range m {
		if m[i].Role == RolePrimary {
			return &m[i]
		}
	}
	return nil
}

// RecordStatus classifies how far an object's extraction got.
type RecordStatus string

const (
	// StatusCompleted means the page rendered and all extractors ran;
	// individual fields may still be empty (expected-degraded conditions).
	StatusCompleted RecordStatus = "completed"
	// StatusRenderFailed means navigation timed out or errored and the
	// record carries structured-feed fields only.
	StatusRenderFailed RecordStatus = "render_failed"
	// StatusError marks a record produced from an unclassified failure.
	StatusError RecordStatus = "error"
)

// ObjectRecord is the merged output for one object: feed fields, resolved
// description, tab panels and the image manifest. Exactly one is produced per
// processed ObjectID regardless of how much of the extraction succeeded.
type ObjectRecord struct {
	ObjectID    int              `json:"object_id"`
	Fields      StructuredRecord `json:"fields"`
	PageTitle   string           `json:"page_title"`
	PageURL     string           `json:"page_url"`
	Description Description      `json:"description"`
	Tabs        TabContent       `json:"tabs"`
	Images      ImageManifest    `json:"images"`
	Status      RecordStatus     `json:"status"`
	FailReason  string           `json:"fail_reason,omitempty"`
	HarvestedAt time.Time        `json:"harvested_at"`
}
