package bookmark

import "time"

// Item is one scraped or enriched bookmark unit. The ID is assigned by the
// source platform and is never generated locally; re-capturing the same ID
// must never create a second logical item.
type Item struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	IsTruncated    bool      `json:"is_truncated"`
	AuthorUsername string    `json:"author_username,omitempty"`
	Hashtags       []string  `json:"hashtags,omitempty"`
	Mentions       []string  `json:"mentions,omitempty"`
	URLs           []string  `json:"urls,omitempty"`
	ReplyTo        string    `json:"reply_to,omitempty"`
	QuoteOf        string    `json:"quote_of,omitempty"`
	SourceURL      string    `json:"source_url"`
	CapturedAt     time.Time `json:"captured_at"`

	// FetchMethod records where the final text came from: "browser" or "api".
	FetchMethod string `json:"fetch_method,omitempty"`
}

// FullRecord is the complete tweet data returned by the enrichment source
// for a single ID.
type FullRecord struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	AuthorUsername string   `json:"author_username,omitempty"`
	Hashtags       []string `json:"hashtags,omitempty"`
	Mentions       []string `json:"mentions,omitempty"`
	URLs           []string `json:"urls,omitempty"`
	ReplyTo        string   `json:"reply_to,omitempty"`
	QuoteOf        string   `json:"quote_of,omitempty"`
}

// SyncMode selects how far a run collects before stopping.
type SyncMode string

const (
	// ModeFull scrolls the whole feed regardless of the watermark
	ModeFull SyncMode = "full"
	// ModeIncremental stops at the first previously-seen item
	ModeIncremental SyncMode = "incremental"
)

// SyncSummary is the per-run outcome reported to the caller. A run always
// terminates with a summary, even under partial failure.
type SyncSummary struct {
	RunID             string `json:"run_id"`
	Mode              string `json:"mode"`
	TotalReceived     int    `json:"total_received"`
	NewStored         int    `json:"new_stored"`
	Updated           int    `json:"updated"`
	Enriched          int    `json:"enriched"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	Failed            int    `json:"failed"`
}

// Apply overwrites an item's content with the full record from the
// enrichment source and clears the truncation flag. Entity sets already
// extracted from the partial browser text are replaced only when the source
// supplied them.
func (it *Item) Apply(rec FullRecord) {
	it.Text = rec.Text
	it.IsTruncated = false
	it.FetchMethod = "api"
	if rec.AuthorUsername != "" {
		it.AuthorUsername = rec.AuthorUsername
	}
	if len(rec.Hashtags) > 0 {
		it.Hashtags = rec.Hashtags
	}
	if len(rec.Mentions) > 0 {
		it.Mentions = rec.Mentions
	}
	if len(rec.URLs) > 0 {
		it.URLs = rec.URLs
	}
	if rec.ReplyTo != "" {
		it.ReplyTo = rec.ReplyTo
	}
	if rec.QuoteOf != "" {
		it.QuoteOf = rec.QuoteOf
	}
}
