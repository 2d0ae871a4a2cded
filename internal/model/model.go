package model

import "time"

// ListItem is one row extracted from a listing page. It carries only the
// fields the listing exposes; everything else arrives with enrichment.
type ListItem struct {
	// Posting type, e.g. 通知
	Type string
	// Originating unit, e.g. 教务部
	Source string
	// Title as shown on the listing page
	Title string
	// Listing date, kept as the site's yyyy-mm-dd string
	Date string
	// Absolute detail URL
	URL string
}

// Article is a bulletin posting as stored. Identity is the URL; the
// enrichment fields stay nil/empty until a detail parse succeeds.
type Article struct {
	ID     int64
	Type   string
	Source string
	Title  string
	Date   string
	URL    string
	// Clock time of publication, filled by enrichment
	DetailTime string
	// nil until the click counter has been resolved
	ClickNum *int64
	// Inner HTML of the content block
	Content string
	// Masked plain text of the whole content form
	TotalContent string
	// Attachment display names, newline-joined
	Attachments string
	// nil until attachments have been seen
	AttachmentDownloads *int64
	// Verbatim detail page, kept for re-parsing
	RawHTML   string
	CreatedAt time.Time
}

// Enriched reports whether a later detail pass may skip this article. An
// article whose content legitimately parses to an empty string never counts
// as enriched and is re-processed on every sweep.
func (a Article) Enriched() bool {
	return a.DetailTime != "" && a.ClickNum != nil && a.Content != ""
}

// ArticleDetails is the outcome of one detail-page parse, applied to an
// article as a partial update.
type ArticleDetails struct {
	DetailTime          string
	ClickNum            int64
	Content             string
	TotalContent        string
	Attachments         string
	AttachmentDownloads *int64
}

// Platform is one originating unit subscribers can filter on. The list is
// seeded once and read-only afterwards.
type Platform struct {
	ID   int64
	Name string
}

// Subscriber is one mail recipient with a per-subscriber send cadence.
type Subscriber struct {
	ID    int64
	Email string
	// Subscribe to every platform; PlatformIDs is empty when set
	AllPlatforms bool
	PlatformIDs  []int64
	// Minimum hours between sends, within [1, 24]
	FrequencyHours int
	// nil means never sent: always due
	LastSentAt *time.Time
}
