package page

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Status is the lifecycle state of a PageRecord.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusPublished Status = "published"
	StatusPreview   Status = "preview"
)

const (
	DefaultPageCount = 50
	DefaultWordCount = 500
)

// Settings configures one generation session.
type Settings struct {
	PageCount           int    `json:"pageCount"`
	WordCount           int    `json:"wordCount"`
	IncludeImages       bool   `json:"includeImages"`
	IncludeSchema       bool   `json:"includeSchema"`
	SEOOptimization     bool   `json:"seoOptimization"`
	LongTailKeywords    bool   `json:"longTailKeywords"`
	IncludeContactForm  bool   `json:"includeContactForm"`
	IncludeTestimonials bool   `json:"includeTestimonials"`
	RedirectToMain      bool   `json:"redirectToMain"`
	MainPageURL         string `json:"mainPageUrl"`
	Category            string `json:"category"`
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings() Settings {
	return Settings{
		PageCount:          DefaultPageCount,
		WordCount:          DefaultWordCount,
		IncludeImages:      true,
		IncludeSchema:      true,
		SEOOptimization:    true,
		LongTailKeywords:   true,
		IncludeContactForm: true,
		RedirectToMain:     true,
	}
}

// RedirectEnabled reports whether a redirect directive should be emitted.
// A redirect without a target URL is silently disabled.
func (s Settings) RedirectEnabled() bool {
	return s.RedirectToMain && strings.TrimSpace(s.MainPageURL) != ""
}

// GenerationContext carries the per-run inputs shared by every page in a batch.
type GenerationContext struct {
	MainKeyword string `json:"mainKeyword"`
	Location    string `json:"location,omitempty"`
	Category    string `json:"category,omitempty"`
}

// PageRecord is one synthesized landing page.
type PageRecord struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Keyword          string         `json:"keyword"`
	Slug             string         `json:"slug"`
	MetaTitle        string         `json:"metaTitle"`
	MetaDescription  string         `json:"metaDescription"`
	SchemaMarkup     *LocalBusiness `json:"schemaMarkup"`
	WordCount        int            `json:"wordCount"`
	Status           Status         `json:"status"`
	LongTailKeywords []string       `json:"longTailKeywords"`
	IntroHTML        string         `json:"introHtml,omitempty"`
}

// EmptySchema is the encoding of a record without structured data.
var EmptySchema = []byte("{}")

// MarshalJSON writes an absent schema as an empty object.
func (p PageRecord) MarshalJSON() ([]byte, error) {
	type plain PageRecord
	out := struct {
		plain
		SchemaMarkup any `json:"schemaMarkup"`
	}{plain: plain(p), SchemaMarkup: p.SchemaMarkup}
	if p.SchemaMarkup == nil {
		out.SchemaMarkup = json.RawMessage(EmptySchema)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads an empty or null schema back as no schema.
func (p *PageRecord) UnmarshalJSON(data []byte) error {
	type plain PageRecord
	var in struct {
		plain
		SchemaMarkup json.RawMessage `json:"schemaMarkup"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*p = PageRecord(in.plain)
	p.SchemaMarkup = nil
	if IsEmptySchema(in.SchemaMarkup) {
		return nil
	}

	var schema LocalBusiness
	if err := json.Unmarshal(in.SchemaMarkup, &schema); err != nil {
		return err
	}
	p.SchemaMarkup = &schema
	return nil
}

// IsEmptySchema reports whether raw encodes no structured data.
func IsEmptySchema(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}

	var fields map[string]json.RawMessage
	return json.Unmarshal(trimmed, &fields) == nil && len(fields) == 0
}

// HasSchema reports whether the record carries structured data.
func (p *PageRecord) HasSchema() bool {
	return p != nil && p.SchemaMarkup != nil
}

// Batch is the ordered output of one generation run.
type Batch struct {
	ID        string            `json:"id"`
	Context   GenerationContext `json:"context"`
	Settings  Settings          `json:"settings"`
	Pages     []PageRecord      `json:"pages"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Len returns the number of pages in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Pages)
}

// Find returns the page with the given id.
func (b *Batch) Find(id string) (*PageRecord, bool) {
	if b == nil {
		return nil, false
	}
	for i := range b.Pages {
		if b.Pages[i].ID == id {
			return &b.Pages[i], true
		}
	}
	return nil, false
}

// MarkPublished flips every record to StatusPublished.
func (b *Batch) MarkPublished() {
	for i := range b.Pages {
		b.Pages[i].Status = StatusPublished
	}
}

// Published reports whether the batch has been persisted.
func (b *Batch) Published() bool {
	return b.Len() > 0 && b.Pages[0].Status == StatusPublished
}

// SlugCollisions returns every slug shared by more than one record, in first-seen order.
func (b *Batch) SlugCollisions() []string {
	if b == nil {
		return nil
	}

	counts := make(map[string]int, len(b.Pages))
	var order []string
	for _, p := range b.Pages {
		if counts[p.Slug] == 0 {
			order = append(order, p.Slug)
		}
		counts[p.Slug]++
	}

	var collisions []string
	for _, slug := range order {
		if counts[slug] > 1 {
			collisions = append(collisions, slug)
		}
	}
	return collisions
}
