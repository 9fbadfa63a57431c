package page

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

const (
	genericAreaPhrase = "Professional Services"

	// Documented budgets: titles 50-60 characters, descriptions 150-160.
	MaxMetaTitleRunes       = 60
	MaxMetaDescriptionRunes = 160
)

// Synthesizer turns one keyword into a PageRecord.
type Synthesizer interface {
	Synthesize(ctx context.Context, keyword string, settings Settings, gen GenerationContext) (PageRecord, error)
}

// TemplateOptions configures a TemplateSynthesizer.
type TemplateOptions struct {
	// NewID returns a page identifier. Defaults to random UUIDs.
	NewID func() string
	// EnforceMetaLimits truncates meta fields to MaxMetaTitleRunes / MaxMetaDescriptionRunes.
	EnforceMetaLimits bool
}

// TemplateSynthesizer builds PageRecords from fixed patterns. It never calls out of process.
type TemplateSynthesizer struct {
	newID             func() string
	enforceMetaLimits bool
}

var _ Synthesizer = (*TemplateSynthesizer)(nil)

// NewTemplateSynthesizer constructs a TemplateSynthesizer.
func NewTemplateSynthesizer(opts TemplateOptions) *TemplateSynthesizer {
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &TemplateSynthesizer{newID: newID, enforceMetaLimits: opts.EnforceMetaLimits}
}

// Synthesize builds the record for keyword. The only error it returns is a cancelled context.
func (s *TemplateSynthesizer) Synthesize(ctx context.Context, keyword string, settings Settings, gen GenerationContext) (PageRecord, error) {
	if err := ctx.Err(); err != nil {
		return PageRecord{}, eris.Wrapf(err, "synthesizing page for keyword %q", keyword)
	}

	keyword = strings.TrimSpace(keyword)
	slug := Slugify(keyword)

	record := PageRecord{
		ID:              s.newID(),
		Title:           Title(keyword, gen.Location),
		Keyword:         keyword,
		Slug:            slug,
		MetaTitle:       MetaTitle(keyword, gen),
		MetaDescription: MetaDescription(keyword, gen),
		WordCount:       settings.WordCount,
		Status:          StatusGenerated,
	}

	if s.enforceMetaLimits {
		record.MetaTitle = TruncateWords(record.MetaTitle, MaxMetaTitleRunes)
		record.MetaDescription = TruncateWords(record.MetaDescription, MaxMetaDescriptionRunes)
	}

	if settings.IncludeSchema {
		record.SchemaMarkup = newLocalBusiness(
			record.Title,
			record.MetaDescription,
			PageURL(settings.MainPageURL, slug),
			imageURL(settings, slug),
			gen.Location,
		)
	}

	if settings.LongTailKeywords {
		record.LongTailKeywords = LongTail(keyword)
	} else {
		record.LongTailKeywords = []string{}
	}

	return record, nil
}

// Title capitalises the first letter of keyword and appends the location, or a generic
// phrase when no location is set.
func Title(keyword, location string) string {
	suffix := strings.TrimSpace(location)
	if suffix == "" {
		suffix = genericAreaPhrase
	}
	return capitalize(keyword) + " - " + suffix
}

// MetaTitle returns the meta title pattern for keyword.
func MetaTitle(keyword string, gen GenerationContext) string {
	var b strings.Builder
	b.WriteString(capitalize(keyword))
	if loc := strings.TrimSpace(gen.Location); loc != "" {
		b.WriteString(" in ")
		b.WriteString(loc)
	}
	if main := strings.TrimSpace(gen.MainKeyword); main != "" && !strings.EqualFold(main, keyword) {
		b.WriteString(" | ")
		b.WriteString(capitalize(main))
	}
	return b.String()
}

// MetaDescription returns the meta description pattern for keyword.
func MetaDescription(keyword string, gen GenerationContext) string {
	area := "your area"
	if loc := strings.TrimSpace(gen.Location); loc != "" {
		area = loc
	}
	main := strings.TrimSpace(gen.MainKeyword)
	if main == "" {
		main = keyword
	}
	return "Looking for " + keyword + " in " + area + "? Our trusted " + main +
		" team delivers fast, reliable service. Call today for a free quote!"
}

// LongTail returns the four related phrases attached to a page.
func LongTail(keyword string) []string {
	return []string{
		keyword + " reviews",
		"best " + keyword,
		"affordable " + keyword,
		"professional " + keyword,
	}
}

// PageURL joins base and slug, returning "" when base is empty.
func PageURL(base, slug string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	if slug == "" {
		return base
	}
	return base + "/" + slug
}

func imageURL(settings Settings, slug string) string {
	if !settings.IncludeImages || slug == "" {
		return ""
	}
	base := strings.TrimRight(strings.TrimSpace(settings.MainPageURL), "/")
	if base == "" {
		return ""
	}
	return base + "/images/" + slug + ".jpg"
}

// TruncateWords shortens text to at most limit runes, cutting at the last word boundary
// that fits. A single word longer than limit is cut mid-word.
func TruncateWords(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	cut := runes[:limit]
	if !unicode.IsSpace(runes[limit]) {
		for i := len(cut) - 1; i > 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}

	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
