// Package render turns synthesized page records into standalone HTML documents.
package render

import (
	"strconv"
	"strings"

	"seoflood/app/internal/domain/page"
)

const (
	// RedirectDelaySeconds is the client-side delay before a page navigates to the main site.
	RedirectDelaySeconds = 3
	// FileExtension is appended to a slug to name an exported document.
	FileExtension = ".html"

	fallbackArea = "your area"
)

// View is the data a document is rendered from.
type View struct {
	Record   page.PageRecord
	Settings page.Settings
	Context  page.GenerationContext
}

func (v View) keyword() string {
	return v.Record.Keyword
}

func (v View) mainKeyword() string {
	if main := strings.TrimSpace(v.Context.MainKeyword); main != "" {
		return main
	}
	return v.Record.Keyword
}

func (v View) area() string {
	if loc := strings.TrimSpace(v.Context.Location); loc != "" {
		return loc
	}
	return fallbackArea
}

func (v View) heading() string {
	if v.Record.Title != "" {
		return v.Record.Title
	}
	return page.Title(v.Record.Keyword, v.Context.Location)
}

func (v View) mainURL() string {
	return strings.TrimRight(strings.TrimSpace(v.Settings.MainPageURL), "/")
}

func (v View) contactAction() string {
	if main := v.mainURL(); main != "" {
		return main + "/contact"
	}
	return "#contact"
}

func (v View) callToActionURL() string {
	if main := v.mainURL(); main != "" {
		return main
	}
	return "#contact"
}

func (v View) metaKeywords() string {
	return strings.Join(append([]string{v.Record.Keyword}, v.Record.LongTailKeywords...), ", ")
}

func refreshContent(target string) string {
	return strconv.Itoa(RedirectDelaySeconds) + ";url=" + strings.TrimSpace(target)
}

func (v View) canonicalURL() string {
	return page.PageURL(v.Settings.MainPageURL, v.Record.Slug)
}

func (v View) imageURL() string {
	if v.Record.SchemaMarkup != nil && v.Record.SchemaMarkup.Image != "" {
		return v.Record.SchemaMarkup.Image
	}
	return ""
}

// expand substitutes {keyword}, {mainKeyword} and {location} in a template line.
func (v View) expand(line string) string {
	return strings.NewReplacer(
		"{keyword}", v.keyword(),
		"{mainKeyword}", v.mainKeyword(),
		"{location}", v.area(),
	).Replace(line)
}
