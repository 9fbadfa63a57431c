package render

import (
	"bytes"
	"context"
	"io"

	"github.com/rotisserie/eris"

	"seoflood/app/internal/domain/page"
)

// Renderer produces documents for page records. It holds no state.
type Renderer struct{}

// New returns a Renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render returns the document for record, or an empty string when it cannot be rendered.
// Output is byte-identical for identical inputs.
func (r *Renderer) Render(record page.PageRecord, settings page.Settings, gen page.GenerationContext) string {
	var buf bytes.Buffer
	if err := r.Stream(context.Background(), &buf, record, settings, gen); err != nil {
		return ""
	}
	return buf.String()
}

// Stream writes the document for record to w.
func (r *Renderer) Stream(ctx context.Context, w io.Writer, record page.PageRecord, settings page.Settings, gen page.GenerationContext) error {
	if err := Document(View{Record: record, Settings: settings, Context: gen}).Render(ctx, w); err != nil {
		return eris.Wrapf(err, "rendering document for slug %s", record.Slug)
	}
	return nil
}

// FileName returns the export artifact name for record. Records whose keyword produced
// an empty slug are named after their id.
func FileName(record page.PageRecord) string {
	if record.Slug == "" {
		return "page-" + record.ID + FileExtension
	}
	return record.Slug + FileExtension
}
