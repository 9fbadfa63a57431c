package delivery

import (
	"github.com/rotisserie/eris"

	"seoflood/app/internal/domain/page"
)

// Preview is a rendered record returned for on-demand viewing.
type Preview struct {
	Record   page.PageRecord
	Document string
}

// RenderPreview renders one record of batch without touching the batch.
func RenderPreview(renderer Renderer, batch *page.Batch, pageID string) (*Preview, error) {
	if renderer == nil {
		return nil, eris.New("renderer is required")
	}
	if err := validateBatch(batch); err != nil {
		return nil, err
	}

	record, ok := batch.Find(pageID)
	if !ok {
		return nil, eris.Wrapf(ErrPageNotFound, "page id %s", pageID)
	}

	copied := *record
	copied.Status = page.StatusPreview
	copied.LongTailKeywords = append([]string(nil), record.LongTailKeywords...)

	return &Preview{
		Record:   copied,
		Document: renderer.Render(*record, batch.Settings, batch.Context),
	}, nil
}
