// Package delivery exposes a finished batch through preview, bulk export and publish.
package delivery

import (
	"github.com/rotisserie/eris"

	"seoflood/app/internal/domain/page"
)

var (
	// ErrPageNotFound indicates a preview was requested for an id outside the batch.
	ErrPageNotFound = eris.New("page not found in batch")
	// ErrExportItemFailed marks a single export delivery that failed.
	ErrExportItemFailed = eris.New("export item failed")
	// ErrPublishFailed indicates the batch could not be persisted. Nothing is left half published.
	ErrPublishFailed = eris.New("publish failed")
	// ErrAlreadyPublished rejects a second publish of the same batch.
	ErrAlreadyPublished = eris.New("batch is already published")
)

// Renderer turns a record into a document.
type Renderer interface {
	Render(record page.PageRecord, settings page.Settings, gen page.GenerationContext) string
}

func validateBatch(batch *page.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return eris.New("batch is empty")
	}
	return nil
}
