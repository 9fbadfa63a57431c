package export

import (
	"bytes"
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/rotisserie/eris"

	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/page"
)

// ManifestFile is the name of the index written next to the exported documents.
const ManifestFile = "index.md"

// ManifestWriter renders a markdown index of an export and hands it to a Sink.
type ManifestWriter struct {
	sink delivery.Sink
	now  func() time.Time
}

var _ delivery.ManifestWriter = (*ManifestWriter)(nil)

// NewManifestWriter constructs a ManifestWriter. now defaults to time.Now.
func NewManifestWriter(sink delivery.Sink, now func() time.Time) (*ManifestWriter, error) {
	if sink == nil {
		return nil, eris.New("export sink is required")
	}
	if now == nil {
		now = time.Now
	}
	return &ManifestWriter{sink: sink, now: now}, nil
}

// WriteManifest writes index.md into the batch directory and returns its name.
func (m *ManifestWriter) WriteManifest(ctx context.Context, batch *page.Batch, items []delivery.ExportItem) (string, error) {
	if batch == nil {
		return "", eris.New("batch is required")
	}

	content, err := BuildManifest(batch, items, m.now())
	if err != nil {
		return "", err
	}

	name := path.Join(batch.ID, ManifestFile)
	if err := m.sink.Deliver(ctx, name, content); err != nil {
		return "", eris.Wrap(err, "writing export manifest")
	}
	return name, nil
}

// BuildManifest renders the markdown index for an export.
func BuildManifest(batch *page.Batch, items []delivery.ExportItem, generatedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	title := "Page Export"
	if batch.Context.MainKeyword != "" {
		title += ": " + batch.Context.MainKeyword
	}
	md.H1(title)
	md.PlainText("")

	location := batch.Context.Location
	if location == "" {
		location = "-"
	}

	delivered, failed := 0, 0
	for _, item := range items {
		if item.Failed() {
			failed++
		} else {
			delivered++
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Batch", "`" + batch.ID + "`"},
			{"Main Keyword", batch.Context.MainKeyword},
			{"Location", location},
			{"Generated", generatedAt.UTC().Format(time.RFC3339)},
			{"Delivered", strconv.Itoa(delivered)},
			{"Failed", strconv.Itoa(failed)},
		},
	})
	md.PlainText("")

	if failed > 0 {
		md.Warningf("%d document(s) could not be exported and are missing from this directory.", failed)
		md.PlainText("")
	}

	if collisions := batch.SlugCollisions(); len(collisions) > 0 {
		md.Note("Colliding slugs were written to the same file: " + strings.Join(collisions, ", "))
		md.PlainText("")
	}

	md.H2("Pages")
	md.PlainText("")

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		file := "[" + path.Base(item.Name) + "](" + path.Base(item.Name) + ")"
		status := "exported"
		if item.Failed() {
			file = path.Base(item.Name)
			status = "failed"
		}
		rows = append(rows, []string{item.Title, item.Keyword, "`" + item.Slug + "`", file, status})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Title", "Keyword", "Slug", "File", "Status"},
		Rows:   rows,
	})

	if err := md.Build(); err != nil {
		return nil, eris.Wrap(err, "building export manifest")
	}
	return buf.Bytes(), nil
}
