package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/page"
)

func TestNewDirectorySinkRequiresRoot(t *testing.T) {
	t.Parallel()

	if _, err := NewDirectorySink(DirectorySinkOptions{}); err == nil {
		t.Fatalf("expected error without root directory")
	}
}

func TestDirectorySinkWritesDocuments(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "export")
	sink, err := NewDirectorySink(DirectorySinkOptions{Root: root})
	if err != nil {
		t.Fatalf("NewDirectorySink returned error: %v", err)
	}

	if err := sink.Deliver(context.Background(), "batch-1/best-dentist.html", []byte("<html>first</html>")); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if err := sink.Deliver(context.Background(), "batch-1/best-dentist.html", []byte("<html>second</html>")); err != nil {
		t.Fatalf("Deliver returned error on overwrite: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(root, "batch-1", "best-dentist.html"))
	if err != nil {
		t.Fatalf("reading exported file: %v", err)
	}
	if string(content) != "<html>second</html>" {
		t.Fatalf("expected latest content, got %q", content)
	}

	entries, err := os.ReadDir(filepath.Join(root, "batch-1"))
	if err != nil {
		t.Fatalf("reading export directory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no temporary files left behind, got %d entries", len(entries))
	}
}

func TestDirectorySinkRejectsEscapingNames(t *testing.T) {
	t.Parallel()

	sink, err := NewDirectorySink(DirectorySinkOptions{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("NewDirectorySink returned error: %v", err)
	}

	for _, name := range []string{"", "../outside.html", "/etc/passwd", "a/../../b.html"} {
		if err := sink.Deliver(context.Background(), name, []byte("x")); err == nil {
			t.Fatalf("expected error for name %q", name)
		}
	}
}

func TestDirectorySinkHonoursCancellation(t *testing.T) {
	t.Parallel()

	sink, err := NewDirectorySink(DirectorySinkOptions{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("NewDirectorySink returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Deliver(ctx, "a.html", []byte("x")); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestNameFor(t *testing.T) {
	t.Parallel()

	batch := &page.Batch{ID: "batch-9"}
	if got := NameFor(batch, page.PageRecord{Slug: "plumber-near-me"}); got != "batch-9/plumber-near-me.html" {
		t.Fatalf("expected batch-9/plumber-near-me.html, got %q", got)
	}
}

func TestManifestWriterWritesIndex(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sink, err := NewDirectorySink(DirectorySinkOptions{Root: root})
	if err != nil {
		t.Fatalf("NewDirectorySink returned error: %v", err)
	}

	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	writer, err := NewManifestWriter(sink, func() time.Time { return fixed })
	if err != nil {
		t.Fatalf("NewManifestWriter returned error: %v", err)
	}

	batch := &page.Batch{
		ID:      "batch-1",
		Context: page.GenerationContext{MainKeyword: "plumber", Location: "Miami"},
		Pages: []page.PageRecord{
			{ID: "1", Slug: "plumber"},
			{ID: "2", Slug: "plumber"},
		},
	}
	items := []delivery.ExportItem{
		{PageID: "1", Slug: "plumber", Title: "Plumber!! - Miami", Keyword: "Plumber!!", Name: "batch-1/plumber.html"},
		{PageID: "2", Slug: "plumber", Title: "Plumber?? - Miami", Keyword: "Plumber??", Name: "batch-1/plumber.html", Error: "export item failed"},
	}

	name, err := writer.WriteManifest(context.Background(), batch, items)
	if err != nil {
		t.Fatalf("WriteManifest returned error: %v", err)
	}
	if name != "batch-1/index.md" {
		t.Fatalf("expected manifest name batch-1/index.md, got %q", name)
	}

	content, err := os.ReadFile(filepath.Join(root, "batch-1", "index.md"))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}

	text := string(content)
	for _, want := range []string{
		"# Page Export: plumber",
		"2025-03-04T05:06:07Z",
		"[plumber.html](plumber.html)",
		"Plumber!! - Miami",
		"failed",
		"Colliding slugs",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected manifest to contain %q\n%s", want, text)
		}
	}
}

func TestNewManifestWriterRequiresSink(t *testing.T) {
	t.Parallel()

	if _, err := NewManifestWriter(nil, nil); err == nil {
		t.Fatalf("expected error without sink")
	}
}
