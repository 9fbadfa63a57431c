package openai

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"

	domainllm "seoflood/app/internal/domain/llm"
	"seoflood/app/internal/domain/page"
)

type stubCompleter struct {
	content string
	err     error
	last    domainllm.Request
}

var _ domainllm.Completer = (*stubCompleter)(nil)

func (s *stubCompleter) Complete(ctx context.Context, req domainllm.Request) (string, error) {
	s.last = req
	if s.err != nil {
		return "", s.err
	}
	return s.content, nil
}

func TestNewCopywriterRequiresCompleter(t *testing.T) {
	t.Parallel()

	if _, err := NewCopywriter(CopywriterOptions{}); err == nil {
		t.Fatalf("expected error without completer")
	}
}

func TestCopywriterCleansIntro(t *testing.T) {
	t.Parallel()

	completer := &stubCompleter{content: "```html\n<html><body><h1>Plumbers</h1><p onclick=\"x()\">Fast help.</p><script>alert(1)</script></body></html>\n```"}
	writer, err := NewCopywriter(CopywriterOptions{Completer: completer, Logger: silentLogger()})
	if err != nil {
		t.Fatalf("NewCopywriter returned error: %v", err)
	}

	settings := page.DefaultSettings()
	settings.WordCount = 800
	record := page.PageRecord{Keyword: "plumber near me", Slug: "plumber-near-me"}

	intro, err := writer.WriteIntro(context.Background(), record, settings, page.GenerationContext{MainKeyword: "plumber", Location: "Miami", Category: "home services"})
	if err != nil {
		t.Fatalf("WriteIntro returned error: %v", err)
	}

	const expected = `<h2>Plumbers</h2><p>Fast help.</p>`
	if intro != expected {
		t.Fatalf("expected cleaned intro %q, got %q", expected, intro)
	}

	for _, want := range []string{"Target Keyword: plumber near me", "Location: Miami", "Category: home services", "about 200 words"} {
		if !strings.Contains(completer.last.UserInstruction, want) {
			t.Fatalf("expected prompt to contain %q, got %q", want, completer.last.UserInstruction)
		}
	}
	if completer.last.ExpectJSON {
		t.Fatalf("expected a plain text request")
	}
}

func TestCopywriterPropagatesErrors(t *testing.T) {
	t.Parallel()

	writer, err := NewCopywriter(CopywriterOptions{Completer: &stubCompleter{err: eris.New("upstream down")}})
	if err != nil {
		t.Fatalf("NewCopywriter returned error: %v", err)
	}
	if _, err := writer.WriteIntro(context.Background(), page.PageRecord{Keyword: "x"}, page.DefaultSettings(), page.GenerationContext{}); err == nil {
		t.Fatalf("expected completer error to surface")
	}

	writer, _ = NewCopywriter(CopywriterOptions{Completer: &stubCompleter{content: "<!-- nothing -->"}})
	if _, err := writer.WriteIntro(context.Background(), page.PageRecord{Keyword: "x"}, page.DefaultSettings(), page.GenerationContext{}); err == nil {
		t.Fatalf("expected error for an intro that is empty after cleaning")
	}

	if _, err := writer.WriteIntro(context.Background(), page.PageRecord{}, page.DefaultSettings(), page.GenerationContext{}); err == nil {
		t.Fatalf("expected error for missing keyword")
	}
}
