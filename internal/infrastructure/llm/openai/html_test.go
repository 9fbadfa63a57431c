package openai

import (
	"strings"
	"testing"
)

func TestCleanGeneratedHTMLUnwrapsDocument(t *testing.T) {
	t.Parallel()

	input := `<html><body><header class="hero"><h1>Title</h1></header><main><p>Body</p></main></body></html>`
	cleaned, err := cleanGeneratedHTML(input)
	if err != nil {
		t.Fatalf("cleanGeneratedHTML returned error: %v", err)
	}

	const expected = `<h2>Title</h2><p>Body</p>`
	if cleaned != expected {
		t.Fatalf("expected cleaned html %q, got %q", expected, cleaned)
	}
}

func TestCleanGeneratedHTMLPreservesInlineWhitespace(t *testing.T) {
	t.Parallel()

	input := `<body><p><strong>Alpha</strong> <em>Beta</em></p></body>`
	cleaned, err := cleanGeneratedHTML(input)
	if err != nil {
		t.Fatalf("cleanGeneratedHTML returned error: %v", err)
	}

	const expected = `<p><strong>Alpha</strong> <em>Beta</em></p>`
	if cleaned != expected {
		t.Fatalf("expected inline whitespace preserved, got %q", cleaned)
	}
}

func TestCleanGeneratedHTMLDropsActiveContent(t *testing.T) {
	t.Parallel()

	input := "```html\n<!DOCTYPE html>\n<html><head><title>x</title><style>p{}</style></head><body>" +
		`<p onmouseover="steal()">Call <a href="javascript:alert(1)">now</a> or <a href="/contact">contact us</a>.</p>` +
		`<iframe src="https://evil.example"></iframe><form><input></form></body></html>` + "\n```"

	cleaned, err := cleanGeneratedHTML(input)
	if err != nil {
		t.Fatalf("cleanGeneratedHTML returned error: %v", err)
	}

	for _, banned := range []string{"```", "onmouseover", "javascript:", "<iframe", "<form", "<style", "<title", "<a "} {
		if strings.Contains(cleaned, banned) {
			t.Fatalf("expected %q to be removed, got %q", banned, cleaned)
		}
	}
	if cleaned != `<p>Call now or contact us.</p>` {
		t.Fatalf("expected link text to survive without markup, got %q", cleaned)
	}
}

func TestCleanGeneratedHTMLDropsRefreshDirective(t *testing.T) {
	t.Parallel()

	input := `<p>Fast plumbers.<meta http-equiv="refresh" content="0;url=https://evil.example"></p>`
	cleaned, err := cleanGeneratedHTML(input)
	if err != nil {
		t.Fatalf("cleanGeneratedHTML returned error: %v", err)
	}

	if strings.Contains(cleaned, "refresh") || strings.Contains(cleaned, "evil.example") || strings.Contains(cleaned, "<meta") {
		t.Fatalf("expected refresh directive to be removed, got %q", cleaned)
	}
	if cleaned != `<p>Fast plumbers.</p>` {
		t.Fatalf("expected paragraph text to survive, got %q", cleaned)
	}

	if _, err := cleanGeneratedHTML(`<p><meta http-equiv="refresh" content="0;url=https://evil.example"></p>`); err == nil {
		t.Fatalf("expected error when only a refresh directive remains")
	}
}

func TestCleanGeneratedHTMLDropsObfuscatedScriptURLs(t *testing.T) {
	t.Parallel()

	for _, href := range []string{"java\tscript:alert(1)", "JaVaScRiPt:alert(1)", " javascript:alert(1)", "data:text/html,<script>alert(1)</script>"} {
		cleaned, err := cleanGeneratedHTML(`<p><a href="` + href + `">Call us</a> <img src="` + href + `"></p>`)
		if err != nil {
			t.Fatalf("cleanGeneratedHTML returned error for %q: %v", href, err)
		}

		if strings.Contains(cleaned, "href") || strings.Contains(cleaned, "src") || strings.Contains(strings.ToLower(cleaned), "script") {
			t.Fatalf("expected url %q to be removed, got %q", href, cleaned)
		}
		if cleaned != `<p>Call us </p>` {
			t.Fatalf("expected only link text for %q, got %q", href, cleaned)
		}
	}
}

func TestCleanGeneratedHTMLDropsAttributes(t *testing.T) {
	t.Parallel()

	cleaned, err := cleanGeneratedHTML(`<p class="lead" style="color:red" id="x">Hi<br data-x="1"></p><ul><li title="t">One</li></ul>`)
	if err != nil {
		t.Fatalf("cleanGeneratedHTML returned error: %v", err)
	}

	const expected = `<p>Hi<br/></p><ul><li>One</li></ul>`
	if cleaned != expected {
		t.Fatalf("expected %q, got %q", expected, cleaned)
	}
}

func TestCleanGeneratedHTMLRejectsEmpty(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "<!-- only a comment -->", "```html\n\n```", "<script>alert(1)</script>"} {
		if _, err := cleanGeneratedHTML(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
