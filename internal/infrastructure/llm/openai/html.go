package openai

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// introElements are the only tags a generated intro may keep. Every attribute is dropped.
var introElements = []string{"p", "br", "strong", "em", "b", "i", "ul", "ol", "li", "h2", "h3", "blockquote"}

var (
	introPolicy = bluemonday.NewPolicy().AllowElements(introElements...)
	textPolicy  = bluemonday.StrictPolicy()
)

// cleanGeneratedHTML reduces a model response to a body fragment. Document wrappers, head,
// comments and active content are dropped, h1 is demoted to h2, and the result is limited to
// introElements without attributes.
func cleanGeneratedHTML(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = stripCodeFence(trimmed)
	if trimmed == "" {
		return "", eris.New("html content is empty")
	}

	doc, err := html.Parse(strings.NewReader(trimmed))
	if err != nil {
		return "", eris.Wrap(err, "parsing html content")
	}

	root := &html.Node{Type: html.ElementNode, Data: "div"}
	appendSanitizedChildren(root, doc)

	if root.FirstChild == nil {
		return "", eris.New("html content empty after cleaning")
	}

	var builder strings.Builder
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&builder, child); err != nil {
			return "", eris.Wrap(err, "rendering cleaned html")
		}
	}

	cleaned := strings.TrimSpace(introPolicy.Sanitize(builder.String()))
	if strings.TrimSpace(textPolicy.Sanitize(cleaned)) == "" {
		return "", eris.New("html content empty after cleaning")
	}
	return cleaned, nil
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}

	body := content[3:]
	newline := strings.IndexByte(body, '\n')
	if newline == -1 {
		return content
	}
	body = body[newline+1:]

	trimmedBody := strings.TrimRight(body, " \t\r\n")
	if !strings.HasSuffix(trimmedBody, "```") {
		return content
	}

	trimmedBody = strings.TrimRight(trimmedBody[:len(trimmedBody)-3], " \t\r\n")
	return strings.TrimSpace(trimmedBody)
}

func appendSanitizedChildren(dst, src *html.Node) {
	if src == nil {
		return
	}

	skipWhitespace := src.Type == html.DocumentNode || (src.Type == html.ElementNode && (strings.EqualFold(src.Data, "html") || strings.EqualFold(src.Data, "body")))

	for child := src.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.TextNode:
			if skipWhitespace && isWhitespaceTextNode(child) {
				continue
			}
			dst.AppendChild(&html.Node{Type: html.TextNode, Data: child.Data})
		case html.ElementNode:
			name := strings.ToLower(child.Data)
			switch name {
			case "head", "script", "style", "iframe", "object", "embed", "form", "template", "noscript", "svg", "math":
				continue
			case "html", "body":
				appendSanitizedChildren(dst, child)
				continue
			}

			newName := name
			if name == "h1" {
				// The document already carries the page heading.
				newName = "h2"
			}

			replacement := &html.Node{Type: html.ElementNode, Data: newName}
			appendSanitizedChildren(replacement, child)
			dst.AppendChild(replacement)
		case html.CommentNode, html.DoctypeNode:
			continue
		default:
			appendSanitizedChildren(dst, child)
		}
	}
}

func isWhitespaceTextNode(node *html.Node) bool {
	if node == nil || node.Type != html.TextNode {
		return false
	}

	return strings.TrimSpace(node.Data) == ""
}
