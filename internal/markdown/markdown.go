// Package markdown renders post sources into HTML that is safe to embed in a
// page.
package markdown

import (
	"bytes"
	"regexp"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// highlightClass matches the class names chroma emits (chroma, line, lnt, k,
// nf, ...) and the language-xxx class goldmark puts on fenced code.
var highlightClass = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// Publisher converts markdown to sanitized HTML. It is safe for concurrent
// use.
type Publisher struct {
	markdown  goldmark.Markdown
	policy    *bluemonday.Policy
	codeStyle string
}

// NewPublisher creates a Publisher highlighting code blocks with the given
// chroma style.
func NewPublisher(codeStyle string) *Publisher {
	if codeStyle == "" {
		codeStyle = "onedark"
	}
	// Raw HTML is passed through by the renderer; the sanitizer decides what
	// survives.
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle(codeStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
					chromahtml.TabWidth(2),
				),
			),
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithUnsafe(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(highlightClass).OnElements("pre", "code", "span", "div")
	policy.AllowAttrs("id").Matching(bluemonday.SpaceSeparatedTokens).OnElements("h1", "h2", "h3", "h4", "h5", "h6", "li", "sup")
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Publisher{markdown: md, policy: policy, codeStyle: codeStyle}
}

// Render converts source to HTML and sanitizes the result.
func (p *Publisher) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return p.policy.SanitizeReader(&buf).String(), nil
}

// CSS returns the stylesheet for the highlighting classes in rendered code
// blocks.
func (p *Publisher) CSS() (string, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(p.codeStyle)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
