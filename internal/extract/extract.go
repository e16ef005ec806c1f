// Package extract finds the visible prose in an XHTML document and lets the
// caller replace it in place.
//
// Markup is parsed strictly as XML first, so a well-formed document is
// written back with its prolog, namespaces and self-closing tags intact. If
// that fails the document is parsed as HTML and rendered as HTML.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var ErrUnprocessable = errors.New("extract: markup cannot be parsed")

// Containers whose text is never translated.
var skipTags = map[string]bool{
	"code": true, "pre": true, "kbd": true, "samp": true, "script": true, "style": true,
	"head": true, "title": true, "noscript": true, "template": true, "svg": true, "math": true,
}

// Elements that group spans into one paragraph for quality inspection.
var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "blockquote": true, "div": true, "td": true, "th": true, "dd": true, "dt": true,
	"figcaption": true, "caption": true, "section": true, "aside": true, "body": true,
}

var xmlDeclRe = regexp.MustCompile(`^\s*<\?xml[^>]*\?>\s*`)

// Document is a parsed content document.
type Document struct {
	root   *html.Node
	strict bool
	decl   string
	spans  []*Span
}

// Span is one visible text node.
type Span struct {
	node  *html.Node
	block *html.Node
}

// Paragraph is the spans sharing the nearest block-level ancestor.
type Paragraph struct {
	Spans []*Span
}

// Parse parses markup, strictly when it is well-formed XML and permissively
// otherwise. It returns ErrUnprocessable when neither parser accepts it.
func Parse(markup []byte) (*Document, error) {
	root, strictErr := parseStrict(markup)
	if strictErr == nil {
		return newDocument(root, true, ""), nil
	}

	if !utf8.Valid(markup) {
		return nil, fmt.Errorf("%w: strict: %v; permissive: invalid utf-8", ErrUnprocessable, strictErr)
	}
	decl := ""
	if m := xmlDeclRe.Find(markup); m != nil {
		decl = strings.TrimSpace(string(m))
		markup = markup[len(m):]
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: strict: %v; permissive: %v", ErrUnprocessable, strictErr, err)
	}
	return newDocument(doc.Get(0), false, decl), nil
}

func newDocument(root *html.Node, strict bool, decl string) *Document {
	d := &Document{root: root, strict: strict, decl: decl}
	d.collect(root, nil)
	return d
}

// Strict reports whether the document was parsed as well-formed XML.
func (d *Document) Strict() bool { return d.strict }

// Spans returns the visible text spans in document order.
func (d *Document) Spans() []*Span { return d.spans }

// Paragraphs groups spans by block ancestor, ordered by first span.
func (d *Document) Paragraphs() []Paragraph {
	var out []Paragraph
	index := make(map[*html.Node]int)
	for _, s := range d.spans {
		i, ok := index[s.block]
		if !ok {
			i = len(out)
			index[s.block] = i
			out = append(out, Paragraph{})
		}
		out[i].Spans = append(out[i].Spans, s)
	}
	return out
}

// Render serializes the document with its current span texts.
func (d *Document) Render() ([]byte, error) {
	var buf bytes.Buffer
	if d.strict {
		renderXML(&buf, d.root)
		return buf.Bytes(), nil
	}

	if d.decl != "" {
		buf.WriteString(d.decl)
		buf.WriteString("\n")
	}
	if err := html.Render(&buf, d.root); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *Document) collect(n *html.Node, block *html.Node) {
	switch n.Type {
	case html.ElementNode:
		name := localName(n.Data)
		if skipTags[name] {
			return
		}
		if blockTags[name] {
			block = n
		}
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" || n.Parent == nil || n.Parent.Type != html.ElementNode {
			return
		}
		if block == nil {
			block = n.Parent
		}
		d.spans = append(d.spans, &Span{node: n, block: block})
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.collect(c, block)
	}
}

// Text returns the span's text without surrounding whitespace.
func (s *Span) Text() string { return strings.TrimSpace(s.node.Data) }

// Replace sets the span's text, keeping the original leading and trailing
// whitespace so inline neighbours stay separated.
func (s *Span) Replace(text string) {
	data := s.node.Data
	lead := data[:len(data)-len(strings.TrimLeft(data, " \t\r\n"))]
	trail := data[len(strings.TrimRight(data, " \t\r\n")):]
	if strings.TrimSpace(data) == "" {
		trail = ""
	}
	s.node.Data = lead + text + trail
}

// Text returns the paragraph's span texts joined by single spaces.
func (p Paragraph) Text() string {
	parts := make([]string, 0, len(p.Spans))
	for _, s := range p.Spans {
		parts = append(parts, s.Text())
	}
	return strings.Join(parts, " ")
}

func localName(qname string) string {
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		qname = qname[i+1:]
	}
	return strings.ToLower(qname)
}
