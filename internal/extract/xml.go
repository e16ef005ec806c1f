package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Elements written as <x/> when empty. Others always get an end tag, since
// reading systems choke on <div/> or <script/>.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "param": true,
	"source": true, "track": true, "wbr": true,
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// parseStrict builds a node tree from well-formed XML. Prefixed names are
// kept as written ("epub:type"). Everything outside the root element and
// every processing instruction, directive or comment is kept as raw bytes.
func parseStrict(data []byte) (*html.Node, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = true
	d.Entity = xml.HTMLEntity

	doc := &html.Node{Type: html.DocumentNode}
	cur := doc
	var open []string
	sawRoot := false

	for {
		start := d.InputOffset()
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		raw := string(data[start:d.InputOffset()])

		switch t := tok.(type) {
		case xml.StartElement:
			if cur == doc && sawRoot {
				return nil, fmt.Errorf("second root element <%s>", qname(t.Name))
			}
			sawRoot = true
			n := &html.Node{Type: html.ElementNode, Data: qname(t.Name)}
			for _, a := range t.Attr {
				n.Attr = append(n.Attr, html.Attribute{Key: qname(a.Name), Val: a.Value})
			}
			cur.AppendChild(n)
			cur = n
			open = append(open, n.Data)

		case xml.EndElement:
			name := qname(t.Name)
			if len(open) == 0 || open[len(open)-1] != name {
				return nil, fmt.Errorf("unexpected end element </%s>", name)
			}
			open = open[:len(open)-1]
			cur = cur.Parent

		case xml.CharData:
			if cur == doc {
				if strings.TrimSpace(string(t)) != "" {
					return nil, errors.New("text outside root element")
				}
				cur.AppendChild(&html.Node{Type: html.RawNode, Data: raw})
				continue
			}
			if strings.HasPrefix(raw, "<![CDATA[") && insideSkipped(open) {
				cur.AppendChild(&html.Node{Type: html.RawNode, Data: raw})
				continue
			}
			cur.AppendChild(&html.Node{Type: html.TextNode, Data: string(t)})

		default:
			cur.AppendChild(&html.Node{Type: html.RawNode, Data: raw})
		}
	}

	if len(open) > 0 {
		return nil, fmt.Errorf("unclosed element <%s>", open[len(open)-1])
	}
	if !sawRoot {
		return nil, errors.New("no root element")
	}
	return doc, nil
}

// insideSkipped reports whether the innermost open elements include one
// whose text is never translated.
func insideSkipped(open []string) bool {
	for i := len(open) - 1; i >= 0; i-- {
		if skipTags[localName(open[i])] {
			return true
		}
	}
	return false
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func renderXML(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.RawNode:
		buf.WriteString(n.Data)
		return
	case html.TextNode:
		buf.WriteString(textEscaper.Replace(n.Data))
		return
	case html.CommentNode:
		buf.WriteString("<!--" + n.Data + "-->")
		return
	case html.ElementNode:
		buf.WriteString("<" + n.Data)
		for _, a := range n.Attr {
			buf.WriteString(" " + a.Key + `="` + attrEscaper.Replace(a.Val) + `"`)
		}
		if n.FirstChild == nil && voidTags[localName(n.Data)] {
			buf.WriteString("/>")
			return
		}
		buf.WriteString(">")
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderXML(buf, c)
	}

	if n.Type == html.ElementNode {
		buf.WriteString("</" + n.Data + ">")
	}
}
