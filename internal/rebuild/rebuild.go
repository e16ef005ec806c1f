// Package rebuild regenerates the navigation document, the NCX table of
// contents and the spine of an EPUB from its content documents.
//
// The source TOC is discarded, never patched: the result is one flat entry
// per part, in reading order, whatever state the original metadata was in.
package rebuild

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/valpere/epubtran/internal/epub"
)

var ErrNoParts = errors.New("rebuild: no parts with a resolvable path")

const (
	navHref = "nav/nav.xhtml"
	ncxHref = "toc.ncx"
)

// Entry is one TOC line.
type Entry struct {
	PartID string
	Href   string
	Title  string
}

// Result describes the regenerated navigation.
type Result struct {
	NavID   string
	NavPath string
	NCXID   string
	NCXPath string
	Entries []Entry
	Spine   []string
}

// Rebuild replaces the book's nav, NCX and spine. Every part with a file in
// the archive appears exactly once in the spine and the TOC, in order, after
// the nav document. title labels the TOC; the book's part titles fall back to
// the manifest id and then the file name.
func Rebuild(b *epub.Book, title string) (*Result, error) {
	var parts []*epub.Part
	partPaths := make(map[string]bool)
	for _, p := range b.Parts {
		if p.Path == "" || p.ID == "" {
			continue
		}
		if _, ok := b.Files[p.Path]; !ok {
			continue
		}
		parts = append(parts, p)
		partPaths[p.Path] = true
	}
	if len(parts) == 0 {
		return nil, ErrNoParts
	}

	dropNavigation(b, partPaths)

	navPath := uniquePath(b, b.Resolve(navHref))
	ncxPath := uniquePath(b, b.Resolve(ncxHref))
	res := &Result{
		NavID:   uniqueID(b, "nav"),
		NavPath: navPath,
		NCXPath: ncxPath,
	}
	res.NCXID = uniqueID(b, "ncx", res.NavID)

	for _, p := range parts {
		res.Entries = append(res.Entries, Entry{PartID: p.ID, Href: p.Href, Title: partTitle(p)})
	}

	if title == "" {
		title = "Contents"
	}
	b.SetFile(navPath, navDocument(b, navPath, title, parts, res.Entries))
	b.SetFile(ncxPath, ncxDocument(b, ncxPath, title, parts, res.Entries))

	pkg := b.Package
	pkg.Manifest.Items = append(pkg.Manifest.Items,
		epub.Item{ID: res.NavID, Href: b.Href(navPath), MediaType: epub.MediaTypeXHTML, Properties: "nav"},
		epub.Item{ID: res.NCXID, Href: b.Href(ncxPath), MediaType: epub.MediaTypeNCX},
	)

	old := make(map[string]epub.ItemRef, len(pkg.Spine.ItemRefs))
	for _, ref := range pkg.Spine.ItemRefs {
		old[ref.IDRef] = ref
	}
	refs := []epub.ItemRef{{IDRef: res.NavID}}
	for _, p := range parts {
		ref := old[p.ID]
		ref.IDRef = p.ID
		refs = append(refs, ref)
	}
	pkg.Spine.ItemRefs = refs
	pkg.Spine.TOC = res.NCXID
	for _, r := range refs {
		res.Spine = append(res.Spine, r.IDRef)
	}

	pkg.Version = "3.0"
	b.EnsureModified(time.Now())
	b.Parts = parts
	return res, nil
}

// dropNavigation removes every nav document and NCX from the manifest and
// the archive, along with guide references to them.
func dropNavigation(b *epub.Book, partPaths map[string]bool) {
	pkg := b.Package
	removed := make(map[string]bool)

	items := pkg.Manifest.Items[:0]
	for _, it := range pkg.Manifest.Items {
		p := b.Resolve(it.Href)
		isNav := it.HasProperty("nav") || it.MediaType == epub.MediaTypeNCX || (pkg.Spine.TOC != "" && it.ID == pkg.Spine.TOC)
		if isNav && !partPaths[p] {
			removed[p] = true
			continue
		}
		items = append(items, it)
	}
	pkg.Manifest.Items = items

	for p := range removed {
		b.RemoveFile(p)
	}

	if pkg.Guide != nil {
		refs := pkg.Guide.References[:0]
		for _, r := range pkg.Guide.References {
			if !removed[b.Resolve(r.Href)] {
				refs = append(refs, r)
			}
		}
		pkg.Guide.References = refs
		if len(refs) == 0 {
			pkg.Guide = nil
		}
	}
	pkg.Spine.TOC = ""
}

func uniquePath(b *epub.Book, p string) string {
	if _, taken := b.Files[p]; !taken {
		return p
	}
	ext := path.Ext(p)
	stem := strings.TrimSuffix(p, ext)
	for i := 1; ; i++ {
		c := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if _, taken := b.Files[c]; !taken {
			return c
		}
	}
}

func uniqueID(b *epub.Book, id string, reserved ...string) string {
	taken := func(c string) bool {
		for _, r := range reserved {
			if r == c {
				return true
			}
		}
		_, ok := b.Package.Item(c)
		return ok
	}
	if !taken(id) {
		return id
	}
	for i := 1; ; i++ {
		c := fmt.Sprintf("%s-%d", id, i)
		if !taken(c) {
			return c
		}
	}
}

func partTitle(p *epub.Part) string {
	if t := epub.TitleOf(p.Content); t != "" {
		return t
	}
	if p.Title != "" {
		return p.Title
	}
	if p.ID != "" {
		return p.ID
	}
	base := path.Base(p.Path)
	return strings.TrimSuffix(base, path.Ext(base))
}

func escapePath(p string) string {
	return (&url.URL{Path: p}).EscapedPath()
}

func navDocument(b *epub.Book, navPath, title string, parts []*epub.Part, entries []Entry) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
  <meta charset="utf-8"/>
  <title>` + html.EscapeString(title) + `</title>
</head>
<body>
  <nav epub:type="toc" id="toc">
    <h1>` + html.EscapeString(title) + `</h1>
    <ol>
`)
	for i, e := range entries {
		href := escapePath(b.Link(navPath, parts[i].Path))
		fmt.Fprintf(&sb, "      <li><a href=\"%s\">%s</a></li>\n", html.EscapeString(href), html.EscapeString(e.Title))
	}
	sb.WriteString(`    </ol>
  </nav>
</body>
</html>
`)
	return []byte(sb.String())
}

func ncxDocument(b *epub.Book, ncxPath, title string, parts []*epub.Part, entries []Entry) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="` + html.EscapeString(b.Identifier()) + `"/>
    <meta name="dtb:depth" content="1"/>
    <meta name="dtb:totalPageCount" content="0"/>
    <meta name="dtb:maxPageNumber" content="0"/>
  </head>
  <docTitle><text>` + html.EscapeString(title) + `</text></docTitle>
  <navMap>
`)
	for i, e := range entries {
		src := escapePath(b.Link(ncxPath, parts[i].Path))
		fmt.Fprintf(&sb, "    <navPoint id=\"navpoint-%d\" playOrder=\"%d\"><navLabel><text>%s</text></navLabel><content src=\"%s\"/></navPoint>\n",
			i+1, i+1, html.EscapeString(e.Title), html.EscapeString(src))
	}
	sb.WriteString(`  </navMap>
</ncx>
`)
	return []byte(sb.String())
}
