package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	languageRe   = regexp.MustCompile(`(?s)<((?:[\w-]+:)?language)(\s[^>]*)?>.*?</(?:[\w-]+:)?language>`)
	modifiedRe   = regexp.MustCompile(`property\s*=\s*["']dcterms:modified["']`)
	identifierRe = regexp.MustCompile(`(?s)<(?:[\w-]+:)?identifier(\s[^>]*)?>(.*?)</(?:[\w-]+:)?identifier>`)
	idAttrRe     = regexp.MustCompile(`(?:^|\s)id\s*=\s*["']([^"']*)["']`)
)

// Link returns the href a document at fromPath uses to reach toPath.
func (b *Book) Link(fromPath, toPath string) string {
	return relative(path.Dir(fromPath), toPath)
}

// SetLanguage replaces every dc:language entry of the metadata with lang,
// adding one if the package has none.
func (b *Book) SetLanguage(lang string) {
	m := &b.Package.Metadata
	if languageRe.MatchString(m.Inner) {
		first := true
		m.Inner = languageRe.ReplaceAllStringFunc(m.Inner, func(s string) string {
			if !first {
				return ""
			}
			first = false
			sub := languageRe.FindStringSubmatch(s)
			return "<" + sub[1] + sub[2] + ">" + escapeXML(lang) + "</" + sub[1] + ">"
		})
		return
	}
	m.Inner = strings.TrimRight(m.Inner, " \t\r\n") +
		"\n    <dc:language>" + escapeXML(lang) + "</dc:language>\n  "
	b.ensureDCNamespace()
}

// Identifier returns the text of the dc:identifier the package's
// unique-identifier attribute points at, or the first identifier.
func (b *Book) Identifier() string {
	var first string
	for _, m := range identifierRe.FindAllStringSubmatch(b.Package.Metadata.Inner, -1) {
		id := strings.TrimSpace(m[2])
		if first == "" {
			first = id
		}
		if b.Package.UniqueID != "" && idAttr(m[1]) == b.Package.UniqueID {
			return id
		}
	}
	return first
}

func idAttr(attrs string) string {
	if m := idAttrRe.FindStringSubmatch(attrs); m != nil {
		return m[1]
	}
	return ""
}

// EnsureModified adds the dcterms:modified entry EPUB 3 requires when the
// metadata has none.
func (b *Book) EnsureModified(t time.Time) {
	m := &b.Package.Metadata
	if modifiedRe.MatchString(m.Inner) {
		return
	}
	m.Inner = strings.TrimRight(m.Inner, " \t\r\n") +
		"\n    <meta property=\"dcterms:modified\">" + t.UTC().Format("2006-01-02T15:04:05Z") + "</meta>\n  "
}

func (b *Book) ensureDCNamespace() {
	const dc = "http://purl.org/dc/elements/1.1/"
	for _, attrs := range [][]xml.Attr{b.Package.Attrs, b.Package.Metadata.Attrs} {
		for _, a := range attrs {
			if a.Name.Space == "xmlns" && a.Name.Local == "dc" {
				return
			}
		}
	}
	b.Package.Metadata.Attrs = append(b.Package.Metadata.Attrs,
		xml.Attr{Name: xml.Name{Space: "xmlns", Local: "dc"}, Value: dc})
}

// MarshalPackage renders the OPF package document.
func (b *Book) MarshalPackage() []byte {
	pkg := b.Package
	prefixes := namespacePrefixes(pkg.Attrs, pkg.Metadata.Attrs)

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	sb.WriteString("<package")
	hasDefaultNS := false
	for _, a := range pkg.Attrs {
		if a.Name.Space == "" && a.Name.Local == "xmlns" {
			hasDefaultNS = true
		}
	}
	if !hasDefaultNS {
		writeAttr(&sb, "xmlns", opfNamespace)
	}
	writeAttr(&sb, "version", pkg.Version)
	if pkg.UniqueID != "" {
		writeAttr(&sb, "unique-identifier", pkg.UniqueID)
	}
	for _, a := range pkg.Attrs {
		writeAttr(&sb, attrName(a.Name, prefixes), a.Value)
	}
	sb.WriteString(">\n")

	sb.WriteString("  <metadata")
	for _, a := range pkg.Metadata.Attrs {
		writeAttr(&sb, attrName(a.Name, prefixes), a.Value)
	}
	sb.WriteString(">")
	sb.WriteString(pkg.Metadata.Inner)
	sb.WriteString("</metadata>\n")

	sb.WriteString("  <manifest>\n")
	for _, it := range pkg.Manifest.Items {
		sb.WriteString("    <item")
		writeAttr(&sb, "id", it.ID)
		writeAttr(&sb, "href", it.Href)
		writeAttr(&sb, "media-type", it.MediaType)
		if it.Properties != "" {
			writeAttr(&sb, "properties", it.Properties)
		}
		if it.Fallback != "" {
			writeAttr(&sb, "fallback", it.Fallback)
		}
		if it.MediaOverlay != "" {
			writeAttr(&sb, "media-overlay", it.MediaOverlay)
		}
		sb.WriteString("/>\n")
	}
	sb.WriteString("  </manifest>\n")

	sb.WriteString("  <spine")
	if pkg.Spine.TOC != "" {
		writeAttr(&sb, "toc", pkg.Spine.TOC)
	}
	if pkg.Spine.PageProgressionDirection != "" {
		writeAttr(&sb, "page-progression-direction", pkg.Spine.PageProgressionDirection)
	}
	sb.WriteString(">\n")
	for _, ref := range pkg.Spine.ItemRefs {
		sb.WriteString("    <itemref")
		writeAttr(&sb, "idref", ref.IDRef)
		if ref.Linear != "" {
			writeAttr(&sb, "linear", ref.Linear)
		}
		if ref.Properties != "" {
			writeAttr(&sb, "properties", ref.Properties)
		}
		sb.WriteString("/>\n")
	}
	sb.WriteString("  </spine>\n")

	if pkg.Guide != nil && len(pkg.Guide.References) > 0 {
		sb.WriteString("  <guide>\n")
		for _, ref := range pkg.Guide.References {
			sb.WriteString("    <reference")
			writeAttr(&sb, "type", ref.Type)
			if ref.Title != "" {
				writeAttr(&sb, "title", ref.Title)
			}
			writeAttr(&sb, "href", ref.Href)
			sb.WriteString("/>\n")
		}
		sb.WriteString("  </guide>\n")
	}

	sb.WriteString("</package>\n")
	return []byte(sb.String())
}

// Write serializes the book as an EPUB archive: the stored mimetype entry
// first, then every other entry in its original order with parts and the
// package document replaced by their current state.
func (b *Book) Write(w io.Writer) error {
	for _, p := range b.Parts {
		b.SetFile(p.Path, p.Content)
	}
	b.SetFile(b.OPFPath, b.MarshalPackage())

	zw := zip.NewWriter(w)

	mw, err := zw.CreateHeader(&zip.FileHeader{Name: mimetypeName, Method: zip.Store})
	if err != nil {
		return fmt.Errorf("write mimetype: %w", err)
	}
	if _, err := io.WriteString(mw, mimetype); err != nil {
		return fmt.Errorf("write mimetype: %w", err)
	}

	for _, name := range b.Order {
		if name == mimetypeName {
			continue
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		if _, err := fw.Write(b.Files[name]); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func namespacePrefixes(attrSets ...[]xml.Attr) map[string]string {
	prefixes := map[string]string{xmlNamespace: "xml"}
	for _, attrs := range attrSets {
		for _, a := range attrs {
			if a.Name.Space == "xmlns" {
				prefixes[a.Value] = a.Name.Local
			}
		}
	}
	return prefixes
}

// attrName restores the qualified name encoding/xml resolved to a namespace.
func attrName(n xml.Name, prefixes map[string]string) string {
	switch {
	case n.Space == "":
		return n.Local
	case n.Space == "xmlns":
		return "xmlns:" + n.Local
	}
	if p, ok := prefixes[n.Space]; ok {
		return p + ":" + n.Local
	}
	return n.Local
}

func writeAttr(sb *strings.Builder, name, value string) {
	sb.WriteString(" ")
	sb.WriteString(name)
	sb.WriteString(`="`)
	sb.WriteString(escapeXML(value))
	sb.WriteString(`"`)
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
