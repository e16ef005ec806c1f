// Package epubtest builds small EPUB archives for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// File is one archive entry.
type File struct {
	Name string
	Body string
}

// Doc is a content document placed under OEBPS/.
type Doc struct {
	ID    string
	Href  string
	Title string
	Body  string
}

// Zip writes the entries, in order, after a stored mimetype entry.
func Zip(t testing.TB, files ...File) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("create mimetype: %v", err)
	}
	_, _ = w.Write([]byte("application/epub+zip"))

	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			t.Fatalf("create %s: %v", f.Name, err)
		}
		if _, err := w.Write([]byte(f.Body)); err != nil {
			t.Fatalf("write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// Container points at OEBPS/content.opf.
const Container = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// XHTML wraps a body in a well-formed XHTML document.
func XHTML(title, body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en">
<head><title>` + title + `</title></head>
<body>` + body + `</body>
</html>`
}

// OPF renders an EPUB 2 package listing docs in manifest and spine order,
// with a toc.ncx item and a stylesheet.
func OPF(docs []Doc) string {
	var items, refs strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&items, "    <item id=%q href=%q media-type=\"application/xhtml+xml\"/>\n", d.ID, d.Href)
		fmt.Fprintf(&refs, "    <itemref idref=%q/>\n", d.ID)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Sample Book</dc:title>
    <dc:language>en</dc:language>
    <dc:identifier id="bookid" opf:scheme="UUID">urn:uuid:0b7d6b2e-1f0e-4b8a-9c3f-5a2d1e6f7a80</dc:identifier>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
` + items.String() + `  </manifest>
  <spine toc="ncx">
` + refs.String() + `  </spine>
  <guide>
    <reference type="toc" title="Contents" href="toc.ncx"/>
  </guide>
</package>`
}

// StaleNCX lists only the first doc, as a broken source TOC would.
func StaleNCX(docs []Doc) string {
	var points string
	if len(docs) > 0 {
		points = fmt.Sprintf(`<navPoint id="p1" playOrder="1"><navLabel><text>Old</text></navLabel><content src=%q/></navPoint>`, docs[0].Href)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1"><navMap>` + points + `</navMap></ncx>`
}

// Book returns a complete EPUB with the given content documents.
func Book(t testing.TB, docs ...Doc) []byte {
	t.Helper()
	files := []File{
		{Name: "META-INF/container.xml", Body: Container},
		{Name: "OEBPS/content.opf", Body: OPF(docs)},
		{Name: "OEBPS/toc.ncx", Body: StaleNCX(docs)},
		{Name: "OEBPS/style.css", Body: "body { margin: 0; }"},
	}
	for _, d := range docs {
		files = append(files, File{Name: "OEBPS/" + d.Href, Body: XHTML(d.Title, d.Body)})
	}
	return Zip(t, files...)
}

// WriteBook writes Book(t, docs...) to a file in a temp directory.
func WriteBook(t testing.TB, docs ...Doc) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(p, Book(t, docs...), 0o644); err != nil {
		t.Fatalf("write book: %v", err)
	}
	return p
}
