// Package epub reads and writes EPUB containers in memory.
//
// A Book keeps every archive entry as bytes, the parsed OPF package and the
// content documents (parts) in reading order. Parts are edited in place and
// the whole archive is serialized again by Write.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrNoRootfile = errors.New("epub: container has no rootfile")
	ErrMissingOPF = errors.New("epub: package document not found")
)

// Book is an EPUB archive held in memory.
type Book struct {
	Files   map[string][]byte
	Order   []string
	OPFPath string
	Package *Package
	Parts   []*Part
}

// Part is one XHTML content document. Path is the archive path; Href is the
// manifest href relative to the package document.
type Part struct {
	ID        string
	Href      string
	Path      string
	MediaType string
	Title     string
	Content   []byte
}

// Open reads the EPUB at path.
func Open(name string) (*Book, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read epub: %w", err)
	}
	return Read(bytes.NewReader(data), int64(len(data)))
}

// Read parses an EPUB archive.
func Read(r io.ReaderAt, size int64) (*Book, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	b := &Book{Files: make(map[string][]byte, len(zr.File))}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		if _, dup := b.Files[f.Name]; !dup {
			b.Order = append(b.Order, f.Name)
		}
		b.Files[f.Name] = data
	}

	if err := b.parseContainer(); err != nil {
		return nil, err
	}
	if err := b.parsePackage(); err != nil {
		return nil, err
	}
	b.collectParts()
	return b, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func (b *Book) parseContainer() error {
	data, ok := b.Files[containerPath]
	if !ok {
		return fmt.Errorf("%w: %s missing", ErrNoRootfile, containerPath)
	}

	var c Container
	if err := xml.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse container.xml: %w", err)
	}
	for _, rf := range c.Rootfiles {
		if rf.FullPath != "" {
			b.OPFPath = rf.FullPath
			return nil
		}
	}
	return ErrNoRootfile
}

func (b *Book) parsePackage() error {
	data, ok := b.Files[b.OPFPath]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingOPF, b.OPFPath)
	}

	var pkg Package
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return fmt.Errorf("parse package document: %w", err)
	}
	b.Package = &pkg
	return nil
}

// collectParts lists content documents in spine order, then documents that
// are in the manifest but not in the spine. Navigation documents, items whose
// file is missing from the archive and second items for the same file are
// not parts.
func (b *Book) collectParts() {
	b.Parts = nil
	seen := make(map[string]bool)
	seenPath := make(map[string]bool)

	add := func(it Item) {
		if seen[it.ID] || !it.IsDocument() || it.HasProperty("nav") {
			return
		}
		seen[it.ID] = true
		p := b.Resolve(it.Href)
		content, ok := b.Files[p]
		if !ok || seenPath[p] {
			return
		}
		seenPath[p] = true
		b.Parts = append(b.Parts, &Part{
			ID:        it.ID,
			Href:      it.Href,
			Path:      p,
			MediaType: it.MediaType,
			Title:     TitleOf(content),
			Content:   content,
		})
	}

	for _, ref := range b.Package.Spine.ItemRefs {
		if it, ok := b.Package.Item(ref.IDRef); ok {
			add(it)
		}
	}
	for _, it := range b.Package.Manifest.Items {
		add(it)
	}
}

// Resolve maps a manifest href to its archive path.
func (b *Book) Resolve(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	return path.Clean(path.Join(path.Dir(b.OPFPath), href))
}

// Href returns the manifest href for an archive path.
func (b *Book) Href(archivePath string) string {
	return relative(path.Dir(b.OPFPath), archivePath)
}

// SetFile adds or replaces an archive entry.
func (b *Book) SetFile(name string, data []byte) {
	if _, ok := b.Files[name]; !ok {
		b.Order = append(b.Order, name)
	}
	b.Files[name] = data
}

// RemoveFile drops an archive entry.
func (b *Book) RemoveFile(name string) {
	if _, ok := b.Files[name]; !ok {
		return
	}
	delete(b.Files, name)
	for i, n := range b.Order {
		if n == name {
			b.Order = append(b.Order[:i], b.Order[i+1:]...)
			break
		}
	}
}

// TitleOf returns the first h1, h2 or h3 heading of a document, falling back
// to its <title>. It returns "" when neither has text.
func TitleOf(markup []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return ""
	}
	title := doc.Find("h1, h2, h3").First().Text()
	if strings.TrimSpace(title) == "" {
		title = doc.Find("title").First().Text()
	}
	return strings.Join(strings.Fields(title), " ")
}

// relative returns target relative to the directory dir, both archive paths.
func relative(dir, target string) string {
	if dir == "." || dir == "" {
		return target
	}
	from := strings.Split(dir, "/")
	to := strings.Split(target, "/")
	i := 0
	for i < len(from) && i < len(to)-1 && from[i] == to[i] {
		i++
	}
	var parts []string
	for range from[i:] {
		parts = append(parts, "..")
	}
	parts = append(parts, to[i:]...)
	return strings.Join(parts, "/")
}
