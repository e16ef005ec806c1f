package epub

import (
	"archive/zip"
	"bytes"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/epubtran/internal/epub/epubtest"
)

var sampleDocs = []epubtest.Doc{
	{ID: "c1", Href: "Text/chapter1.xhtml", Title: "One", Body: "<h1>Chapter One</h1><p>It was dark.</p>"},
	{ID: "c2", Href: "Text/chapter2.xhtml", Title: "Two", Body: "<p>No heading here.</p>"},
	{ID: "c3", Href: "Text/chapter%203.xhtml", Title: "", Body: "<p>Spaces in name.</p>"},
}

func readSample(t *testing.T) *Book {
	t.Helper()
	files := []epubtest.File{
		{Name: "META-INF/container.xml", Body: epubtest.Container},
		{Name: "OEBPS/content.opf", Body: epubtest.OPF(sampleDocs)},
		{Name: "OEBPS/toc.ncx", Body: epubtest.StaleNCX(sampleDocs)},
		{Name: "OEBPS/style.css", Body: "p {}"},
		{Name: "OEBPS/Text/chapter1.xhtml", Body: epubtest.XHTML("One", sampleDocs[0].Body)},
		{Name: "OEBPS/Text/chapter2.xhtml", Body: epubtest.XHTML("Two", sampleDocs[1].Body)},
		{Name: "OEBPS/Text/chapter 3.xhtml", Body: epubtest.XHTML("", sampleDocs[2].Body)},
	}
	data := epubtest.Zip(t, files...)
	b, err := Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return b
}

func TestRead(t *testing.T) {
	b := readSample(t)

	assert.Equal(t, "OEBPS/content.opf", b.OPFPath)
	assert.Equal(t, "2.0", b.Package.Version)
	assert.Equal(t, "bookid", b.Package.UniqueID)
	assert.Len(t, b.Package.Manifest.Items, 5)

	require.Len(t, b.Parts, 3)
	assert.Equal(t, "c1", b.Parts[0].ID)
	assert.Equal(t, "OEBPS/Text/chapter1.xhtml", b.Parts[0].Path)
	assert.Equal(t, "Chapter One", b.Parts[0].Title)
	assert.Equal(t, "Two", b.Parts[1].Title)
	assert.Equal(t, "OEBPS/Text/chapter 3.xhtml", b.Parts[2].Path)
	assert.Equal(t, "", b.Parts[2].Title)
}

func TestRead_NotInSpine(t *testing.T) {
	docs := sampleDocs[:2]
	opf := strings.Replace(epubtest.OPF(docs), `<itemref idref="c1"/>`, "", 1)
	data := epubtest.Zip(t,
		epubtest.File{Name: "META-INF/container.xml", Body: epubtest.Container},
		epubtest.File{Name: "OEBPS/content.opf", Body: opf},
		epubtest.File{Name: "OEBPS/Text/chapter1.xhtml", Body: epubtest.XHTML("One", docs[0].Body)},
		epubtest.File{Name: "OEBPS/Text/chapter2.xhtml", Body: epubtest.XHTML("Two", docs[1].Body)},
	)
	b, err := Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	require.Len(t, b.Parts, 2)
	assert.Equal(t, "c2", b.Parts[0].ID, "spine documents come first")
	assert.Equal(t, "c1", b.Parts[1].ID)
}

func TestRead_SkipsNavAndMissingFiles(t *testing.T) {
	opf := strings.Replace(epubtest.OPF(sampleDocs[:1]), "  </manifest>",
		`    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ghost" href="Text/ghost.xhtml" media-type="application/xhtml+xml"/>
  </manifest>`, 1)
	data := epubtest.Zip(t,
		epubtest.File{Name: "META-INF/container.xml", Body: epubtest.Container},
		epubtest.File{Name: "OEBPS/content.opf", Body: opf},
		epubtest.File{Name: "OEBPS/nav.xhtml", Body: epubtest.XHTML("Nav", "<nav/>")},
		epubtest.File{Name: "OEBPS/Text/chapter1.xhtml", Body: epubtest.XHTML("One", "<p>x</p>")},
	)
	b, err := Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, b.Parts, 1)
	assert.Equal(t, "c1", b.Parts[0].ID)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not a zip")), 9)
	assert.Error(t, err)

	noContainer := epubtest.Zip(t, epubtest.File{Name: "OEBPS/content.opf", Body: "<package/>"})
	_, err = Read(bytes.NewReader(noContainer), int64(len(noContainer)))
	assert.ErrorIs(t, err, ErrNoRootfile)

	noOPF := epubtest.Zip(t, epubtest.File{Name: "META-INF/container.xml", Body: epubtest.Container})
	_, err = Read(bytes.NewReader(noOPF), int64(len(noOPF)))
	assert.ErrorIs(t, err, ErrMissingOPF)
}

func TestResolveAndHref(t *testing.T) {
	b := &Book{OPFPath: "OEBPS/content.opf"}
	assert.Equal(t, "OEBPS/Text/a.xhtml", b.Resolve("Text/a.xhtml#frag"))
	assert.Equal(t, "OEBPS/Text/a b.xhtml", b.Resolve("Text/a%20b.xhtml"))
	assert.Equal(t, "images/x.png", b.Resolve("../images/x.png"))
	assert.Equal(t, "Text/a.xhtml", b.Href("OEBPS/Text/a.xhtml"))
	assert.Equal(t, "../Text/a.xhtml", b.Link("OEBPS/nav/nav.xhtml", "OEBPS/Text/a.xhtml"))
	assert.Equal(t, "a.xhtml", b.Link("OEBPS/Text/b.xhtml", "OEBPS/Text/a.xhtml"))

	root := &Book{OPFPath: "content.opf"}
	assert.Equal(t, "a.xhtml", root.Resolve("a.xhtml"))
	assert.Equal(t, "nav/nav.xhtml", root.Href("nav/nav.xhtml"))
}

func TestTitleOf(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{name: "heading wins", markup: epubtest.XHTML("Head", "<h2>  Part\n Two </h2>"), want: "Part Two"},
		{name: "title fallback", markup: epubtest.XHTML("Head Title", "<p>x</p>"), want: "Head Title"},
		{name: "nothing", markup: "<p>x</p>", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TitleOf([]byte(tt.markup)))
		})
	}
}

func TestSetLanguage(t *testing.T) {
	b := readSample(t)
	b.SetLanguage("pt")
	assert.Contains(t, b.Package.Metadata.Inner, "<dc:language>pt</dc:language>")
	assert.NotContains(t, b.Package.Metadata.Inner, "<dc:language>en</dc:language>")

	b.Package.Metadata.Inner = "<dc:title>X</dc:title>"
	b.SetLanguage("es")
	assert.Contains(t, b.Package.Metadata.Inner, "<dc:language>es</dc:language>")
}

func TestEnsureModified(t *testing.T) {
	b := readSample(t)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.EnsureModified(ts)
	b.EnsureModified(ts.Add(time.Hour))
	assert.Equal(t, 1, strings.Count(b.Package.Metadata.Inner, "dcterms:modified"))
	assert.Contains(t, b.Package.Metadata.Inner, "2026-01-02T03:04:05Z")
}

func TestWrite_RoundTrip(t *testing.T) {
	b := readSample(t)
	b.Parts[1].Content = []byte(epubtest.XHTML("Dois", "<p>Sem título.</p>"))
	b.SetLanguage("pt")

	var buf bytes.Buffer
	require.NoError(t, b.Write(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)
	assert.Equal(t, "mimetype", zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)

	again, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, again.Parts, 3)
	assert.Contains(t, string(again.Parts[1].Content), "Sem título.")
	assert.Contains(t, again.Package.Metadata.Inner, "<dc:language>pt</dc:language>")
	assert.Contains(t, again.Package.Metadata.Inner, `opf:scheme="UUID"`)
	assert.Equal(t, b.Package.Manifest.Items, again.Package.Manifest.Items)
	assert.Equal(t, b.Package.Spine, again.Package.Spine)
	assert.Equal(t, "p {}", string(again.Files["OEBPS/style.css"]))
}

func TestMarshalPackage_Namespaces(t *testing.T) {
	b := readSample(t)
	out := string(b.MarshalPackage())
	assert.Contains(t, out, `xmlns="http://www.idpf.org/2007/opf"`)
	assert.Contains(t, out, `xmlns:dc="http://purl.org/dc/elements/1.1/"`)
	assert.Contains(t, out, `xmlns:opf="http://www.idpf.org/2007/opf"`)
	assert.Contains(t, out, `<reference type="toc" title="Contents" href="toc.ncx"/>`)
	assert.Equal(t, 1, strings.Count(out, "xmlns=\""))
}

func TestOpen(t *testing.T) {
	p := epubtest.WriteBook(t, sampleDocs[0])
	b, err := Open(p)
	require.NoError(t, err)
	assert.Len(t, b.Parts, 1)

	_, err = Open(filepath.Join(t.TempDir(), "missing.epub"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestIdentifier(t *testing.T) {
	b := readSample(t)
	assert.Equal(t, "urn:uuid:0b7d6b2e-1f0e-4b8a-9c3f-5a2d1e6f7a80", b.Identifier())

	b.Package.Metadata.Inner = `<dc:identifier>isbn-1</dc:identifier><dc:identifier id="bookid">uid-2</dc:identifier>`
	assert.Equal(t, "uid-2", b.Identifier())

	b.Package.UniqueID = "other"
	assert.Equal(t, "isbn-1", b.Identifier())
}
