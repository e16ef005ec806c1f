package epub

import (
	"encoding/xml"
	"strings"
)

const (
	MediaTypeXHTML = "application/xhtml+xml"
	MediaTypeHTML  = "text/html"
	MediaTypeNCX   = "application/x-dtbncx+xml"

	containerPath = "META-INF/container.xml"
	mimetypeName  = "mimetype"
	mimetype      = "application/epub+zip"

	opfNamespace = "http://www.idpf.org/2007/opf"
	xmlNamespace = "http://www.w3.org/XML/1998/namespace"
)

type Container struct {
	XMLName   xml.Name `xml:"container"`
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// Package is the OPF package document. Metadata is kept as raw markup so
// that publisher-specific entries survive a round trip.
type Package struct {
	XMLName  xml.Name   `xml:"package"`
	Version  string     `xml:"version,attr"`
	UniqueID string     `xml:"unique-identifier,attr"`
	Attrs    []xml.Attr `xml:",any,attr"`
	Metadata Metadata   `xml:"metadata"`
	Manifest Manifest   `xml:"manifest"`
	Spine    Spine      `xml:"spine"`
	Guide    *Guide     `xml:"guide"`
}

type Metadata struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Inner string     `xml:",innerxml"`
}

type Manifest struct {
	Items []Item `xml:"item"`
}

type Item struct {
	ID           string `xml:"id,attr"`
	Href         string `xml:"href,attr"`
	MediaType    string `xml:"media-type,attr"`
	Properties   string `xml:"properties,attr,omitempty"`
	Fallback     string `xml:"fallback,attr,omitempty"`
	MediaOverlay string `xml:"media-overlay,attr,omitempty"`
}

type Spine struct {
	TOC                      string    `xml:"toc,attr,omitempty"`
	PageProgressionDirection string    `xml:"page-progression-direction,attr,omitempty"`
	ItemRefs                 []ItemRef `xml:"itemref"`
}

type ItemRef struct {
	IDRef      string `xml:"idref,attr"`
	Linear     string `xml:"linear,attr,omitempty"`
	Properties string `xml:"properties,attr,omitempty"`
}

type Guide struct {
	References []Reference `xml:"reference"`
}

type Reference struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr,omitempty"`
	Href  string `xml:"href,attr"`
}

// HasProperty reports whether the space-separated properties attribute
// contains p.
func (i Item) HasProperty(p string) bool {
	for _, f := range strings.Fields(i.Properties) {
		if f == p {
			return true
		}
	}
	return false
}

// IsDocument reports whether the item is an XHTML or HTML content document.
func (i Item) IsDocument() bool {
	switch i.MediaType {
	case MediaTypeXHTML, MediaTypeHTML:
		return true
	}
	return false
}

// Item returns the manifest item with the given id.
func (p *Package) Item(id string) (Item, bool) {
	for _, it := range p.Manifest.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
