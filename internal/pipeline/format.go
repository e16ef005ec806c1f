package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported input format")

type Format int

const (
	FormatUnknown Format = iota
	FormatEPUB
	FormatText
)

// FormatOf classifies a path by its extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return FormatEPUB
	case ".txt", ".text", ".md":
		return FormatText
	}
	return FormatUnknown
}

// OutputPath names the translation of src: book.epub becomes book.pt.epub.
func OutputPath(dir, src, targetLang string) string {
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+"."+targetLang+ext)
}

// RunFile runs the EPUB or plain-text pipeline depending on src.
func (p *Pipeline) RunFile(ctx context.Context, src, dst string) (*Report, error) {
	switch FormatOf(src) {
	case FormatEPUB:
		return p.Run(ctx, src, dst)
	case FormatText:
		return p.RunText(ctx, src, dst)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(src))
}
