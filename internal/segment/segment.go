// Package segment splits visible text into ordered sentences.
//
// Two segmenters are provided: Punkt, a trained English model from
// github.com/neurosnap/sentences, and Rules, a punctuation splitter that
// works for any Latin-script language. ByLanguage picks one per language.
package segment

import (
	"strings"

	"golang.org/x/text/language"
)

// Segmenter splits a text span into ordered, non-empty, trimmed sentences.
type Segmenter interface {
	Segment(text, lang string) []string
}

// Func adapts a plain function to the Segmenter interface.
type Func func(text, lang string) []string

func (f Func) Segment(text, lang string) []string { return f(text, lang) }

// ByLanguage dispatches on the base language of lang, falling back to
// Default for languages without a dedicated segmenter.
type ByLanguage struct {
	Languages map[string]Segmenter
	Default   Segmenter
}

// NewDefault returns the segmenter used by the pipeline: Punkt for English
// and Rules for everything else. If the Punkt model cannot be loaded,
// English falls back to Rules too.
func NewDefault() *ByLanguage {
	rules := NewRules()
	s := &ByLanguage{Languages: map[string]Segmenter{}, Default: rules}
	if p, err := NewPunkt(); err == nil {
		s.Languages["en"] = p
	}
	return s
}

func (b *ByLanguage) Segment(text, lang string) []string {
	if seg, ok := b.Languages[baseOf(lang)]; ok {
		return seg.Segment(text, lang)
	}
	if b.Default == nil {
		return clean([]string{text})
	}
	return b.Default.Segment(text, lang)
}

func baseOf(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	base, _ := tag.Base()
	return base.String()
}

// clean trims every piece and drops empty ones.
func clean(pieces []string) []string {
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
