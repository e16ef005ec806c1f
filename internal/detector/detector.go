// Package detector guesses the language of a piece of text.
package detector

import (
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	lingua "github.com/pemistahl/lingua-go"
)

// LanguageDetector returns the lower-case ISO 639-1 code of text, or false
// when the language cannot be told.
type LanguageDetector interface {
	DetectISO(text string) (string, bool)
}

// Detector is backed by lingua. It is expensive to build; reuse it.
type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Detector{detector: detector}
}

// NewFor restricts detection to the given languages, which is faster and
// more accurate when the candidates are known.
func NewFor(langs ...lingua.Language) *Detector {
	if len(langs) < 2 {
		return New()
	}
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		Build()

	return &Detector{detector: detector}
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if strings.TrimSpace(text) == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang.IsoCode639_1().String()), true
}

// Whatlang is a lighter trigram detector.
type Whatlang struct{}

func NewWhatlang() Whatlang {
	return Whatlang{}
}

func (Whatlang) DetectISO(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	info := whatlanggo.Detect(text)
	if info.Script == nil || info.Lang < 0 {
		return "", false
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "", false
	}
	return code, true
}

// NewBackend builds a detector by name: "lingua" (default) or "whatlang".
func NewBackend(name string) (LanguageDetector, error) {
	switch strings.ToLower(name) {
	case "", "lingua":
		return New(), nil
	case "whatlang", "whatlanggo":
		return NewWhatlang(), nil
	default:
		return nil, fmt.Errorf("unknown language detector %q", name)
	}
}
