// Package validator checks that a translation result is in the expected target language.
package validator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/valpere/epubtran/internal/detector"
)

// DefaultMinLength is the rune count below which detection is skipped.
// Shorter texts produce unreliable results and are accepted without validation.
const DefaultMinLength = 20

// Validator checks that a translation result is written in the expected target language.
type Validator struct {
	det       detector.LanguageDetector
	minLength int
}

// New wraps det. Texts shorter than minLength runes are not checked; a
// negative minLength selects DefaultMinLength.
func New(det detector.LanguageDetector, minLength int) *Validator {
	if minLength < 0 {
		minLength = DefaultMinLength
	}
	return &Validator{det: det, minLength: minLength}
}

// Check detects the language of text and reports whether its base language
// differs from targetLang's. detected is empty when nothing was detected, in
// which case mismatch is false.
func (v *Validator) Check(text, targetLang string) (detected string, mismatch bool) {
	text = strings.TrimSpace(text)
	if text == "" || targetLang == "" || len([]rune(text)) < v.minLength {
		return "", false
	}
	detected, ok := v.det.DetectISO(text)
	if !ok {
		return "", false
	}
	return detected, !SameFamily(detected, targetLang)
}

// IsValid returns true when translatedText appears to be written in targetLang.
//
// Short texts and texts whose language cannot be determined pass without
// error. When the detected language differs from targetLang the returned
// error names both codes.
func (v *Validator) IsValid(translatedText, targetLang string) (bool, error) {
	if targetLang == "" {
		return true, nil
	}
	if strings.TrimSpace(translatedText) == "" {
		return false, fmt.Errorf("translation is empty")
	}

	detected, mismatch := v.Check(translatedText, targetLang)
	if mismatch {
		return false, fmt.Errorf("expected %s but detected %s", targetLang, detected)
	}
	return true, nil
}

// SameFamily reports whether two language codes share a base language, so
// "pt-BR" and "pt" match. Unparseable codes fall back to a case-insensitive
// comparison.
func SameFamily(a, b string) bool {
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}
