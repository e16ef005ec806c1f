package validator

import (
	"testing"

	"github.com/valpere/epubtran/internal/detector"
)

// The lingua detector is expensive to build; share one across tests.
var lingua = detector.New()

func newValidator() *Validator {
	return New(lingua, DefaultMinLength)
}

func TestIsValid_EmptyTargetLang(t *testing.T) {
	v := newValidator()

	valid, err := v.IsValid("Some translated text", "")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true for empty targetLang")
	}
}

func TestIsValid_EmptyTranslation(t *testing.T) {
	v := newValidator()

	valid, err := v.IsValid("", "en")
	if err == nil {
		t.Error("expected error for empty translation")
	}
	if valid {
		t.Error("expected valid=false for empty translation")
	}
}

func TestIsValid_WhitespaceOnlyTranslation(t *testing.T) {
	v := newValidator()

	valid, err := v.IsValid("   ", "en")
	if err == nil {
		t.Error("expected error for whitespace-only translation")
	}
	if valid {
		t.Error("expected valid=false for whitespace-only translation")
	}
}

func TestIsValid_ShortText(t *testing.T) {
	v := newValidator()

	shortText := "Hi" // Less than minValidationLength (20 chars)
	valid, err := v.IsValid(shortText, "en")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true for short text (below threshold)")
	}
}

func TestIsValid_EnglishToEnglish(t *testing.T) {
	v := newValidator()

	text := "This is a longer piece of text that should be detected as English."
	valid, err := v.IsValid(text, "en")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true when detecting English as English")
	}
}

func TestIsValid_MismatchedLanguage(t *testing.T) {
	v := newValidator()

	englishText := "This is a longer piece of text that should be detected as English."
	valid, err := v.IsValid(englishText, "uk")
	if err == nil {
		t.Error("expected error for mismatched language")
	}
	if valid {
		t.Error("expected valid=false when detecting English but expecting Ukrainian")
	}
}

func TestIsValid_UkrainianText(t *testing.T) {
	v := newValidator()

	ukrainianText := "Це є тестовий текст українською мовою для перевірки роботи валідатора."
	valid, err := v.IsValid(ukrainianText, "uk")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true when detecting Ukrainian as Ukrainian")
	}
}

func TestIsValid_CaseInsensitiveTargetLang(t *testing.T) {
	v := newValidator()

	text := "This is a longer piece of text that should be detected as English."
	valid, err := v.IsValid(text, "EN") // uppercase
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true for case-insensitive targetLang")
	}
}

func TestIsValid_RegionalTarget(t *testing.T) {
	v := newValidator()

	text := "Era uma vez um gato que vivia numa casa muito antiga perto do rio."
	valid, err := v.IsValid(text, "pt-BR")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected pt-BR target to accept Portuguese text")
	}
}

type fixedDetector struct {
	code string
	ok   bool
}

func (f fixedDetector) DetectISO(string) (string, bool) { return f.code, f.ok }

func TestCheck(t *testing.T) {
	tests := []struct {
		name         string
		det          fixedDetector
		minLength    int
		text         string
		target       string
		wantDetected string
		wantMismatch bool
	}{
		{name: "match", det: fixedDetector{"pt", true}, text: "Olá", target: "pt", wantDetected: "pt"},
		{name: "mismatch", det: fixedDetector{"en", true}, text: "Hello", target: "pt", wantDetected: "en", wantMismatch: true},
		{name: "regional", det: fixedDetector{"pt", true}, text: "Olá", target: "pt-PT", wantDetected: "pt"},
		{name: "undetected", det: fixedDetector{"", false}, text: "Olá", target: "pt"},
		{name: "too short", det: fixedDetector{"en", true}, minLength: 10, text: "Hello", target: "pt"},
		{name: "no target", det: fixedDetector{"en", true}, text: "Hello", target: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(tt.det, tt.minLength)
			detected, mismatch := v.Check(tt.text, tt.target)
			if detected != tt.wantDetected || mismatch != tt.wantMismatch {
				t.Errorf("Check = (%q, %v), want (%q, %v)", detected, mismatch, tt.wantDetected, tt.wantMismatch)
			}
		})
	}
}

func TestSameFamily(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"pt", "pt-BR", true},
		{"EN", "en-gb", true},
		{"pt", "es", false},
		{"zz-not-a-tag!", "ZZ-NOT-A-TAG!", true},
	}
	for _, tt := range tests {
		if got := SameFamily(tt.a, tt.b); got != tt.want {
			t.Errorf("SameFamily(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
