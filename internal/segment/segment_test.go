package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules_Segment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: []string{}},
		{name: "whitespace only", text: " \n\t ", want: []string{}},
		{name: "single sentence", text: "Hello world.", want: []string{"Hello world."}},
		{name: "no terminal mark", text: "Hello world", want: []string{"Hello world"}},
		{
			name: "three sentences",
			text: "Hello world. How are you? Fine!",
			want: []string{"Hello world.", "How are you?", "Fine!"},
		},
		{
			name: "abbreviation",
			text: "Mr. Smith went home. He slept.",
			want: []string{"Mr. Smith went home.", "He slept."},
		},
		{
			name: "initials",
			text: "J. R. R. Tolkien wrote books. They sold.",
			want: []string{"J. R. R. Tolkien wrote books.", "They sold."},
		},
		{
			name: "initialism",
			text: "He moved to the U.S.A. last year.",
			want: []string{"He moved to the U.S.A. last year."},
		},
		{
			name: "decimal number",
			text: "It costs 3.14 euros. Cheap.",
			want: []string{"It costs 3.14 euros.", "Cheap."},
		},
		{
			name: "closing quote stays",
			text: `She said "Come now!" Then she left.`,
			want: []string{`She said "Come now!"`, "Then she left."},
		},
		{
			name: "lowercase continuation",
			text: "Wait... what? Yes.",
			want: []string{"Wait... what?", "Yes."},
		},
		{
			name: "portuguese",
			text: "A Sra. Silva chegou. Depois saiu — sem dizer nada.",
			want: []string{"A Sra. Silva chegou.", "Depois saiu — sem dizer nada."},
		},
		{
			name: "paragraph break",
			text: "First paragraph\n\nSecond paragraph",
			want: []string{"First paragraph", "Second paragraph"},
		},
		{
			name: "surrounding whitespace trimmed",
			text: "  One.   Two.  ",
			want: []string{"One.", "Two."},
		},
	}

	r := NewRules()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Segment(tt.text, "en"))
		})
	}
}

func TestRules_NoTextLost(t *testing.T) {
	text := "Dr. No arrived. \"Why?\" asked Bond! It was 9.30 p.m. Nobody knew… Then silence."
	got := NewRules().Segment(text, "en")
	require.NotEmpty(t, got)
	assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(got, " "))
}

func TestPunkt_Segment(t *testing.T) {
	p, err := NewPunkt()
	require.NoError(t, err)

	got := p.Segment("Hello there. How are you today? I am fine.", "en")
	assert.Equal(t, []string{"Hello there.", "How are you today?", "I am fine."}, got)

	got = p.Segment("Mr. Smith went to Washington. He arrived on Monday.", "en")
	assert.Equal(t, []string{"Mr. Smith went to Washington.", "He arrived on Monday."}, got)

	assert.Empty(t, p.Segment("   ", "en"))
}

func TestByLanguage(t *testing.T) {
	english := Func(func(text, _ string) []string { return []string{"en:" + text} })
	fallback := Func(func(text, _ string) []string { return []string{"default:" + text} })

	s := &ByLanguage{Languages: map[string]Segmenter{"en": english}, Default: fallback}

	assert.Equal(t, []string{"en:x"}, s.Segment("x", "en"))
	assert.Equal(t, []string{"en:x"}, s.Segment("x", "en-GB"))
	assert.Equal(t, []string{"default:x"}, s.Segment("x", "pt"))

	bare := &ByLanguage{}
	assert.Equal(t, []string{"whole text"}, bare.Segment(" whole text ", "pt"))
}

func TestNewDefault(t *testing.T) {
	s := NewDefault()
	require.NotNil(t, s.Default)
	assert.Equal(t, []string{"Um.", "Dois."}, s.Segment("Um. Dois.", "pt"))
	assert.Equal(t, []string{"It rained.", "We stayed in."}, s.Segment("It rained. We stayed in.", "en"))
}
