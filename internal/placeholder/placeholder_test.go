package placeholder_test

import (
	"reflect"
	"testing"

	"github.com/valpere/epubtran/internal/placeholder"
)

func TestProtect(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		want      string
		originals []string
	}{
		{
			name: "plain prose",
			text: "Hello, world!",
			want: "Hello, world!",
		},
		{
			name:      "inline code",
			text:      "Use `fmt.Println` to print.",
			want:      "Use [PH0] to print.",
			originals: []string{"`fmt.Println`"},
		},
		{
			name:      "url keeps trailing period outside",
			text:      "See https://example.com/a?b=1.",
			want:      "See [PH0].",
			originals: []string{"https://example.com/a?b=1"},
		},
		{
			name:      "email",
			text:      "Write to jo.doe+books@mail.example.org today.",
			want:      "Write to [PH0] today.",
			originals: []string{"jo.doe+books@mail.example.org"},
		},
		{
			name:      "numbered in order of appearance",
			text:      "Open <b>`ls`</b> at http://x.io",
			want:      "Open [PH0][PH1][PH2] at [PH3]",
			originals: []string{"<b>", "`ls`", "</b>", "http://x.io"},
		},
		{
			name: "comparison is not a tag",
			text: "If a < b and c > d.",
			want: "If a < b and c > d.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, originals := placeholder.Protect(tt.text)
			if got != tt.want {
				t.Errorf("Protect() = %q, want %q", got, tt.want)
			}
			if !reflect.DeepEqual(originals, tt.originals) {
				t.Errorf("originals = %q, want %q", originals, tt.originals)
			}
			if back := placeholder.Restore(got, originals); back != tt.text {
				t.Errorf("Restore() = %q, want %q", back, tt.text)
			}
		})
	}
}

func TestRestore_Translated(t *testing.T) {
	_, originals := placeholder.Protect("Run `make` now.")
	got := placeholder.Restore("Execute [PH0] agora.", originals)
	if got != "Execute `make` agora." {
		t.Errorf("got %q", got)
	}
}

func TestRestore_UnknownIndexKept(t *testing.T) {
	got := placeholder.Restore("[PH99] some text", []string{"<p>"})
	if got != "[PH99] some text" {
		t.Errorf("got %q", got)
	}
}

func TestMissing(t *testing.T) {
	originals := []string{"<p>", "</p>", "<b>"}
	if m := placeholder.Missing("[PH0] some [PH1] [PH2]", originals); len(m) != 0 {
		t.Errorf("expected none missing, got %v", m)
	}
	if m := placeholder.Missing("[PH0] some text", originals); !reflect.DeepEqual(m, []int{1, 2}) {
		t.Errorf("expected [1 2], got %v", m)
	}
}
