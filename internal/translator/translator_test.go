package translator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	translate "cloud.google.com/go/translate"
	"github.com/bounoable/deepl"
	"golang.org/x/text/language"
)

func TestParseKind(t *testing.T) {
	for _, s := range []string{"google", "DeepL", " openai ", "ollama", "mymemory"} {
		if _, err := ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q): unexpected error %v", s, err)
		}
	}
	if _, err := ParseKind("babelfish"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if !KindOllama.LLM() || KindGoogle.LLM() {
		t.Error("LLM() misclassifies backends")
	}
}

type fakeGoogle struct {
	target language.Tag
	opts   *translate.Options
	drop   bool
}

func (f *fakeGoogle) Translate(_ context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error) {
	f.target, f.opts = target, opts
	var out []translate.Translation
	for _, in := range inputs {
		out = append(out, translate.Translation{Text: "pt:" + in})
	}
	if f.drop {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeGoogle) Close() error { return nil }

func TestGoogleService_Translate(t *testing.T) {
	fake := &fakeGoogle{}
	svc := &GoogleService{client: fake}

	out, err := svc.Translate(context.Background(), []string{"a", "b"}, ptDirectives)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(out, ",") != "pt:a,pt:b" {
		t.Errorf("unexpected output %q", out)
	}
	if fake.target != language.Portuguese {
		t.Errorf("expected pt target, got %v", fake.target)
	}
	if fake.opts.Format != translate.Text || fake.opts.Source != language.English {
		t.Errorf("unexpected options %+v", fake.opts)
	}

	fake.drop = true
	if _, err := svc.Translate(context.Background(), []string{"a", "b"}, ptDirectives); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestGoogleService_InvalidLanguage(t *testing.T) {
	svc := &GoogleService{client: &fakeGoogle{}}
	if _, err := svc.Translate(context.Background(), []string{"a"}, Directives{TargetLang: "not a tag!"}); err == nil {
		t.Error("expected error for invalid target")
	}
}

type fakeDeepL struct {
	calls  int
	target deepl.Language
	failAt int
}

func (f *fakeDeepL) Translate(_ context.Context, text string, target deepl.Language, _ ...deepl.TranslateOption) (string, deepl.Language, error) {
	f.calls++
	f.target = target
	if f.failAt == f.calls {
		return "", "", errors.New("quota")
	}
	return strings.ToUpper(text), deepl.Language("EN"), nil
}

func TestDeepLService_Translate(t *testing.T) {
	fake := &fakeDeepL{}
	svc := NewDeepLServiceWithClient(fake)

	out, err := svc.Translate(context.Background(), []string{"um", "dois"}, Directives{SourceLang: "en", TargetLang: "pt-br"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(out, ",") != "UM,DOIS" {
		t.Errorf("unexpected output %q", out)
	}
	if fake.calls != 2 || fake.target != "PT-BR" {
		t.Errorf("expected 2 calls to PT-BR, got %d to %q", fake.calls, fake.target)
	}

	fake = &fakeDeepL{failAt: 2}
	svc = NewDeepLServiceWithClient(fake)
	if _, err := svc.Translate(context.Background(), []string{"um", "dois"}, ptDirectives); err == nil {
		t.Error("expected error from failing client")
	}
}

func TestNewDeepLService_RequiresKey(t *testing.T) {
	if _, err := NewDeepLService(ServiceConfig{}); err == nil {
		t.Error("expected error without api key")
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	d := Directives{SourceLang: "en", TargetLang: "pt-BR", Glossary: map[string]string{"wand": "varinha", "Hogwarts": "Hogwarts"}}
	p := buildSystemPrompt(d)

	if !strings.Contains(p, "from English to Brazilian Portuguese") {
		t.Errorf("expected language names in prompt, got %q", p)
	}
	if !strings.Contains(p, "TERMINOLOGY") {
		t.Error("expected glossary section")
	}
	if !strings.Contains(p, "[PHn]") {
		t.Error("expected placeholder instructions")
	}
	if strings.Index(p, "Hogwarts →") > strings.Index(p, "wand →") {
		t.Error("expected glossary terms sorted")
	}
	if strings.Contains(buildSystemPrompt(ptDirectives), "TERMINOLOGY") {
		t.Error("unexpected glossary section without glossary")
	}
}

func TestParseBatch(t *testing.T) {
	texts := []string{"a", "b"}
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "object", raw: `{"translations": ["x", "y"]}`, want: []string{"x", "y"}},
		{name: "array", raw: `Here you go: [" x ", "y"]`, want: []string{"x", "y"}},
		{name: "fenced", raw: "```json\n{\"translations\": [\"x\", \"y\"]}\n```", want: []string{"x", "y"}},
		{name: "missing field", raw: `{"output": ["x", "y"]}`, wantErr: true},
		{name: "not json", raw: `x y`, wantErr: true},
		{name: "short", raw: `{"translations": ["x"]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBatch("test", tt.raw, texts)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type countingClient struct{ calls int }

func (c *countingClient) Name() string { return "counting" }

func (c *countingClient) Translate(_ context.Context, texts []string, _ Directives) ([]string, error) {
	c.calls++
	return texts, nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingClient{}
	if NewRateLimited(inner, 0, 0) != Client(inner) {
		t.Error("expected unwrapped client for rps 0")
	}

	limited := NewRateLimited(inner, 1, 1)
	if limited.Name() != "counting" {
		t.Errorf("expected inner name, got %q", limited.Name())
	}
	if _, err := limited.Translate(context.Background(), []string{"a"}, ptDirectives); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := limited.Translate(ctx, []string{"a"}, ptDirectives); err == nil {
		t.Error("expected second call to be refused before the deadline")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call through, got %d", inner.calls)
	}
}

func TestNew(t *testing.T) {
	c, err := New(context.Background(), KindOllama, ServiceConfig{})
	if err != nil || c.Name() != "ollama" {
		t.Errorf("expected ollama client, got %v, %v", c, err)
	}
	if _, err := New(context.Background(), Kind("nope"), ServiceConfig{}); err == nil {
		t.Error("expected error for unknown kind")
	}
}
