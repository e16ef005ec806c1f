package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLengthMismatch is returned when a backend answers a batch with a
// different number of outputs than inputs.
var ErrLengthMismatch = errors.New("translator: output count does not match input count")

// Kind names a translation backend.
type Kind string

const (
	KindGoogle   Kind = "google"
	KindDeepL    Kind = "deepl"
	KindOpenAI   Kind = "openai"
	KindOllama   Kind = "ollama"
	KindMyMemory Kind = "mymemory"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindGoogle, KindDeepL, KindOpenAI, KindOllama, KindMyMemory}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown translator %q", s)
}

// LLM reports whether the backend generates free text that needs cleaning
// before it can be trusted.
func (k Kind) LLM() bool {
	return k == KindOpenAI || k == KindOllama
}

type ServiceConfig struct {
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	APIKey      string        `mapstructure:"api_key" json:"api_key"`
	Model       string        `mapstructure:"model" json:"model"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	ProjectID   string        `mapstructure:"project_id" json:"project_id"`
	Email       string        `mapstructure:"email" json:"email"`
}

// Decoding carries generation settings. Backends apply the ones they have a
// knob for and ignore the rest.
type Decoding struct {
	MaxNewTokens      int     `mapstructure:"max_new_tokens" json:"max_new_tokens"`
	NumBeams          int     `mapstructure:"num_beams" json:"num_beams"`
	LengthPenalty     float64 `mapstructure:"length_penalty" json:"length_penalty"`
	RepetitionPenalty float64 `mapstructure:"repetition_penalty" json:"repetition_penalty"`
}

// Directives travel with every batch.
type Directives struct {
	SourceLang string
	TargetLang string
	Decoding   Decoding
	// Glossary maps source terms to the exact target rendering.
	Glossary map[string]string
}

// Client translates a batch of sentences. The output has the same length as
// the input and keeps its order.
type Client interface {
	Name() string
	Translate(ctx context.Context, texts []string, d Directives) ([]string, error)
}

func checkLength(name string, in []string, out []string) error {
	if len(in) != len(out) {
		return fmt.Errorf("%s: %w: sent %d, got %d", name, ErrLengthMismatch, len(in), len(out))
	}
	return nil
}
