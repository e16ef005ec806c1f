package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bounoable/deepl"
)

const deeplFreeURL = "https://api-free.deepl.com/v2"

// DeepLAPI is the subset of *deepl.Client the service uses.
type DeepLAPI interface {
	Translate(
		ctx context.Context,
		text string,
		targetLang deepl.Language,
		opts ...deepl.TranslateOption,
	) (string, deepl.Language, error)
}

// DeepLService translates sentence by sentence. The client call is single
// text, so a batch costs one request per item.
type DeepLService struct {
	client DeepLAPI
}

func NewDeepLService(cfg ServiceConfig) (*DeepLService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("deepl: api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := deepl.New(cfg.APIKey)
	opts := []deepl.ClientOption{deepl.HTTPClient(&http.Client{Timeout: timeout})}
	switch {
	case cfg.BaseURL != "":
		opts = append(opts, deepl.BaseURL(cfg.BaseURL))
	case strings.HasSuffix(cfg.APIKey, ":fx"):
		opts = append(opts, deepl.BaseURL(deeplFreeURL))
	}
	for _, opt := range opts {
		opt(client)
	}
	return NewDeepLServiceWithClient(client), nil
}

func NewDeepLServiceWithClient(client DeepLAPI) *DeepLService {
	return &DeepLService{client: client}
}

func (s *DeepLService) Name() string {
	return string(KindDeepL)
}

func (s *DeepLService) Translate(ctx context.Context, texts []string, d Directives) ([]string, error) {
	opts := []deepl.TranslateOption{
		deepl.PreserveFormatting(true),
		deepl.SplitSentences(deepl.SplitNoNewlines),
	}
	if d.SourceLang != "" && d.SourceLang != "auto" {
		opts = append(opts, deepl.SourceLang(deeplLanguage(d.SourceLang)))
	}
	target := deeplLanguage(d.TargetLang)

	out := make([]string, 0, len(texts))
	for _, text := range texts {
		translated, _, err := s.client.Translate(ctx, text, target, opts...)
		if err != nil {
			return nil, fmt.Errorf("deepl translate: %w", err)
		}
		out = append(out, translated)
	}
	return out, nil
}

// deeplLanguage maps "pt-br" or "pt_BR" to DeepL's "PT-BR".
func deeplLanguage(code string) deepl.Language {
	return deepl.Language(strings.ToUpper(strings.ReplaceAll(code, "_", "-")))
}
