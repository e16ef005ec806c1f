package translator

import (
	"context"
	"fmt"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

type googleAPI interface {
	Translate(ctx context.Context, inputs []string, target language.Tag, opts *translate.Options) ([]translate.Translation, error)
	Close() error
}

// GoogleService talks to Cloud Translation v2 through one long-lived client.
type GoogleService struct {
	client googleAPI
}

func NewGoogleService(ctx context.Context, cfg ServiceConfig) (*GoogleService, error) {
	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	if cfg.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(cfg.ProjectID))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &GoogleService{client: client}, nil
}

func (s *GoogleService) Name() string {
	return string(KindGoogle)
}

func (s *GoogleService) Translate(ctx context.Context, texts []string, d Directives) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	target, err := language.Parse(d.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("invalid target language: %w", err)
	}
	opts := &translate.Options{Format: translate.Text}
	if d.SourceLang != "" && d.SourceLang != "auto" {
		source, err := language.Parse(d.SourceLang)
		if err != nil {
			return nil, fmt.Errorf("invalid source language: %w", err)
		}
		opts.Source = source
	}

	translations, err := s.client.Translate(ctx, texts, target, opts)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	out := make([]string, len(translations))
	for i, t := range translations {
		out[i] = t.Text
	}
	if err := checkLength(s.Name(), texts, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GoogleService) Close() error {
	return s.client.Close()
}
