/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/valpere/epubtran/internal/batch"
	"github.com/valpere/epubtran/internal/cache"
	"github.com/valpere/epubtran/internal/config"
	"github.com/valpere/epubtran/internal/detector"
	"github.com/valpere/epubtran/internal/orchestrator"
	"github.com/valpere/epubtran/internal/pipeline"
	"github.com/valpere/epubtran/internal/quality"
	"github.com/valpere/epubtran/internal/segment"
	"github.com/valpere/epubtran/internal/store"
	"github.com/valpere/epubtran/internal/translator"
	"github.com/valpere/epubtran/internal/validator"
)

// session holds everything a translation command needs and releases it on
// Close.
type session struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	closers  []func() error
}

func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// newSession builds the translation backend, cache, quality inspector and
// pipeline from the loaded configuration.
func newSession(ctx context.Context, cfg *config.Config) (_ *session, err error) {
	s := &session{cfg: cfg}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	client, err := translator.New(ctx, cfg.Kind(), cfg.Service())
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Backend, err)
	}
	if c, ok := client.(io.Closer); ok {
		s.closers = append(s.closers, c.Close)
	}
	client = translator.NewRateLimited(client, cfg.Rate.RPS, cfg.Rate.Burst)

	opts := []pipeline.Option{pipeline.WithLogger(logger)}

	var segCache cache.Cache = cache.NewMemory()
	var glossary map[string]string
	if cfg.Cache.Backend == "sqlite" {
		db, err := openStore(cfg.Cache.DB)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		segCache = db.Segments(cfg.SourceLang, cfg.TargetLang, client.Name())
		opts = append(opts, pipeline.WithJobRecorder(db))

		glossary, err = db.GetGlossaryTerms(ctx, cfg.SourceLang, cfg.TargetLang)
		if err != nil {
			return nil, fmt.Errorf("failed to load glossary: %w", err)
		}
		if len(glossary) > 0 {
			logger.WithField("terms", len(glossary)).Info("glossary loaded")
		}
	}

	// Language models are large; load them only when something reads them.
	var det detector.LanguageDetector
	if cfg.SourceLang == "auto" || cfg.Quality.Enabled {
		if det, err = newDetector(cfg.Quality.Detector); err != nil {
			return nil, err
		}
	}
	if cfg.SourceLang == "auto" && det != nil {
		opts = append(opts, pipeline.WithSourceDetector(det))
	}

	if cfg.Quality.Enabled {
		in, sink, closeReport, err := newInspector(cfg, det)
		if err != nil {
			return nil, err
		}
		if closeReport != nil {
			s.closers = append(s.closers, closeReport)
		}
		opts = append(opts, pipeline.WithInspector(in, sink))
	}

	s.pipeline = pipeline.New(client, segCache, segment.NewDefault(), pipeline.Config{
		SourceLang:    cfg.SourceLang,
		TargetLang:    cfg.TargetLang,
		Limits:        batch.Limits{MaxTokens: cfg.Batch.MaxTokens, MaxItems: cfg.Batch.MaxItems},
		BytesPerToken: cfg.Batch.BytesPerToken,
		Dispatch:      orchestrator.Config{Concurrency: cfg.Batch.Concurrency, Timeout: cfg.Batch.Timeout},
		Decoding:      cfg.Decode,
		Glossary:      glossary,
		Clean:         cfg.Kind().LLM(),
		Title:         cfg.Title,
	}, opts...)
	return s, nil
}

func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newDetector returns nil when detection is turned off.
func newDetector(name string) (detector.LanguageDetector, error) {
	if strings.EqualFold(name, "none") {
		return nil, nil
	}
	return detector.NewBackend(name)
}

func newInspector(cfg *config.Config, det detector.LanguageDetector) (*quality.Inspector, quality.Sink, func() error, error) {
	opts := quality.Options{
		Thresholds: cfg.Quality.Thresholds,
		Markers:    cfg.Quality.Markers,
		TargetLang: cfg.TargetLang,
	}
	if det != nil {
		// Every paragraph is checked, however short.
		opts.Languages = validator.New(det, 0)
	}

	switch cfg.Quality.EmbedBackend {
	case "http":
		opts.Embedder = quality.NewHTTPEmbedder(cfg.Quality.EmbedURL, cfg.Batch.Timeout)
	case "openai":
		opts.Embedder = quality.NewOpenAIEmbedder(cfg.OpenAI.Key, cfg.OpenAI.BaseURL, cfg.Quality.EmbedModel)
	}
	if cfg.Quality.ScoreURL != "" {
		opts.Scorer = quality.NewHTTPScorer(cfg.Quality.ScoreURL, cfg.SourceLang, cfg.TargetLang, cfg.Batch.Timeout)
	}

	in := quality.New(opts, logger)
	caps := in.Capabilities()
	logger.WithFields(logrus.Fields{
		"semantic": caps.Semantic,
		"logprob":  caps.LogProb,
		"language": caps.Language,
	}).Debug("quality inspector ready")

	if cfg.Quality.Report == "" {
		return in, nil, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Quality.Report), 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(cfg.Quality.Report)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create quality report: %w", err)
	}
	report := quality.NewCSVReport(f)
	closeReport := func() error {
		return errors.Join(report.Flush(), f.Close())
	}
	return in, report, closeReport, nil
}
