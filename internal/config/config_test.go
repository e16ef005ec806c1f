package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/epubtran/internal/translator"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.SourceLang)
	assert.Equal(t, "pt", cfg.TargetLang)
	assert.Equal(t, translator.KindGoogle, cfg.Kind())
	assert.Equal(t, BatchConfig{MaxTokens: 360, MaxItems: 32, BytesPerToken: 4, Concurrency: 1, Timeout: 120 * time.Second}, cfg.Batch)
	assert.Equal(t, translator.Decoding{MaxNewTokens: 220, NumBeams: 3, LengthPenalty: 1.05, RepetitionPenalty: 1.04}, cfg.Decode)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.InDelta(t, 0.6, cfg.Quality.MinLengthRatio, 1e-9)
	assert.InDelta(t, 1.6, cfg.Quality.MaxLengthRatio, 1e-9)
	assert.Equal(t, 2, cfg.Quality.MaxUntranslatedHits)
	assert.NotEmpty(t, cfg.Quality.Markers)
	assert.Equal(t, "@every 1m", cfg.Watch.Schedule)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("EPUBTRAN_TARGET_LANG", "uk")
	t.Setenv("EPUBTRAN_BACKEND", "deepl")
	t.Setenv("EPUBTRAN_BATCH_MAX_TOKENS", "120")
	t.Setenv("EPUBTRAN_BATCH_TIMEOUT", "5s")
	t.Setenv("EPUBTRAN_DEEPL_KEY", "k:fx")
	t.Setenv("EPUBTRAN_QUALITY_MIN_SEMANTIC_SIM", "0.7")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "uk", cfg.TargetLang)
	assert.Equal(t, 120, cfg.Batch.MaxTokens)
	assert.Equal(t, 5*time.Second, cfg.Batch.Timeout)
	assert.InDelta(t, 0.7, cfg.Quality.MinSemanticSim, 1e-9)

	sc := cfg.Service()
	assert.Equal(t, "k:fx", sc.APIKey)
	assert.Equal(t, 5*time.Second, sc.Timeout)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "epubtran.yaml")
	yaml := `target_lang: de
backend: ollama
ollama:
  model: qwen2.5
cache:
  backend: sqlite
  db: ` + filepath.Join(dir, "c.db") + `
quality:
  enabled: true
  max_punct_issues: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	v := NewViper()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "de", cfg.TargetLang)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.True(t, cfg.Quality.Enabled)
	assert.Equal(t, 5, cfg.Quality.MaxPunctIssues)
	assert.InDelta(t, 0.6, cfg.Quality.MinLengthRatio, 1e-9)

	sc := cfg.Service()
	assert.Equal(t, "qwen2.5", sc.Model)
	assert.Equal(t, "http://localhost:11434", sc.BaseURL)
}

func TestReadFile_Missing(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, ReadFile(NewViper(), ""), "default file is optional")
	assert.Error(t, ReadFile(NewViper(), filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "auto source", mutate: func(c *Config) { c.SourceLang = "auto" }, ok: true},
		{name: "bad target", mutate: func(c *Config) { c.TargetLang = "not a tag" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "babelfish" }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Batch.Concurrency = 0 }},
		{name: "zero bytes per token", mutate: func(c *Config) { c.Batch.BytesPerToken = 0 }},
		{name: "unknown cache", mutate: func(c *Config) { c.Cache.Backend = "redis" }},
		{name: "sqlite without db", mutate: func(c *Config) { c.Cache.Backend = "sqlite"; c.Cache.DB = "" }},
		{name: "inverted ratio", mutate: func(c *Config) { c.Quality.MinLengthRatio = 2 }},
		{name: "http embedder without url", mutate: func(c *Config) { c.Quality.EmbedBackend = "http" }},
		{name: "unknown detector", mutate: func(c *Config) { c.Quality.Detector = "cld3" }},
		{name: "negative rps", mutate: func(c *Config) { c.Rate.RPS = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(NewViper())
			require.NoError(t, err)
			tt.mutate(cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}
