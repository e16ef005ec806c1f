// Package config loads epubtran settings from flags, environment, a config
// file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/valpere/epubtran/internal/quality"
	"github.com/valpere/epubtran/internal/translator"
)

const EnvPrefix = "EPUBTRAN"

type Config struct {
	SourceLang string `mapstructure:"source_lang"`
	TargetLang string `mapstructure:"target_lang"`
	Backend    string `mapstructure:"backend"`
	// Title labels the regenerated table of contents.
	Title string `mapstructure:"title"`

	Batch    BatchConfig         `mapstructure:"batch"`
	Decode   translator.Decoding `mapstructure:"decode"`
	Cache    CacheConfig         `mapstructure:"cache"`
	Quality  QualityConfig       `mapstructure:"quality"`
	Google   GoogleConfig        `mapstructure:"google"`
	DeepL    DeepLConfig         `mapstructure:"deepl"`
	OpenAI   OpenAIConfig        `mapstructure:"openai"`
	Ollama   OllamaConfig        `mapstructure:"ollama"`
	MyMemory MyMemoryConfig      `mapstructure:"mymemory"`
	Rate     RateConfig          `mapstructure:"rate"`
	Watch    WatchConfig         `mapstructure:"watch"`
	Log      LogConfig           `mapstructure:"log"`
}

type BatchConfig struct {
	MaxTokens     int           `mapstructure:"max_tokens"`
	MaxItems      int           `mapstructure:"max_items"`
	BytesPerToken int           `mapstructure:"bytes_per_token"`
	Concurrency   int           `mapstructure:"concurrency"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `mapstructure:"backend"`
	DB      string `mapstructure:"db"`
}

type QualityConfig struct {
	Enabled            bool     `mapstructure:"enabled"`
	quality.Thresholds `mapstructure:",squash"`
	Markers            []string `mapstructure:"markers"`
	// EmbedBackend is "http" or "openai"; empty disables semantic similarity.
	EmbedBackend string `mapstructure:"embed_backend"`
	EmbedURL     string `mapstructure:"embed_url"`
	EmbedModel   string `mapstructure:"embed_model"`
	ScoreURL     string `mapstructure:"score_url"`
	// Detector is "lingua", "whatlang" or "none".
	Detector string `mapstructure:"detector"`
	Report   string `mapstructure:"report"`
}

type GoogleConfig struct {
	Credentials string `mapstructure:"credentials"`
	Project     string `mapstructure:"project"`
	APIKey      string `mapstructure:"api_key"`
}

type DeepLConfig struct {
	Key     string `mapstructure:"key"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	Key     string `mapstructure:"key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

type OllamaConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

type MyMemoryConfig struct {
	Email string `mapstructure:"email"`
}

type RateConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type WatchConfig struct {
	Inbox  string `mapstructure:"inbox"`
	Outbox string `mapstructure:"outbox"`
	// Schedule is a cron spec; "@every 1m" style descriptors work too.
	Schedule string `mapstructure:"schedule"`
	Workers  int    `mapstructure:"workers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("source_lang", "en")
	v.SetDefault("target_lang", "pt")
	v.SetDefault("backend", string(translator.KindGoogle))
	v.SetDefault("title", "")

	v.SetDefault("batch.max_tokens", 360)
	v.SetDefault("batch.max_items", 32)
	v.SetDefault("batch.bytes_per_token", 4)
	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("batch.timeout", 120*time.Second)

	v.SetDefault("decode.max_new_tokens", 220)
	v.SetDefault("decode.num_beams", 3)
	v.SetDefault("decode.length_penalty", 1.05)
	v.SetDefault("decode.repetition_penalty", 1.04)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.db", "./data/epubtran.db")

	th := quality.DefaultThresholds()
	v.SetDefault("quality.enabled", false)
	v.SetDefault("quality.min_length_ratio", th.MinLengthRatio)
	v.SetDefault("quality.max_length_ratio", th.MaxLengthRatio)
	v.SetDefault("quality.max_untranslated_hits", th.MaxUntranslatedHits)
	v.SetDefault("quality.max_punct_issues", th.MaxPunctIssues)
	v.SetDefault("quality.min_semantic_sim", th.MinSemanticSim)
	v.SetDefault("quality.min_avg_logprob", th.MinAvgLogProb)
	v.SetDefault("quality.markers", quality.DefaultMarkers)
	v.SetDefault("quality.embed_backend", "")
	v.SetDefault("quality.embed_url", "")
	v.SetDefault("quality.embed_model", "")
	v.SetDefault("quality.score_url", "")
	v.SetDefault("quality.detector", "lingua")
	v.SetDefault("quality.report", "")

	v.SetDefault("google.credentials", "")
	v.SetDefault("google.project", "")
	v.SetDefault("google.api_key", "")
	v.SetDefault("deepl.key", "")
	v.SetDefault("deepl.base_url", "")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "")
	v.SetDefault("ollama.url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.2")
	v.SetDefault("mymemory.email", "")

	v.SetDefault("rate.rps", 0)
	v.SetDefault("rate.burst", 1)

	v.SetDefault("watch.inbox", "./uploads")
	v.SetDefault("watch.outbox", "./translated")
	v.SetDefault("watch.schedule", "@every 1m")
	v.SetDefault("watch.workers", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// NewViper returns a viper instance with defaults and environment binding:
// EPUBTRAN_BATCH_MAX_TOKENS sets batch.max_tokens.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a config file into v. An empty path looks for
// epubtran.yaml in the working directory and ignores its absence.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("epubtran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.SourceLang != "auto" {
		if _, err := language.Parse(c.SourceLang); err != nil {
			errs = append(errs, fmt.Errorf("source_lang %q: %w", c.SourceLang, err))
		}
	}
	if _, err := language.Parse(c.TargetLang); err != nil {
		errs = append(errs, fmt.Errorf("target_lang %q: %w", c.TargetLang, err))
	}
	if _, err := translator.ParseKind(c.Backend); err != nil {
		errs = append(errs, err)
	}
	if c.Batch.BytesPerToken < 1 {
		errs = append(errs, fmt.Errorf("batch.bytes_per_token must be positive, got %d", c.Batch.BytesPerToken))
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("batch.concurrency must be positive, got %d", c.Batch.Concurrency))
	}
	if c.Batch.Timeout < 0 {
		errs = append(errs, fmt.Errorf("batch.timeout must not be negative"))
	}
	switch c.Cache.Backend {
	case "memory":
	case "sqlite":
		if c.Cache.DB == "" {
			errs = append(errs, errors.New("cache.db is required for the sqlite cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be memory or sqlite, got %q", c.Cache.Backend))
	}
	if c.Quality.MinLengthRatio > c.Quality.MaxLengthRatio {
		errs = append(errs, errors.New("quality.min_length_ratio exceeds quality.max_length_ratio"))
	}
	switch c.Quality.EmbedBackend {
	case "", "openai":
	case "http":
		if c.Quality.EmbedURL == "" {
			errs = append(errs, errors.New("quality.embed_url is required for the http embedder"))
		}
	default:
		errs = append(errs, fmt.Errorf("quality.embed_backend must be http or openai, got %q", c.Quality.EmbedBackend))
	}
	switch strings.ToLower(c.Quality.Detector) {
	case "", "none", "lingua", "whatlang":
	default:
		errs = append(errs, fmt.Errorf("quality.detector must be lingua, whatlang or none, got %q", c.Quality.Detector))
	}
	if c.Rate.RPS < 0 {
		errs = append(errs, errors.New("rate.rps must not be negative"))
	}

	return errors.Join(errs...)
}

// Kind returns the validated backend kind.
func (c *Config) Kind() translator.Kind {
	k, _ := translator.ParseKind(c.Backend)
	return k
}

// Service returns the credentials and endpoint of the selected backend.
func (c *Config) Service() translator.ServiceConfig {
	sc := translator.ServiceConfig{Timeout: c.Batch.Timeout}
	switch c.Kind() {
	case translator.KindGoogle:
		sc.Credentials = c.Google.Credentials
		sc.ProjectID = c.Google.Project
		sc.APIKey = c.Google.APIKey
	case translator.KindDeepL:
		sc.APIKey = c.DeepL.Key
		sc.BaseURL = c.DeepL.BaseURL
	case translator.KindOpenAI:
		sc.APIKey = c.OpenAI.Key
		sc.BaseURL = c.OpenAI.BaseURL
		sc.Model = c.OpenAI.Model
	case translator.KindOllama:
		sc.BaseURL = c.Ollama.URL
		sc.Model = c.Ollama.Model
	case translator.KindMyMemory:
		sc.Email = c.MyMemory.Email
	}
	return sc
}
