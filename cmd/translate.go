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
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/valpere/epubtran/internal/config"
	"github.com/valpere/epubtran/internal/pipeline"
)

var (
	inputFile  string
	outputFile string
)

// translateKeys maps flags shared by translate and watch to config keys.
var translateKeys = map[string]string{
	"source":         "source_lang",
	"target":         "target_lang",
	"backend":        "backend",
	"title":          "title",
	"credentials":    "google.credentials",
	"project":        "google.project",
	"ollama-url":     "ollama.url",
	"ollama-model":   "ollama.model",
	"openai-model":   "openai.model",
	"openai-url":     "openai.base_url",
	"mymemory-email": "mymemory.email",
	"cache":          "cache.backend",
	"db":             "cache.db",
	"max-tokens":     "batch.max_tokens",
	"max-items":      "batch.max_items",
	"concurrency":    "batch.concurrency",
	"timeout":        "batch.timeout",
	"rps":            "rate.rps",
	"quality":        "quality.enabled",
	"report":         "quality.report",
}

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate an EPUB or plain-text file",
	Long: `Translate an EPUB book (or a .txt/.md file) sentence by sentence.

Markup, images and code blocks are kept; only prose text nodes change.
Repeated sentences are translated once and remembered in the cache.
The table of contents, NCX and spine are regenerated, and the output
is written atomically.

Available backends:
  - google     Google Cloud Translation (credentials or API key)
  - deepl      DeepL (EPUBTRAN_DEEPL_KEY)
  - openai     OpenAI or any compatible API (EPUBTRAN_OPENAI_KEY, --openai-url)
  - ollama     Ollama LLM (self-hosted)
  - mymemory   MyMemory (free, 5000 chars/day)

Example:
  epubtran translate -i book.epub -o book.pt.epub -s en -t pt --backend google`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, translateKeys)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		if pipeline.FormatOf(inputFile) == pipeline.FormatUnknown {
			return fmt.Errorf("%w: %s (want .epub, .txt or .md)", pipeline.ErrUnsupportedFormat, inputFile)
		}
		if outputFile == "" {
			outputFile = pipeline.OutputPath(filepath.Dir(inputFile), inputFile, cfg.TargetLang)
		}
		if same, err := samePath(inputFile, outputFile); err != nil {
			return err
		} else if same {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := newSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := sess.Close(); cerr != nil {
				logger.WithError(cerr).Warn("cleanup failed")
			}
		}()

		report, err := sess.pipeline.RunFile(ctx, inputFile, outputFile)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

func printReport(r *pipeline.Report) {
	j := r.Job
	for _, pe := range r.Skipped {
		logger.WithFields(logrus.Fields{"part": pe.PartID, "path": pe.Path}).WithError(pe.Err).Warn("part left untranslated")
	}
	fmt.Printf("Successfully translated %s to %s: %s\n", j.SourceLang, j.TargetLang, j.DestPath)
	fmt.Printf("Job:        %s\n", j.ID)
	fmt.Printf("Parts:      %d (%d skipped)\n", j.Parts, j.Skipped)
	fmt.Printf("Sentences:  %d (%d unique, %d from cache)\n", j.Sentences, j.Unique, j.CacheHits)
	fmt.Printf("Translated: %d in %d batches\n", j.Translated, j.Batches)
	if j.Flagged > 0 {
		fmt.Printf("Flagged:    %d paragraphs need review\n", j.Flagged)
	}
}

// addTranslateFlags registers the flags listed in translateKeys. Defaults
// live in config; the flags only override.
func addTranslateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("source", "s", "en", `Source language code, or "auto" to detect`)
	f.StringP("target", "t", "pt", "Target language code")
	f.StringP("backend", "b", "google", "Translation backend: google, deepl, openai, ollama, mymemory")
	f.String("title", "", "Title of the regenerated table of contents")
	f.StringP("credentials", "c", "", "Path to Google Cloud credentials")
	f.StringP("project", "p", "", "Google Cloud Project ID")
	f.String("ollama-url", "http://localhost:11434", "Ollama base URL")
	f.String("ollama-model", "llama3.2", "Ollama model")
	f.String("openai-model", "", "OpenAI model")
	f.String("openai-url", "", "OpenAI-compatible base URL")
	f.String("mymemory-email", "", "MyMemory email (for higher limits)")
	f.String("cache", "memory", "Sentence cache: memory or sqlite")
	f.String("db", "./data/epubtran.db", "Database path for the sqlite cache, glossary and jobs")
	f.Int("max-tokens", 360, "Estimated token budget per batch")
	f.Int("max-items", 32, "Maximum sentences per batch")
	f.Int("concurrency", 1, "Batches in flight at once")
	f.Duration("timeout", 0, "Per-batch timeout (default 2m)")
	f.Float64("rps", 0, "Backend requests per second, 0 for unlimited")
	f.Bool("quality", false, "Score every translated paragraph")
	f.String("report", "", "Write a CSV quality report to this path")
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to translate (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default <input>.<target>.<ext>)")
	addTranslateFlags(translateCmd)

	translateCmd.MarkFlagRequired("input")
}

