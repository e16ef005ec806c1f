// Package quality scores translated paragraphs and flags the ones a human
// should look at.
//
// Three heuristics always run: length ratio, leftover source-language
// marker words and punctuation problems. Semantic similarity, model
// log-probability and language detection run only when the Inspector is
// built with the matching capability.
package quality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

type Thresholds struct {
	MinLengthRatio      float64 `mapstructure:"min_length_ratio"`
	MaxLengthRatio      float64 `mapstructure:"max_length_ratio"`
	MaxUntranslatedHits int     `mapstructure:"max_untranslated_hits"`
	MaxPunctIssues      int     `mapstructure:"max_punct_issues"`
	MinSemanticSim      float64 `mapstructure:"min_semantic_sim"`
	MinAvgLogProb       float64 `mapstructure:"min_avg_logprob"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinLengthRatio:      0.6,
		MaxLengthRatio:      1.6,
		MaxUntranslatedHits: 2,
		MaxPunctIssues:      3,
		MinSemanticSim:      0.68,
		MinAvgLogProb:       -2.5,
	}
}

// DefaultMarkers are English words that should not survive translation of
// fiction.
var DefaultMarkers = []string{
	"chapter", "prologue", "epilogue", "acknowledgments", "preface",
	"contents", "the", "and", "or", "of", "to", "for", "with",
}

// Metric is an optional signal. Computed is false when the capability is
// missing or failed for this paragraph.
type Metric struct {
	Value    float64
	Computed bool
}

func computed(v float64) Metric { return Metric{Value: v, Computed: true} }

// Record holds one paragraph's signals. LangDetect is empty when no language
// was detected.
type Record struct {
	Original         string
	Translated       string
	LengthRatio      float64
	UntranslatedHits int
	PunctIssues      int
	SemanticSim      Metric
	AvgLogProb       Metric
	LangDetect       string
	NeedsReview      bool
	Reasons          []string
}

// Embedder turns texts into vectors, one per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Scorer returns the average per-token log-probability of target given
// source under some translation model.
type Scorer interface {
	Score(ctx context.Context, source, target string) (float64, error)
}

// LanguageChecker reports the detected language of text and whether it
// differs from target. *validator.Validator satisfies it.
type LanguageChecker interface {
	Check(text, target string) (detected string, mismatch bool)
}

type Options struct {
	Thresholds Thresholds
	// Markers replaces DefaultMarkers when non-empty.
	Markers    []string
	TargetLang string
	Embedder   Embedder
	Scorer     Scorer
	Languages  LanguageChecker
}

// Capabilities lists the optional signals an Inspector computes.
type Capabilities struct {
	Semantic bool
	LogProb  bool
	Language bool
}

type Inspector struct {
	th       Thresholds
	markers  map[string]bool
	target   string
	embedder Embedder
	scorer   Scorer
	langs    LanguageChecker
	log      logrus.FieldLogger
}

func New(opts Options, log logrus.FieldLogger) *Inspector {
	markers := opts.Markers
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	set := make(map[string]bool, len(markers))
	for _, m := range markers {
		set[strings.ToLower(strings.TrimSpace(m))] = true
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Inspector{
		th:       opts.Thresholds,
		markers:  set,
		target:   opts.TargetLang,
		embedder: opts.Embedder,
		scorer:   opts.Scorer,
		langs:    opts.Languages,
		log:      log,
	}
}

func (in *Inspector) Capabilities() Capabilities {
	return Capabilities{
		Semantic: in.embedder != nil,
		LogProb:  in.scorer != nil,
		Language: in.langs != nil && in.target != "",
	}
}

// Analyze never fails: a capability that errors is logged and its signal
// left out.
func (in *Inspector) Analyze(ctx context.Context, original, translated string) Record {
	original = strings.TrimSpace(original)
	translated = strings.TrimSpace(translated)

	r := Record{
		Original:         original,
		Translated:       translated,
		LengthRatio:      LengthRatio(original, translated),
		UntranslatedHits: in.untranslatedHits(translated),
		PunctIssues:      PunctIssues(translated),
	}

	if in.embedder != nil {
		sim, err := in.similarity(ctx, original, translated)
		if err != nil {
			in.log.WithError(err).Warn("semantic similarity not computed")
		} else {
			r.SemanticSim = computed(sim)
		}
	}
	if in.scorer != nil {
		lp, err := in.scorer.Score(ctx, original, translated)
		if err != nil {
			in.log.WithError(err).Warn("log-probability not computed")
		} else {
			r.AvgLogProb = computed(lp)
		}
	}

	var langMismatch bool
	if in.langs != nil && in.target != "" {
		r.LangDetect, langMismatch = in.langs.Check(translated, in.target)
	}

	if r.LengthRatio < in.th.MinLengthRatio || r.LengthRatio > in.th.MaxLengthRatio {
		r.Reasons = append(r.Reasons, fmt.Sprintf("length_ratio=%.2f", r.LengthRatio))
	}
	if r.UntranslatedHits > in.th.MaxUntranslatedHits {
		r.Reasons = append(r.Reasons, fmt.Sprintf("untranslated_hits=%d", r.UntranslatedHits))
	}
	if r.PunctIssues > in.th.MaxPunctIssues {
		r.Reasons = append(r.Reasons, fmt.Sprintf("punct_issues=%d", r.PunctIssues))
	}
	if r.SemanticSim.Computed && r.SemanticSim.Value < in.th.MinSemanticSim {
		r.Reasons = append(r.Reasons, fmt.Sprintf("semantic_sim=%.2f", r.SemanticSim.Value))
	}
	if r.AvgLogProb.Computed && r.AvgLogProb.Value < in.th.MinAvgLogProb {
		r.Reasons = append(r.Reasons, fmt.Sprintf("avg_logprob=%.2f", r.AvgLogProb.Value))
	}
	if langMismatch {
		r.Reasons = append(r.Reasons, fmt.Sprintf("lang_detect=%s", r.LangDetect))
	}
	r.NeedsReview = len(r.Reasons) > 0

	in.log.WithFields(logrus.Fields{
		"needs_review": r.NeedsReview,
		"reasons":      strings.Join(r.Reasons, ","),
		"length_ratio": fmt.Sprintf("%.2f", r.LengthRatio),
		"untranslated": r.UntranslatedHits,
		"punct":        r.PunctIssues,
	}).Debug("paragraph inspected")

	return r
}

// LengthRatio compares rune counts, each floored at 1.
func LengthRatio(original, translated string) float64 {
	lo := max(1, len([]rune(strings.TrimSpace(original))))
	lt := max(1, len([]rune(strings.TrimSpace(translated))))
	return float64(lt) / float64(lo)
}

// untranslatedHits counts distinct marker words present as whole tokens.
func (in *Inspector) untranslatedHits(text string) int {
	seen := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		if in.markers[tok] {
			seen[tok] = true
		}
	}
	return len(seen)
}

var (
	spaceBeforePunctRe = regexp.MustCompile(`\s+[,.;:!?]`)
	missingSpaceRe     = regexp.MustCompile(`[,.;:!?]\S`)
)

// PunctIssues counts spacing problems around punctuation plus one per
// unbalanced bracket pair and one for an odd number of double quotes.
func PunctIssues(text string) int {
	n := len(spaceBeforePunctRe.FindAllStringIndex(text, -1))
	n += len(missingSpaceRe.FindAllStringIndex(text, -1))
	if strings.Count(text, "(") != strings.Count(text, ")") {
		n++
	}
	if strings.Count(text, "[") != strings.Count(text, "]") {
		n++
	}
	if strings.Count(text, `"`)%2 != 0 {
		n++
	}
	return n
}

func (in *Inspector) similarity(ctx context.Context, a, b string) (float64, error) {
	vecs, err := in.embedder.Embed(ctx, []string{a, b})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("embedder returned %d vectors for 2 texts", len(vecs))
	}
	return Cosine(vecs[0], vecs[1])
}

var errZeroVector = errors.New("zero-length or zero-norm vector")

func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions differ: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, errZeroVector
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
