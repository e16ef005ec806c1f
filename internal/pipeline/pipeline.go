// Package pipeline drives one document through extraction, translation,
// navigation rebuild and an atomic write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/valpere/epubtran/internal"
	"github.com/valpere/epubtran/internal/batch"
	"github.com/valpere/epubtran/internal/cache"
	"github.com/valpere/epubtran/internal/detector"
	"github.com/valpere/epubtran/internal/epub"
	"github.com/valpere/epubtran/internal/extract"
	"github.com/valpere/epubtran/internal/orchestrator"
	"github.com/valpere/epubtran/internal/quality"
	"github.com/valpere/epubtran/internal/rebuild"
	"github.com/valpere/epubtran/internal/segment"
	"github.com/valpere/epubtran/internal/translator"
)

type Config struct {
	SourceLang    string
	TargetLang    string
	Limits        batch.Limits
	BytesPerToken int
	Dispatch      orchestrator.Config
	Decoding      translator.Decoding
	Glossary      map[string]string
	// Clean strips LLM artifacts before normalization.
	Clean bool
	// Title labels the regenerated table of contents.
	Title string
}

// PartError ties a failure to the content document it happened in.
type PartError struct {
	PartID string
	Path   string
	Err    error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %s (%s): %v", e.PartID, e.Path, e.Err)
}

func (e *PartError) Unwrap() error { return e.Err }

// JobRecorder persists job records. *store.Store satisfies it.
type JobRecorder interface {
	SaveJob(ctx context.Context, job internal.Job) error
}

// Report is the outcome of a successful run.
type Report struct {
	Job     internal.Job
	Skipped []*PartError
}

type Option func(*Pipeline)

// WithInspector scores every translated paragraph and sends the records to
// sink, which may be nil.
func WithInspector(in *quality.Inspector, sink quality.Sink) Option {
	return func(p *Pipeline) {
		p.inspector = in
		p.sink = sink
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = log }
}

func WithJobRecorder(r JobRecorder) Option {
	return func(p *Pipeline) { p.jobs = r }
}

// WithSourceDetector guesses the source language from the text when the
// configured one is empty or "auto".
func WithSourceDetector(det detector.LanguageDetector) Option {
	return func(p *Pipeline) { p.detector = det }
}

type Pipeline struct {
	client    translator.Client
	cache     cache.Cache
	seg       segment.Segmenter
	cfg       Config
	est       batch.Estimator
	disp      *orchestrator.Dispatcher
	inspector *quality.Inspector
	sink      quality.Sink
	detector  detector.LanguageDetector
	jobs      JobRecorder
	log       logrus.FieldLogger
}

func New(client translator.Client, c cache.Cache, seg segment.Segmenter, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{client: client, cache: c, seg: seg, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		p.log = l
	}
	if p.cache == nil {
		p.cache = cache.NewMemory()
	}
	if p.seg == nil {
		p.seg = segment.NewDefault()
	}
	p.est = batch.ByteEstimator(cfg.BytesPerToken)
	p.disp = orchestrator.New(client, cfg.Dispatch, p.log)
	return p
}

// run is the state of one job.
type run struct {
	p    *Pipeline
	job  internal.Job
	log  logrus.FieldLogger
	dirs translator.Directives
	// memo holds every translation seen in this job, keyed by cache key.
	memo map[string]string
}

func (p *Pipeline) newRun(src, dst string) *run {
	job := internal.Job{
		ID:         uuid.NewString(),
		SourcePath: src,
		DestPath:   dst,
		SourceLang: p.cfg.SourceLang,
		TargetLang: p.cfg.TargetLang,
		Backend:    p.client.Name(),
		StartedAt:  time.Now().UTC(),
	}
	return &run{
		p:   p,
		job: job,
		log: p.log.WithFields(logrus.Fields{"job": job.ID, "src": filepath.Base(src)}),
		dirs: translator.Directives{
			SourceLang: p.cfg.SourceLang,
			TargetLang: p.cfg.TargetLang,
			Decoding:   p.cfg.Decoding,
			Glossary:   p.cfg.Glossary,
		},
		memo: make(map[string]string),
	}
}

func (r *run) transition(s internal.JobState) {
	r.job.State = s
	r.log.WithField("state", s).Info("job state changed")
}

// fail moves the job to Failed and records it. It returns err unchanged.
func (r *run) fail(ctx context.Context, err error) error {
	r.job.State = internal.StateFailed
	r.job.Error = err.Error()
	r.job.FinishedAt = time.Now().UTC()
	r.log.WithField("state", internal.StateFailed).WithError(err).Error("job failed")
	r.record(ctx)
	return err
}

func (r *run) record(ctx context.Context) {
	if r.p.jobs == nil {
		return
	}
	if err := r.p.jobs.SaveJob(context.WithoutCancel(ctx), r.job); err != nil {
		r.log.WithError(err).Warn("failed to record job")
	}
}

// Run translates the EPUB at src and writes the result to dst. dst is only
// replaced once the whole book has been translated and written.
func (p *Pipeline) Run(ctx context.Context, src, dst string) (*Report, error) {
	r := p.newRun(src, dst)
	report := &Report{}

	b, err := epub.Open(src)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.job.Parts = len(b.Parts)
	r.transition(internal.StateLoaded)

	if r.needsSourceLang() {
		r.detectSource(bookSample(b))
	}

	r.transition(internal.StatePerPartProcessing)
	for _, part := range b.Parts {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(ctx, err)
		}
		err := r.translatePart(ctx, part)
		if err == nil {
			continue
		}
		perr := &PartError{PartID: part.ID, Path: part.Path, Err: err}
		if errors.Is(err, extract.ErrUnprocessable) {
			r.log.WithField("part", part.ID).WithError(err).Warn("part skipped")
			report.Skipped = append(report.Skipped, perr)
			r.job.Skipped++
			continue
		}
		return nil, r.fail(ctx, perr)
	}

	if _, err := rebuild.Rebuild(b, p.cfg.Title); err != nil {
		return nil, r.fail(ctx, err)
	}
	b.SetLanguage(p.cfg.TargetLang)
	r.transition(internal.StateRebuilt)

	if err := r.write(ctx, dst, b.Write); err != nil {
		return nil, r.fail(ctx, err)
	}

	report.Job = r.job
	return report, nil
}

// write puts the artifact into a temp file next to dst and renames it over
// dst.
func (r *run) write(ctx context.Context, dst string, emit func(w io.Writer) error) error {
	tmp, size, err := writeTemp(dst, emit)
	if err != nil {
		return err
	}
	r.job.Bytes = size
	r.transition(internal.StateWrittenTemp)

	if err := commit(tmp, dst); err != nil {
		return err
	}
	r.job.FinishedAt = time.Now().UTC()
	r.transition(internal.StateCommitted)
	r.record(ctx)
	return nil
}

func (r *run) needsSourceLang() bool {
	return r.p.detector != nil && (r.dirs.SourceLang == "" || r.dirs.SourceLang == "auto")
}

func (r *run) detectSource(sample string) {
	code, ok := r.p.detector.DetectISO(sample)
	if !ok {
		r.log.Warn("source language not detected")
		return
	}
	r.dirs.SourceLang = code
	r.job.SourceLang = code
	r.log.WithField("source_lang", code).Info("source language detected")
}

const sampleRunes = 2000

// bookSample gathers leading prose from the book for language detection.
func bookSample(b *epub.Book) string {
	var sb []rune
	for _, part := range b.Parts {
		doc, err := extract.Parse(part.Content)
		if err != nil {
			continue
		}
		for _, s := range doc.Spans() {
			sb = append(sb, []rune(s.Text()+" ")...)
			if len(sb) >= sampleRunes {
				return string(sb[:sampleRunes])
			}
		}
	}
	return string(sb)
}
