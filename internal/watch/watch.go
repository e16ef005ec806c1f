// Package watch translates documents dropped into an inbox directory on a
// cron schedule.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/valpere/epubtran/internal/pipeline"
)

// Runner translates one file. *pipeline.Pipeline satisfies it.
type Runner interface {
	RunFile(ctx context.Context, src, dst string) (*pipeline.Report, error)
}

type Config struct {
	Inbox      string
	Outbox     string
	TargetLang string
	// Workers bounds how many documents are translated at once.
	Workers int
}

// Result is the outcome of one file of a scan.
type Result struct {
	Source string
	Dest   string
	Report *pipeline.Report
	Err    error
}

type Watcher struct {
	runner Runner
	cfg    Config
	log    logrus.FieldLogger
	group  singleflight.Group
}

func New(runner Runner, cfg Config, log logrus.FieldLogger) *Watcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Watcher{runner: runner, cfg: cfg, log: log}
}

// Pending lists inbox files of a supported format that have no translation
// in the outbox yet, sorted by name.
func (w *Watcher) Pending() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.Inbox)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || pipeline.FormatOf(e.Name()) == pipeline.FormatUnknown {
			continue
		}
		src := filepath.Join(w.cfg.Inbox, e.Name())
		_, err := os.Stat(w.dest(src))
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat output: %w", err)
		}
		out = append(out, src)
	}
	sort.Strings(out)
	return out, nil
}

func (w *Watcher) dest(src string) string {
	return pipeline.OutputPath(w.cfg.Outbox, src, w.cfg.TargetLang)
}

// Scan translates every pending file. A failed file does not stop the
// others; its error is in its Result. Files not yet started when ctx is
// cancelled are left for the next scan.
func (w *Watcher) Scan(ctx context.Context) ([]Result, error) {
	pending, err := w.Pending()
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(w.cfg.Outbox, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox: %w", err)
	}

	results := make([]Result, len(pending))
	started := 0
	var g errgroup.Group
	g.SetLimit(w.cfg.Workers)
	for i, src := range pending {
		if ctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			dst := w.dest(src)
			log := w.log.WithFields(logrus.Fields{"source": src, "dest": dst})
			log.Info("translating")
			report, err := w.runner.RunFile(ctx, src, dst)
			results[i] = Result{Source: src, Dest: dst, Report: report, Err: err}
			if err != nil {
				log.WithError(err).Error("translation failed")
				return nil
			}
			log.WithField("job", report.Job.ID).Info("translated")
			return nil
		})
	}
	_ = g.Wait()
	return results[:started], ctx.Err()
}

// Tick runs a scan unless one is already in progress.
func (w *Watcher) Tick(ctx context.Context) {
	_, err, shared := w.group.Do("scan", func() (any, error) {
		return w.Scan(ctx)
	})
	if shared {
		w.log.Debug("scan already running")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		w.log.WithError(err).Error("scan failed")
	}
}

// Schedule registers Tick on c under the given cron spec.
func (w *Watcher) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() { w.Tick(ctx) })
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return id, nil
}
