package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/valpere/epubtran/internal/batch"
	"github.com/valpere/epubtran/internal/cache"
	"github.com/valpere/epubtran/internal/epub"
	"github.com/valpere/epubtran/internal/extract"
	"github.com/valpere/epubtran/internal/placeholder"
	"github.com/valpere/epubtran/internal/postprocess"
)

// translatePart rewrites the prose of one content document in place.
func (r *run) translatePart(ctx context.Context, part *epub.Part) error {
	log := r.log.WithField("part", part.ID)

	doc, err := extract.Parse(part.Content)
	if err != nil {
		return err
	}
	spans := doc.Spans()
	if len(spans) == 0 {
		log.Debug("no prose in part")
		return nil
	}

	paras := doc.Paragraphs()
	originals := make([]string, len(paras))
	for i, para := range paras {
		originals[i] = para.Text()
	}

	units := make([]string, len(spans))
	for i, s := range spans {
		units[i] = s.Text()
	}
	translated, err := r.translateUnits(ctx, log, units)
	if err != nil {
		return err
	}
	for i, s := range spans {
		s.Replace(translated[i])
	}

	for i, para := range paras {
		r.inspect(ctx, part.ID, i, originals[i], para.Text())
	}

	out, err := doc.Render()
	if err != nil {
		return err
	}
	part.Content = out
	log.WithField("spans", len(spans)).Debug("part translated")
	return nil
}

// translateUnits segments every unit, translates the sentences the job has
// not seen yet and joins each unit's translated sentences with a space.
func (r *run) translateUnits(ctx context.Context, log logrus.FieldLogger, units []string) ([]string, error) {
	keys := make([][]string, len(units))
	var misses []string
	pending := make(map[string]bool)

	for i, u := range units {
		for _, sentence := range r.p.seg.Segment(u, r.dirs.SourceLang) {
			key := cache.Key(sentence)
			if key == "" {
				continue
			}
			keys[i] = append(keys[i], key)
			r.job.Sentences++

			if _, ok := r.memo[key]; ok || pending[key] {
				continue
			}
			r.job.Unique++
			v, hit, err := r.p.cache.Get(ctx, key)
			if err != nil {
				log.WithError(err).Warn("cache lookup failed, treating as miss")
			}
			if err == nil && hit {
				r.memo[key] = v
				r.job.CacheHits++
				continue
			}
			pending[key] = true
			misses = append(misses, key)
		}
	}

	if len(misses) > 0 {
		if err := r.dispatch(ctx, log, misses); err != nil {
			return nil, err
		}
	}

	out := make([]string, len(units))
	for i, ks := range keys {
		if len(ks) == 0 {
			out[i] = units[i]
			continue
		}
		parts := make([]string, len(ks))
		for j, k := range ks {
			parts[j] = r.memo[k]
		}
		out[i] = strings.Join(parts, " ")
	}
	return out, nil
}

// dispatch translates the given cache keys and records the results in the
// memo and the cache. Protected tokens are masked on the way out and put
// back after post-processing.
func (r *run) dispatch(ctx context.Context, log logrus.FieldLogger, keys []string) error {
	sent := make([]string, len(keys))
	masked := make([][]string, len(keys))
	for i, k := range keys {
		sent[i], masked[i] = placeholder.Protect(k)
	}

	batches := batch.Split(sent, r.p.est, r.p.cfg.Limits)
	r.job.Batches += len(batches)
	for i, b := range batches {
		if b.Oversized(r.p.cfg.Limits) {
			log.WithFields(logrus.Fields{"batch": i, "tokens": b.Tokens}).Warn("sentence exceeds token budget, sent alone")
		}
	}

	// Batches are applied in order, so next walks keys in step.
	next := 0
	return r.p.disp.Dispatch(ctx, batches, r.dirs, func(i int, b batch.Batch, out []string) error {
		for j := range b.Items {
			key, originals := keys[next], masked[next]
			next++

			t := out[j]
			if r.p.cfg.Clean {
				t = postprocess.Clean(t)
			}
			t = postprocess.Normalize(t)
			if len(originals) > 0 {
				if lost := placeholder.Missing(t, originals); len(lost) > 0 {
					log.WithFields(logrus.Fields{"batch": i, "lost": len(lost)}).Warn("translation dropped protected tokens")
				}
				t = placeholder.Restore(t, originals)
			}

			r.memo[key] = t
			r.job.Translated++
			if err := r.p.cache.Put(ctx, key, t); err != nil {
				return fmt.Errorf("cache put: %w", err)
			}
		}
		return nil
	})
}

// inspect scores one paragraph. Report failures are logged, never fatal.
func (r *run) inspect(ctx context.Context, part string, paragraph int, original, translated string) {
	if r.p.inspector == nil {
		return
	}
	rec := r.p.inspector.Analyze(ctx, original, translated)
	if rec.NeedsReview {
		r.job.Flagged++
		r.log.WithFields(logrus.Fields{
			"part":      part,
			"paragraph": paragraph,
			"reasons":   strings.Join(rec.Reasons, ","),
		}).Info("paragraph needs review")
	}
	if r.p.sink == nil {
		return
	}
	if err := r.p.sink.Add(part, paragraph, rec); err != nil {
		r.log.WithError(err).Warn("quality report write failed")
	}
}
