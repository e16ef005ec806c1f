// Package orchestrator fans a part's batches out to a translation client and
// hands the results back in batch order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/epubtran/internal/batch"
	"github.com/valpere/epubtran/internal/translator"
)

type Config struct {
	// Concurrency caps the batches in flight. Values below 1 mean 1.
	Concurrency int
	// Timeout bounds a single client call. Zero means no limit.
	Timeout time.Duration
}

// BatchError reports which batch failed and how big it was.
type BatchError struct {
	Index  int
	Items  int
	Tokens int
	Err    error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (%d items, %d tokens): %v", e.Index, e.Items, e.Tokens, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// ApplyFunc receives the translations of batch i. It is called from the
// goroutine that called Dispatch, once per batch, in index order.
type ApplyFunc func(i int, b batch.Batch, out []string) error

type Dispatcher struct {
	client translator.Client
	config Config
	log    logrus.FieldLogger
}

func New(client translator.Client, config Config, log logrus.FieldLogger) *Dispatcher {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Dispatcher{client: client, config: config, log: log}
}

type result struct {
	out []string
	err error
}

// Dispatch translates every batch and applies the results in order. Calls
// already in flight are not cancelled by ctx: they finish or hit the batch
// timeout. Batches not yet started when ctx is done are not sent. The first
// failure stops the dispatch; batches before it have been applied.
func (d *Dispatcher) Dispatch(ctx context.Context, batches []batch.Batch, dirs translator.Directives, apply ApplyFunc) error {
	if len(batches) == 0 {
		return nil
	}

	// Calls run under base so that neither ctx nor a failed batch cuts one
	// short. gctx only gates launches.
	base := context.WithoutCancel(ctx)
	launch, stop := context.WithCancel(base)
	defer stop()
	g, gctx := errgroup.WithContext(launch)
	g.SetLimit(d.config.Concurrency)

	results := make([]chan result, len(batches))
	for i := range results {
		results[i] = make(chan result, 1)
	}

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, b := range batches {
			if err := stopped(ctx, gctx); err != nil {
				results[i] <- result{err: err}
				continue
			}
			g.Go(func() error {
				// The slot may have been freed by a failure or a cancel.
				if err := stopped(ctx, gctx); err != nil {
					results[i] <- result{err: err}
					return nil
				}
				out, err := d.call(base, i, b, dirs)
				if err != nil {
					err = &BatchError{Index: i, Items: len(b.Items), Tokens: b.Tokens, Err: err}
				}
				results[i] <- result{out: out, err: err}
				return err
			})
		}
	}()

	halt := func() error {
		stop()
		<-launched
		return g.Wait()
	}

	for i, b := range batches {
		r := <-results[i]
		if r.err != nil {
			// The group holds the first failure, which may be a later batch
			// that cancelled this one.
			if werr := halt(); werr != nil {
				return werr
			}
			var be *BatchError
			if !errors.As(r.err, &be) {
				r.err = &BatchError{Index: i, Items: len(b.Items), Tokens: b.Tokens, Err: r.err}
			}
			return r.err
		}
		if err := apply(i, b, r.out); err != nil {
			halt()
			return err
		}
	}

	<-launched
	return g.Wait()
}

func stopped(ctx, gctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return gctx.Err()
}

func (d *Dispatcher) call(ctx context.Context, i int, b batch.Batch, dirs translator.Directives) ([]string, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := d.client.Translate(ctx, b.Items, dirs)
	log := d.log.WithFields(logrus.Fields{
		"batch":   i,
		"items":   len(b.Items),
		"tokens":  b.Tokens,
		"backend": d.client.Name(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	})
	if err != nil {
		log.WithError(err).Warn("batch failed")
		return nil, err
	}
	if len(out) != len(b.Items) {
		return nil, fmt.Errorf("%w: sent %d, got %d", translator.ErrLengthMismatch, len(b.Items), len(out))
	}
	log.Debug("batch translated")
	return out, nil
}
