package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/valpere/epubtran/internal"
)

var blankLineRe = regexp.MustCompile(`\n[ \t\r]*\n`)

// fencedParagraphs marks paragraphs that open, continue or close a ```
// fenced block. Fences may contain blank lines.
func fencedParagraphs(paras []string) []bool {
	code := make([]bool, len(paras))
	open := false
	for i, p := range paras {
		starts := strings.HasPrefix(strings.TrimSpace(p), "```")
		if open || starts {
			code[i] = true
		}
		fences := 0
		for _, line := range strings.Split(p, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				fences++
			}
		}
		if fences%2 == 1 {
			open = !open
		}
	}
	return code
}

// RunText translates a plain-text or Markdown file. Paragraphs are separated
// by blank lines; within a paragraph the translated sentences are joined by
// spaces. Fenced code blocks are copied as they are.
func (p *Pipeline) RunText(ctx context.Context, src, dst string) (*Report, error) {
	r := p.newRun(src, dst)

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, r.fail(ctx, fmt.Errorf("read text: %w", err))
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	paras := blankLineRe.Split(strings.TrimSpace(text), -1)
	r.job.Parts = 1
	r.transition(internal.StateLoaded)

	if r.needsSourceLang() {
		sample := []rune(text)
		if len(sample) > sampleRunes {
			sample = sample[:sampleRunes]
		}
		r.detectSource(string(sample))
	}

	r.transition(internal.StatePerPartProcessing)
	if err := ctx.Err(); err != nil {
		return nil, r.fail(ctx, err)
	}
	part := filepath.Base(src)
	code := fencedParagraphs(paras)
	var prose []string
	for i, para := range paras {
		if !code[i] {
			prose = append(prose, para)
		}
	}
	done, err := r.translateUnits(ctx, r.log.WithField("part", part), prose)
	if err != nil {
		return nil, r.fail(ctx, &PartError{PartID: part, Path: src, Err: err})
	}
	translated := make([]string, len(paras))
	for i, para := range paras {
		if code[i] {
			translated[i] = para
			continue
		}
		translated[i], done = done[0], done[1:]
		r.inspect(ctx, part, i, para, translated[i])
	}
	r.transition(internal.StateRebuilt)

	out := strings.Join(translated, "\n\n") + "\n"
	err = r.write(ctx, dst, func(w io.Writer) error {
		_, err := io.WriteString(w, out)
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return &Report{Job: r.job}, nil
}
