package quality

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Header is the first row of a CSV report.
var Header = []string{
	"part", "paragraph", "length_ratio", "untranslated_hits", "punct_issues",
	"semantic_sim", "avg_logprob", "lang_detect", "needs_review", "reasons",
	"original", "translated",
}

// Sink receives one record per translated paragraph.
type Sink interface {
	Add(part string, paragraph int, r Record) error
}

// CSVReport writes records as CSV rows. It is safe for concurrent use.
type CSVReport struct {
	mu      sync.Mutex
	w       *csv.Writer
	started bool
}

func NewCSVReport(w io.Writer) *CSVReport {
	return &CSVReport{w: csv.NewWriter(w)}
}

func (c *CSVReport) Add(part string, paragraph int, r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		if err := c.w.Write(Header); err != nil {
			return fmt.Errorf("write report header: %w", err)
		}
		c.started = true
	}
	row := []string{
		part,
		strconv.Itoa(paragraph),
		strconv.FormatFloat(r.LengthRatio, 'f', 4, 64),
		strconv.Itoa(r.UntranslatedHits),
		strconv.Itoa(r.PunctIssues),
		optional(r.SemanticSim),
		optional(r.AvgLogProb),
		r.LangDetect,
		strconv.FormatBool(r.NeedsReview),
		strings.Join(r.Reasons, ";"),
		r.Original,
		r.Translated,
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write report row: %w", err)
	}
	return nil
}

// Flush writes buffered rows, adding the header to an empty report.
func (c *CSVReport) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		if err := c.w.Write(Header); err != nil {
			return err
		}
		c.started = true
	}
	c.w.Flush()
	return c.w.Error()
}

func optional(m Metric) string {
	if !m.Computed {
		return ""
	}
	return strconv.FormatFloat(m.Value, 'f', 4, 64)
}

// Summary aggregates a CSV report.
type Summary struct {
	Paragraphs int
	Flagged    int
	// ByReason counts flagged paragraphs per signal name ("length_ratio").
	ByReason map[string]int
	// ByPart counts flagged paragraphs per part.
	ByPart map[string]int
}

// Reasons returns the signal names in ByReason, most frequent first.
func (s Summary) Reasons() []string {
	return sortedKeys(s.ByReason)
}

// Parts returns the part ids in ByPart, most flagged first.
func (s Summary) Parts() []string {
	return sortedKeys(s.ByPart)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// ReadSummary parses a report written by CSVReport.
func ReadSummary(r io.Reader) (Summary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Summary{}, errors.New("report is empty")
	}
	if err != nil {
		return Summary{}, fmt.Errorf("read report header: %w", err)
	}
	col := make(map[string]int, len(head))
	for i, h := range head {
		col[h] = i
	}
	for _, h := range []string{"part", "needs_review", "reasons"} {
		if _, ok := col[h]; !ok {
			return Summary{}, fmt.Errorf("report has no %q column", h)
		}
	}

	s := Summary{ByReason: map[string]int{}, ByPart: map[string]int{}}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("read report: %w", err)
		}
		s.Paragraphs++
		flagged, err := strconv.ParseBool(row[col["needs_review"]])
		if err != nil {
			return Summary{}, fmt.Errorf("row %d: bad needs_review: %w", s.Paragraphs, err)
		}
		if !flagged {
			continue
		}
		s.Flagged++
		s.ByPart[row[col["part"]]]++
		for _, reason := range strings.Split(row[col["reasons"]], ";") {
			name, _, _ := strings.Cut(reason, "=")
			if name != "" {
				s.ByReason[name]++
			}
		}
	}
	return s, nil
}
