package segment

import (
	"fmt"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Punkt segments English text with the pre-trained Punkt model, which
// knows common abbreviations, initials and ordinal numbers.
type Punkt struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewPunkt() (*Punkt, error) {
	tok, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt model: %w", err)
	}
	return &Punkt{tokenizer: tok}, nil
}

func (p *Punkt) Segment(text, _ string) []string {
	var pieces []string
	for _, s := range p.tokenizer.Tokenize(text) {
		pieces = append(pieces, s.Text)
	}
	return clean(pieces)
}
