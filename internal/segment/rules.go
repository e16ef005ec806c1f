package segment

import (
	"regexp"
	"strings"
	"unicode"
)

var paragraphBreakRe = regexp.MustCompile(`\n\s*\n`)

// Rules splits at sentence-ending punctuation (. ! ? …) that is followed by
// whitespace and a character that can open a sentence. Closing quotes and
// brackets after the mark stay with the sentence. A period after a known
// abbreviation, a single capital initial or a dotted initialism does not end
// a sentence, and neither does a period inside a number.
type Rules struct {
	Abbreviations map[string]bool
}

func NewRules() *Rules {
	abbr := make(map[string]bool, len(defaultAbbreviations))
	for _, a := range defaultAbbreviations {
		abbr[a] = true
	}
	return &Rules{Abbreviations: abbr}
}

// Lower-cased, without the trailing period.
var defaultAbbreviations = []string{
	// en
	"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "vs", "etc", "fig",
	"no", "vol", "ch", "pp", "ed", "approx", "dept", "gen", "col", "lt",
	"capt", "rev", "hon", "inc", "ltd", "co", "jan", "feb", "mar", "apr",
	"jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	// pt, es, fr, it
	"sra", "srta", "dra", "exmo", "exma", "pág", "págs", "cap", "núm",
	"av", "sto", "sta", "mme", "mlle", "sig", "dott", "ecc",
}

func (r *Rules) Segment(text, _ string) []string {
	var out []string
	for _, para := range paragraphBreakRe.Split(text, -1) {
		out = append(out, r.split([]rune(para))...)
	}
	return clean(out)
}

func (r *Rules) split(runes []rune) []string {
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}

		end := i + 1
		for end < len(runes) && isTerminator(runes[end]) {
			end++
		}
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}
		if end == len(runes) {
			break
		}
		if !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}

		next := end
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next < len(runes) && !opensSentence(runes[next]) {
			i = end - 1
			continue
		}
		if runes[i] == '.' && end-i == 1 && r.abbreviated(wordBefore(runes, i)) {
			i = end - 1
			continue
		}

		out = append(out, string(runes[start:end]))
		start = end
		i = end - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// abbreviated reports whether a period after word is part of the word.
func (r *Rules) abbreviated(word string) bool {
	word = strings.TrimLeftFunc(word, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	if word == "" {
		return false
	}
	runes := []rune(word)
	if len(runes) == 1 && unicode.IsUpper(runes[0]) {
		return true
	}
	if strings.Contains(word, ".") {
		return true
	}
	return r.Abbreviations[strings.ToLower(word)]
}

// wordBefore returns the run of non-space runes ending just before i.
func wordBefore(runes []rune, i int) string {
	j := i
	for j > 0 && !unicode.IsSpace(runes[j-1]) {
		j--
	}
	return string(runes[j:i])
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', '»', ')', ']':
		return true
	}
	return false
}

func opensSentence(r rune) bool {
	if unicode.IsUpper(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '"', '\'', '“', '‘', '«', '(', '[', '¿', '¡', '—', '–':
		return true
	}
	return false
}
