package postprocess

import (
	"regexp"
	"strings"
)

var (
	wsRunRe = regexp.MustCompile(`[\s\p{Zs}]+`)
	// whitespace before a sentence or clause mark
	spaceBeforeMarkRe = regexp.MustCompile(` ([,.;:!?])`)
	// clause mark glued to the next word; digits are left alone (1,5 and 10:30)
	clauseGlueRe = regexp.MustCompile(`([,;:])(\p{L})`)
	// sentence mark glued to a capitalised word after a lower-case word, so
	// initials such as U.S.A. and e.g. stay intact
	sentenceGlueRe = regexp.MustCompile(`(\p{Ll}{2}[.!?])(\p{Lu})`)
	spacedHyphenRe = regexp.MustCompile(`(^| )-( |$)`)
	openBracketRe  = regexp.MustCompile(`([(\[]) `)
	closeBracketRe = regexp.MustCompile(` ([)\]])`)
)

var quoteReplacer = strings.NewReplacer("''", `"`, "``", `"`)

// Normalize fixes spacing and punctuation in a translated sentence:
// whitespace runs collapse to one space, spaces before , . ; : ! ? are
// removed, a space is added after a clause or sentence mark glued to the
// next word, a spaced hyphen becomes an en dash, doubled apostrophes and
// backticks become a double quote, and spaces inside brackets are removed.
//
// The rules are applied until the text stops changing, so
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(text string) string {
	for i := 0; i < 32; i++ {
		next := normalizeOnce(text)
		if next == text {
			return next
		}
		text = next
	}
	return text
}

func normalizeOnce(t string) string {
	t = quoteReplacer.Replace(t)
	t = wsRunRe.ReplaceAllString(t, " ")
	t = spaceBeforeMarkRe.ReplaceAllString(t, "$1")
	t = clauseGlueRe.ReplaceAllString(t, "$1 $2")
	t = sentenceGlueRe.ReplaceAllString(t, "$1 $2")
	t = spacedHyphenRe.ReplaceAllString(t, "$1–$2")
	t = openBracketRe.ReplaceAllString(t, "$1")
	t = closeBracketRe.ReplaceAllString(t, "$1")
	return strings.TrimSpace(t)
}
