// Package placeholder shields tokens a translator must not touch (inline
// code, stray tags, URLs, e-mail addresses) behind numbered markers [PH0],
// [PH1], ... and puts them back after translation.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Hint is appended to LLM prompts.
const Hint = "Copy every [PHn] marker into the translation unchanged and in a sensible position."

var (
	protectedRe = regexp.MustCompile("`[^`\n]+`" +
		`|</?[A-Za-z][^<>]*>` +
		`|https?://[^\s<>"]*[^\s<>".,;:!?)\]'»”]` +
		`|[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)

	markerRe = regexp.MustCompile(`\[PH(\d+)\]`)
)

// Protect replaces protected tokens with markers numbered in order of
// appearance and returns the originals, indexed by marker number.
func Protect(text string) (string, []string) {
	var originals []string
	out := protectedRe.ReplaceAllStringFunc(text, func(m string) string {
		originals = append(originals, m)
		return marker(len(originals) - 1)
	})
	return out, originals
}

// Restore substitutes markers with their originals. Markers the translator
// invented are left as they are.
func Restore(text string, originals []string) string {
	if len(originals) == 0 {
		return text
	}
	return markerRe.ReplaceAllStringFunc(text, func(m string) string {
		idx, err := strconv.Atoi(markerRe.FindStringSubmatch(m)[1])
		if err != nil || idx >= len(originals) {
			return m
		}
		return originals[idx]
	})
}

// Missing returns the marker numbers absent from a translation.
func Missing(text string, originals []string) []int {
	var missing []int
	for i := range originals {
		if !strings.Contains(text, marker(i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

func marker(i int) string {
	return fmt.Sprintf("[PH%d]", i)
}
