package translator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/valpere/epubtran/internal/placeholder"
	"github.com/valpere/epubtran/internal/postprocess"
)

// languageName spells a code out in English for prompts ("pt" → "Portuguese").
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// buildSystemPrompt describes the batch contract to an LLM, optionally
// injecting glossary terms.
func buildSystemPrompt(d Directives) string {
	var sb strings.Builder

	source := "the source language"
	if d.SourceLang != "" && d.SourceLang != "auto" {
		source = languageName(d.SourceLang)
	}
	sb.WriteString(fmt.Sprintf("You are a professional literary translator. Translate each segment from %s to %s.\n", source, languageName(d.TargetLang)))
	sb.WriteString(`The input is a JSON object {"segments": [...]}. Respond with a JSON object {"translations": [...]} holding exactly one translation per segment, in the same order. `)
	sb.WriteString("Never merge, split, drop or reorder segments. No explanations.\n")
	sb.WriteString(placeholder.Hint)

	if len(d.Glossary) > 0 {
		terms := make([]string, 0, len(d.Glossary))
		for src := range d.Glossary {
			terms = append(terms, src)
		}
		sort.Strings(terms)

		sb.WriteString("\n\nTERMINOLOGY (use these exact translations):\n")
		for _, src := range terms {
			sb.WriteString(fmt.Sprintf("  %s → %s\n", src, d.Glossary[src]))
		}
	}

	return sb.String()
}

func buildUserPrompt(texts []string) (string, error) {
	b, err := json.Marshal(struct {
		Segments []string `json:"segments"`
	}{texts})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// parseBatch pulls the translations array out of a model reply. A bare JSON
// array is accepted too.
func parseBatch(name, raw string, texts []string) ([]string, error) {
	payload := postprocess.JSONPayload(raw)
	if payload == "" {
		return nil, fmt.Errorf("%s: no JSON in response", name)
	}

	var out []string
	if strings.HasPrefix(payload, "[") {
		if err := json.Unmarshal([]byte(payload), &out); err != nil {
			return nil, fmt.Errorf("%s: failed to decode translations: %w", name, err)
		}
	} else {
		var obj struct {
			Translations []string `json:"translations"`
		}
		if err := json.Unmarshal([]byte(payload), &obj); err != nil {
			return nil, fmt.Errorf("%s: failed to decode translations: %w", name, err)
		}
		if obj.Translations == nil {
			return nil, fmt.Errorf("%s: response has no translations field", name)
		}
		out = obj.Translations
	}

	if err := checkLength(name, texts, out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out, nil
}
